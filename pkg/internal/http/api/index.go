package api

import (
	"github.com/akina-dev/boorud/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
)

// Store and Daemon are wired in by the entrypoint before the server
// starts listening.
var (
	Store  *services.Store
	Daemon *services.Daemon
)

func MapControllers(app *fiber.App, baseURL string) {
	base := app.Group(baseURL)
	{
		base.Get("/posts", listPosts)
		base.Get("/boards", listBoards)

		daemon := base.Group("/daemon")
		{
			daemon.Get("/", getDaemonStatus)
			daemon.Post("/trigger", triggerDaemonCycle)
		}
	}
}
