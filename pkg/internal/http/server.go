package http

import (
	"strings"

	pkg "github.com/akina-dev/boorud/pkg/internal"
	"github.com/akina-dev/boorud/pkg/internal/http/api"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func NewServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               pkg.AppName,
		ServerHeader:          pkg.AppName,
	})

	app.Use(recover.New())

	api.MapControllers(app, "/api")

	return app
}

func Listen(app *fiber.App) {
	addr := viper.GetString("http.bind")
	if strings.TrimSpace(addr) == "" {
		addr = "127.0.0.1:8365"
	}
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when starting http server.")
	}
}
