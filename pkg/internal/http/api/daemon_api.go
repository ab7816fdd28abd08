package api

import (
	"github.com/gofiber/fiber/v2"
)

func getDaemonStatus(c *fiber.Ctx) error {
	phase, param := Daemon.Status()
	return c.JSON(fiber.Map{
		"phase": phase,
		"param": param,
	})
}

func triggerDaemonCycle(c *fiber.Ctx) error {
	Daemon.Trigger()
	return c.SendStatus(fiber.StatusNoContent)
}
