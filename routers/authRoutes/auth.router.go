package authRoutes

import (
	authControllers "github.com/terrylgarner/edx-platform/controllers/auth"
	authValidators "github.com/terrylgarner/edx-platform/validators/auth"

	"github.com/gofiber/fiber/v2"
)

func SetupAuthRoutes(app *fiber.App) {
	authGroup := app.Group("/auth")

	authGroup.Post("/signup", authValidators.Signup(), authControllers.Signup)
	authGroup.Post("/login", authValidators.Login(), authControllers.Login)
}
