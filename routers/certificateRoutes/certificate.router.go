package certificateRoutes

import (
	controllers "github.com/terrylgarner/edx-platform/controllers/certificates"
	"github.com/terrylgarner/edx-platform/middleware"
	certificateValidator "github.com/terrylgarner/edx-platform/validators/certificates"

	"github.com/gofiber/fiber/v2"
)

func SetupCertificateRoutes(app *fiber.App, xqueue *controllers.XQueueController, example *controllers.ExampleCertificateController, certs *controllers.CertificateController) {
	// Callback endpoints posted to by the external queue. The paths are part
	// of the queue configuration, so they stay at the application root.
	app.Post("/update_certificate", xqueue.UpdateCertificate)
	app.Post("/update_example_certificate", xqueue.UpdateExampleCertificate)

	certGroup := app.Group("/certificates")

	certGroup.Post("/request", middleware.OptionalJWTMiddleware, xqueue.RequestCertificate)

	certGroup.Post("/example/generate", middleware.JWTMiddleware, middleware.RequireRole("STAFF"), certificateValidator.GenerateExampleCertificate(), example.GenerateExampleCertificates)
	certGroup.Get("/example/status", middleware.JWTMiddleware, middleware.RequireRole("STAFF"), example.GetExampleCertificateStatus)

	userGroup := app.Group("/user")
	userGroup.Get("/certificates", middleware.JWTMiddleware, certs.GetUserCertificates)
}
