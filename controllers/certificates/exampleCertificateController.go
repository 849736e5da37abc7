package controllers

import (
	"errors"
	"log"

	"github.com/terrylgarner/edx-platform/config"
	"github.com/terrylgarner/edx-platform/middleware"
	"github.com/terrylgarner/edx-platform/models/certificates"
	"github.com/terrylgarner/edx-platform/queue"
	"github.com/terrylgarner/edx-platform/store"
	"github.com/terrylgarner/edx-platform/utils"

	"github.com/gofiber/fiber/v2"
)

// ExampleCertificateController exposes the staff operations for example
// certificates: start generation for a course run and check the outcome.
type ExampleCertificateController struct {
	Certs  store.CertificateStore
	XQueue queue.ExampleQueue
}

// NewExampleCertificateController wires the controller to storage and the
// queue client.
func NewExampleCertificateController(certs store.CertificateStore, xqueue queue.ExampleQueue) *ExampleCertificateController {
	return &ExampleCertificateController{Certs: certs, XQueue: xqueue}
}

// GenerateExampleCertificates mints a pending example certificate for a
// course run and submits it to the queue.
func (ctrl *ExampleCertificateController) GenerateExampleCertificates(c *fiber.Ctx) error {
	courseID, ok := c.Locals("validatedCourseID").(string)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}
	description, _ := c.Locals("validatedDescription").(string)

	if _, err := ctrl.Certs.OverviewByCourseID(courseID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to look up course!", nil)
	}

	cert := certificates.NewExampleCertificate(courseID, description,
		config.AppConfig.ExampleCertFullName, "certificate-template.pdf")
	if err := ctrl.Certs.CreateExample(cert); err != nil {
		log.Printf("Failed to create example certificate for %s: %v", courseID, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create example certificate!", nil)
	}

	if err := ctrl.XQueue.SubmitExample(cert); err != nil {
		log.Printf("Failed to submit example certificate '%s' to the queue: %v", cert.UUID, err)
		cert.UpdateStatus(certificates.ExampleStatusError, "failed to submit certificate request to the queue", "")
		if saveErr := ctrl.Certs.SaveExample(cert); saveErr != nil {
			log.Printf("Failed to record submission failure for '%s': %v", cert.UUID, saveErr)
		}
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to submit example certificate to the queue!", nil)
	}

	log.Printf("Started generating example certificate '%s' for %s.", cert.UUID, courseID)
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Example certificate generation started!", cert)
}

// GetExampleCertificateStatus reports the generation status of a course run's
// example certificates.
func (ctrl *ExampleCertificateController) GetExampleCertificateStatus(c *fiber.Ctx) error {
	courseKey, err := utils.ParseCourseKey(c.Query("course_id"))
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course_id!", nil)
	}

	certs, err := ctrl.Certs.ExamplesForCourse(courseKey.String())
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch example certificates!", nil)
	}

	type exampleStatus struct {
		UUID        string `json:"uuid"`
		Description string `json:"description"`
		Status      string `json:"status"`
		DownloadURL string `json:"download_url,omitempty"`
		ErrorReason string `json:"error_reason,omitempty"`
	}

	result := make([]exampleStatus, len(certs))
	for i, cert := range certs {
		result[i] = exampleStatus{
			UUID:        cert.UUID,
			Description: cert.Description,
			Status:      cert.Status,
			DownloadURL: cert.DownloadURL,
			ErrorReason: cert.ErrorReason,
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Example certificates fetched successfully!", fiber.Map{
		"course_id":            courseKey.String(),
		"example_certificates": result,
	})
}
