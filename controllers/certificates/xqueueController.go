package controllers

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/terrylgarner/edx-platform/middleware"
	"github.com/terrylgarner/edx-platform/models"
	"github.com/terrylgarner/edx-platform/models/certificates"
	"github.com/terrylgarner/edx-platform/queue"
	"github.com/terrylgarner/edx-platform/store"
	"github.com/terrylgarner/edx-platform/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

// XQueueController handles the request and callback traffic exchanged with
// the external certificate queue.
type XQueueController struct {
	Certs   store.CertificateStore
	Limiter middleware.RateLimiter
	Tasks   queue.TaskQueue
}

// NewXQueueController wires the controller to its storage, rate limiting and
// task scheduling dependencies.
func NewXQueueController(certs store.CertificateStore, limiter middleware.RateLimiter, tasks queue.TaskQueue) *XQueueController {
	return &XQueueController{Certs: certs, Limiter: limiter, Tasks: tasks}
}

// RequestCertificate records that a student wants a certificate for a course
// run and schedules generation. Anonymous callers get a sentinel payload
// instead of a 401.
func (ctrl *XQueueController) RequestCertificate(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return c.JSON(fiber.Map{"add_status": "ERRORANONYMOUSUSER"})
	}
	username, _ := c.Locals("username").(string)

	courseKey, err := utils.ParseCourseKey(c.FormValue("course_id"))
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course_id!", nil)
	}

	status, err := ctrl.Certs.StatusForStudent(userID, courseKey.String())
	if err != nil {
		log.Printf("Failed to look up certificate status for user %d in %s: %v", userID, courseKey, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to look up certificate status!", nil)
	}

	log.Printf("%s is using V2 course certificates. Attempt will be made to generate a V2 certificate for user %d.", courseKey, userID)

	payload := queue.GenerationPayload{UserID: userID, Username: username, CourseID: courseKey.String()}
	if err := ctrl.Tasks.EnqueueGeneration(c.UserContext(), payload); err != nil {
		log.Printf("Failed to enqueue certificate generation for user %d in %s: %v", userID, courseKey, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to schedule certificate generation!", nil)
	}

	return c.JSON(fiber.Map{"add_status": status})
}

// UpdateCertificate is the legacy queue callback for student certificates.
// Records are looked up but never changed here; the task worker owns
// certificate state now.
func (ctrl *XQueueController) UpdateCertificate(c *fiber.Ctx) error {
	rawBody := c.FormValue("xqueue_body")
	rawHeader := c.FormValue("xqueue_header")

	var body map[string]interface{}
	var header map[string]interface{}
	if json.Unmarshal([]byte(rawBody), &body) != nil || json.Unmarshal([]byte(rawHeader), &header) != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Parameters must be JSON-serialized.", nil)
	}

	courseRaw, _ := body["course_id"].(string)
	courseKey, err := utils.ParseCourseKey(courseRaw)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid course_id!", nil)
	}

	username, _ := body["username"].(string)
	lmsKey, _ := header["lms_key"].(string)

	cert, err := ctrl.Certs.GeneratedByKey(username, courseKey.String(), lmsKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Failed to look up certificate for user '%s' in %s: %v", username, courseKey, err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to look up certificate!", nil)
		}
		log.Printf("CRITICAL: Unable to lookup certificate\nxqueue_body: %s\nxqueue_header: %s", rawBody, rawHeader)
		ctrl.logCallback("/update_certificate", c.IP(), "lookup_failed", rawBody, rawHeader)
		return c.JSON(fiber.Map{
			"return_code": 1,
			"content":     "unable to lookup key",
		})
	}

	log.Printf("%s is using V2 certificates. Request to update the certificate for user %d will be ignored.", courseKey, cert.UserID)
	return c.JSON(fiber.Map{
		"return_code": 1,
		"content":     "allowlist certificate",
	})
}

// UpdateExampleCertificate is the callback the queue posts an example
// certificate result to. The caller proves it is the queue by presenting the
// (uuid, access key) pair; a miss is answered with a 404 that does not say
// which half was wrong.
func (ctrl *XQueueController) UpdateExampleCertificate(c *fiber.Ctx) error {
	log.Println("Received response for example certificate from XQueue.")
	source := c.IP()

	// The rate limit is checked before any record is touched so repeated
	// probing cannot brute-force access keys.
	if ctrl.Limiter.IsRateLimitExceeded(source) {
		log.Println("Bad request rate limit exceeded for update example certificate end-point.")
		return c.Status(fiber.StatusForbidden).SendString("Rate limit exceeded")
	}

	rawBody := c.FormValue("xqueue_body")
	if rawBody == "" {
		log.Println("Missing parameter 'xqueue_body' for update example certificate end-point")
		ctrl.Limiter.TickBadRequestCounter(source)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Parameter 'xqueue_body' is required.", nil)
	}
	rawHeader := c.FormValue("xqueue_header")
	if rawHeader == "" {
		log.Println("Missing parameter 'xqueue_header' for update example certificate end-point")
		ctrl.Limiter.TickBadRequestCounter(source)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Parameter 'xqueue_header' is required.", nil)
	}

	var body map[string]interface{}
	var header map[string]interface{}
	if json.Unmarshal([]byte(rawBody), &body) != nil || json.Unmarshal([]byte(rawHeader), &header) != nil {
		log.Println("Could not decode params to example certificate end-point as JSON.")
		ctrl.Limiter.TickBadRequestCounter(source)
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Parameters must be JSON-serialized.", nil)
	}

	uuid, _ := body["username"].(string)
	accessKey, _ := header["lms_key"].(string)

	cert, err := ctrl.Certs.ExampleByUUIDAndKey(uuid, accessKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Failed to look up example certificate with uuid '%s': %v", uuid, err)
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to look up example certificate!", nil)
		}
		log.Printf("Could not find example certificate with uuid '%s' and access key '%s'", uuid, accessKey)
		ctrl.Limiter.TickBadRequestCounter(source)
		ctrl.logCallback("/update_example_certificate", source, "lookup_failed", rawBody, rawHeader)
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Not found!", nil)
	}

	if cert.Status != certificates.ExampleStatusPending {
		log.Printf("Example certificate with uuid '%s' is already %s; applying the new result anyway.", uuid, cert.Status)
	}

	if _, failed := body["error"]; failed {
		errorReason, _ := body["error_reason"].(string)
		cert.UpdateStatus(certificates.ExampleStatusError, errorReason, "")
		log.Printf("Error occurred during example certificate generation for uuid '%s'. The error response was '%s'.", uuid, errorReason)
	} else {
		downloadURL, ok := body["url"].(string)
		if !ok {
			ctrl.Limiter.TickBadRequestCounter(source)
			log.Printf("No download URL provided for example certificate with uuid '%s'.", uuid)
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false,
				"Parameter 'download_url' is required for successfully generated certificates.", nil)
		}
		cert.UpdateStatus(certificates.ExampleStatusSuccess, "", downloadURL)
		log.Printf("Successfully updated example certificate with uuid '%s'.", uuid)
	}

	if err := ctrl.Certs.SaveExample(cert); err != nil {
		log.Printf("Failed to save example certificate with uuid '%s': %v", uuid, err)
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update example certificate!", nil)
	}

	return c.JSON(fiber.Map{"return_code": 0})
}

// logCallback records an unmatched callback with its raw payloads.
func (ctrl *XQueueController) logCallback(endpoint, source, outcome, rawBody, rawHeader string) {
	entry := &models.CallbackLog{
		Endpoint: endpoint,
		Source:   source,
		Outcome:  outcome,
		Body:     datatypes.JSON(rawBody),
		Header:   datatypes.JSON(rawHeader),
	}
	if err := ctrl.Certs.LogCallback(entry); err != nil {
		log.Printf("Failed to record callback log for %s: %v", endpoint, err)
	}
}
