package controllers

import (
	"errors"
	"fmt"
	"log"

	"github.com/terrylgarner/edx-platform/middleware"
	"github.com/terrylgarner/edx-platform/models/certificates"
	"github.com/terrylgarner/edx-platform/store"
	"github.com/terrylgarner/edx-platform/utils"

	"github.com/gofiber/fiber/v2"
)

// CertificateController serves learners their own certificates.
type CertificateController struct {
	Certs store.CertificateStore
}

// NewCertificateController wires the controller to storage.
func NewCertificateController(certs store.CertificateStore) *CertificateController {
	return &CertificateController{Certs: certs}
}

// GetUserCertificates gets all certificates for the current user. Runs whose
// certificate visibility window has not opened are left out entirely.
func (ctrl *CertificateController) GetUserCertificates(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	certs, err := ctrl.Certs.GeneratedForUser(userID)
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch certificates!", nil)
	}

	type certificateWithCourse struct {
		CourseID    string `json:"course_id"`
		CourseName  string `json:"course_name"`
		Status      string `json:"status"`
		Mode        string `json:"mode"`
		Grade       string `json:"grade,omitempty"`
		DownloadURL string `json:"download_url,omitempty"`
		WebViewURL  string `json:"web_view_url,omitempty"`
	}

	result := make([]certificateWithCourse, 0, len(certs))
	for _, cert := range certs {
		overview, err := ctrl.Certs.OverviewByCourseID(cert.CourseID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Printf("Failed to load course overview for %s: %v", cert.CourseID, err)
			}
			// A certificate without a course overview cannot be checked for
			// visibility, so it stays hidden.
			continue
		}

		if !utils.CourseCertificatesVisible(overview) {
			continue
		}

		item := certificateWithCourse{
			CourseID:   cert.CourseID,
			CourseName: overview.DisplayName,
			Status:     cert.Status,
			Mode:       cert.Mode,
			Grade:      cert.Grade,
		}
		if cert.Status == certificates.StatusDownloadable {
			item.DownloadURL = cert.DownloadURL
			if utils.HasHTMLCertificatesEnabled(overview) {
				item.WebViewURL = fmt.Sprintf("/certificates/%s", cert.VerifyUUID)
			}
		}
		result = append(result, item)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully!", fiber.Map{
		"certificates": result,
		"total":        len(result),
	})
}
