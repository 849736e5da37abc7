package certificateValidator

import (
	"strings"

	"github.com/terrylgarner/edx-platform/middleware"
	"github.com/terrylgarner/edx-platform/utils"

	"github.com/gofiber/fiber/v2"
)

// GenerateExampleCertificate validator middleware
func GenerateExampleCertificate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			CourseID    string `json:"course_id"`
			Description string `json:"description"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		// Validate Course ID
		courseKey, err := utils.ParseCourseKey(reqData.CourseID)
		if strings.TrimSpace(reqData.CourseID) == "" {
			errors["course_id"] = "Course ID is required!"
		} else if err != nil {
			errors["course_id"] = "Course ID is not a valid course key!"
		}

		// Respond with errors if any exist
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		description := strings.TrimSpace(reqData.Description)
		if description == "" {
			description = "full-course"
		}

		// Pass validated request to the next middleware
		c.Locals("validatedCourseID", courseKey.String())
		c.Locals("validatedDescription", description)
		return c.Next()
	}
}
