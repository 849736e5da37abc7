package main

import (
	"encoding/csv"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/terrylgarner/edx-platform/config"
	"github.com/terrylgarner/edx-platform/database"
	"github.com/terrylgarner/edx-platform/models"
	"github.com/terrylgarner/edx-platform/utils"
)

func main() {
	// Load config and connect to database
	config.LoadConfig()
	database.ConnectDb()

	// Open CSV file
	file, err := os.Open("Courses.csv")
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	// Create CSV reader
	reader := csv.NewReader(file)

	// Read all records
	records, err := reader.ReadAll()
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}

	if len(records) < 2 {
		log.Fatal("CSV file is empty or has only headers")
	}

	// Skip header row
	header := records[0]
	log.Printf("CSV Headers: %v", header)
	log.Printf("Total rows to import: %d", len(records)-1)

	// Map header indices
	headerIndex := make(map[string]int)
	for i, h := range header {
		headerIndex[strings.TrimSpace(h)] = i
	}

	inserted := 0
	updated := 0
	skipped := 0

	for _, row := range records[1:] {
		courseID := getField(row, headerIndex, "course_id")

		key, err := utils.ParseCourseKey(courseID)
		if err != nil {
			log.Printf("Skipping row with invalid course_id %q: %v", courseID, err)
			skipped++
			continue
		}

		overview := models.CourseOverview{
			CourseID:                    key.String(),
			DisplayName:                 getField(row, headerIndex, "display_name"),
			Org:                         key.Org,
			SelfPaced:                   parseBool(getField(row, headerIndex, "self_paced")),
			EndDate:                     parseTime(getField(row, headerIndex, "end_date")),
			CertificatesDisplayBehavior: getField(row, headerIndex, "certificates_display_behavior"),
			CertificatesShowBeforeEnd:   parseBool(getField(row, headerIndex, "certificates_show_before_end")),
			CertificateAvailableDate:    parseTime(getField(row, headerIndex, "certificate_available_date")),
			CertHTMLViewEnabled:         parseBool(getField(row, headerIndex, "cert_html_view_enabled")),
			IsDeleted:                   false,
		}
		if overview.CertificatesDisplayBehavior == "" {
			overview.CertificatesDisplayBehavior = models.CertDisplayEnd
		}

		// Check if course exists by id
		var existing models.CourseOverview
		result := database.Database.Db.Where("course_id = ?", overview.CourseID).First(&existing)

		if result.Error != nil {
			// Insert new course
			if err := database.Database.Db.Create(&overview).Error; err != nil {
				log.Printf("Error inserting course %s: %v", overview.CourseID, err)
				continue
			}
			inserted++
		} else {
			// Update existing course
			existing.DisplayName = overview.DisplayName
			existing.Org = overview.Org
			existing.SelfPaced = overview.SelfPaced
			existing.EndDate = overview.EndDate
			existing.CertificatesDisplayBehavior = overview.CertificatesDisplayBehavior
			existing.CertificatesShowBeforeEnd = overview.CertificatesShowBeforeEnd
			existing.CertificateAvailableDate = overview.CertificateAvailableDate
			existing.CertHTMLViewEnabled = overview.CertHTMLViewEnabled

			if err := database.Database.Db.Save(&existing).Error; err != nil {
				log.Printf("Error updating course %s: %v", overview.CourseID, err)
				continue
			}
			updated++
		}
	}

	log.Printf("=== Import Complete ===")
	log.Printf("Inserted: %d", inserted)
	log.Printf("Updated: %d", updated)
	log.Printf("Skipped: %d", skipped)
	log.Printf("Total processed: %d", inserted+updated+skipped)
}

// getField safely gets a field from the row by header name
func getField(row []string, headerIndex map[string]int, field string) string {
	if idx, ok := headerIndex[field]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// parseBool converts string to bool
func parseBool(s string) bool {
	if s == "" {
		return false
	}
	val, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return val
}

// parseTime converts string to *time.Time, accepting date-only values
func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if val, err := time.Parse(layout, s); err == nil {
			return &val
		}
	}
	return nil
}
