package utils

import (
	"log"
	"strconv"
	"time"

	"github.com/terrylgarner/edx-platform/config"
	"github.com/terrylgarner/edx-platform/database"
	"github.com/terrylgarner/edx-platform/middleware"
	"github.com/terrylgarner/edx-platform/models/certificates"

	"github.com/robfig/cron/v3"
)

// logCertScheduler logs scheduler events with timestamp
func logCertScheduler(message string) {
	log.Printf("[CERT-SCHEDULER %s] %s", time.Now().Format(time.RFC3339), message)
}

// SweepStaleExampleCertificates fails PENDING example certificates the queue
// never answered for. The queue has no delivery guarantee on its callbacks, so
// without this sweep a lost callback would leave the certificate PENDING
// forever.
func SweepStaleExampleCertificates() {
	db := database.Database.Db
	cutoff := time.Now().Add(-time.Duration(config.AppConfig.ExampleStaleHours) * time.Hour)

	var stale []certificates.ExampleCertificate
	if err := db.Where("status = ? AND updated_at < ? AND is_deleted = false", certificates.ExampleStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		logCertScheduler("Error fetching stale example certificates: " + err.Error())
		return
	}

	for _, cert := range stale {
		if err := cert.UpdateStatus(certificates.ExampleStatusError, "example certificate generation timed out", ""); err != nil {
			logCertScheduler("Error updating example certificate " + cert.UUID + ": " + err.Error())
			continue
		}
		if err := db.Save(&cert).Error; err != nil {
			logCertScheduler("Error saving example certificate " + cert.UUID + ": " + err.Error())
		}
	}

	if len(stale) > 0 {
		logCertScheduler("Failed " + strconv.Itoa(len(stale)) + " stale example certificates")
	}
}

// StartCertificateScheduler runs the stale-certificate sweep hourly and prunes
// the callback rate limiter so abandoned client buckets do not accumulate.
func StartCertificateScheduler(limiter *middleware.BadRequestRateLimiter) *cron.Cron {
	logCertScheduler("Initializing certificate scheduler...")

	c := cron.New()

	c.AddFunc("@hourly", func() {
		SweepStaleExampleCertificates()
	})

	c.AddFunc("@every 10m", func() {
		limiter.Sweep()
	})

	c.Start()

	logCertScheduler("Certificate scheduler started - sweep runs hourly")
	return c
}
