package utils

import (
	"time"

	"github.com/terrylgarner/edx-platform/config"
	"github.com/terrylgarner/edx-platform/models"
)

// ShouldCertificateBeVisible reports whether certificates for a course run may
// be shown to learners right now, based on the run's pacing, display behavior
// and certificate available date.
func ShouldCertificateBeVisible(displayBehavior string, showBeforeEnd bool, hasEnded bool, availableDate *time.Time, selfPaced bool) bool {
	return shouldCertificateBeVisibleAt(time.Now(), displayBehavior, showBeforeEnd, hasEnded, availableDate, selfPaced)
}

func shouldCertificateBeVisibleAt(now time.Time, displayBehavior string, showBeforeEnd bool, hasEnded bool, availableDate *time.Time, selfPaced bool) bool {
	// Self-paced runs never gate certificate visibility.
	if selfPaced {
		return true
	}

	switch displayBehavior {
	case models.CertDisplayEarlyWithInfo:
		return true
	case models.CertDisplayEarlyNoInfo:
		return showBeforeEnd
	}

	// Default end-of-course behavior. Unrecognized values land here too.
	if showBeforeEnd || hasEnded {
		return true
	}
	if availableDate == nil {
		return false
	}
	return availableDate.Before(now)
}

// CourseCertificatesVisible applies ShouldCertificateBeVisible to a course
// overview row.
func CourseCertificatesVisible(overview *models.CourseOverview) bool {
	return ShouldCertificateBeVisible(
		overview.CertificatesDisplayBehavior,
		overview.CertificatesShowBeforeEnd,
		overview.HasEnded(),
		overview.CertificateAvailableDate,
		overview.SelfPaced,
	)
}

// HasHTMLCertificatesEnabled reports whether the web certificate view is
// active for a course run. Both the platform feature flag and the per-course
// setting must be on.
func HasHTMLCertificatesEnabled(overview *models.CourseOverview) bool {
	return config.AppConfig.CertificatesHTMLView && overview.CertHTMLViewEnabled
}
