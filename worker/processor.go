package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/terrylgarner/edx-platform/config"
	"github.com/terrylgarner/edx-platform/models/certificates"
	"github.com/terrylgarner/edx-platform/queue"
	"github.com/terrylgarner/edx-platform/store"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	certs store.CertificateStore
}

// NewProcessor constructs a worker processor.
func NewProcessor(certs store.CertificateStore) *Processor {
	return &Processor{certs: certs}
}

// Handler registers the certificate generation job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.GenerateCertificateTask, p.handleGenerate)
	return mux
}

// handleGenerate produces or refreshes a student's certificate record for a
// course run. Re-running for the same (student, course run) pair overwrites
// the earlier outcome, so redelivered tasks are safe.
func (p *Processor) handleGenerate(ctx context.Context, task *asynq.Task) error {
	var payload queue.GenerationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	user, err := p.certs.UserByID(payload.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Skipping certificate generation for missing user %d.", payload.UserID)
			return nil
		}
		return fmt.Errorf("load user %d: %w", payload.UserID, err)
	}

	cert, err := p.certs.GeneratedForStudent(payload.UserID, payload.CourseID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load certificate for user %d in %s: %w", payload.UserID, payload.CourseID, err)
		}
		cert = &certificates.GeneratedCertificate{
			UserID:     payload.UserID,
			CourseID:   payload.CourseID,
			Name:       user.Name,
			VerifyUUID: strings.ReplaceAll(uuid.NewString(), "-", ""),
		}
	}

	enrollment, err := p.certs.EnrollmentForStudent(payload.UserID, payload.CourseID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load enrollment for user %d in %s: %w", payload.UserID, payload.CourseID, err)
	}

	switch {
	case enrollment == nil:
		cert.Status = certificates.StatusNotPassing
		cert.ErrorReason = "no active enrollment"
		cert.DownloadURL = ""
	case enrollment.Status == "COMPLETED":
		cert.Status = certificates.StatusDownloadable
		cert.Mode = enrollment.Mode
		cert.Grade = fmt.Sprintf("%.2f", enrollment.Progress/100)
		cert.DownloadURL = fmt.Sprintf("%s/%s.pdf",
			strings.TrimRight(config.AppConfig.CertDownloadBase, "/"), cert.VerifyUUID)
		cert.ErrorReason = ""
	default:
		cert.Status = certificates.StatusNotPassing
		cert.Mode = enrollment.Mode
		cert.Grade = fmt.Sprintf("%.2f", enrollment.Progress/100)
		cert.DownloadURL = ""
	}

	if err := p.certs.SaveGenerated(cert); err != nil {
		return fmt.Errorf("save certificate for user %d in %s: %w", payload.UserID, payload.CourseID, err)
	}

	log.Printf("Certificate for user %d in %s is now %s.", payload.UserID, payload.CourseID, cert.Status)
	return nil
}

// Start runs the worker loop until ctx is cancelled, then drains in-flight
// tasks before returning.
func Start(ctx context.Context, redisAddr string, p *Processor) error {
	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr: redisAddr,
	}, asynq.Config{
		Concurrency: 4,
	})

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	return server.Run(p.Handler())
}
