package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/terrylgarner/edx-platform/config"
	"github.com/terrylgarner/edx-platform/middleware"
	"github.com/terrylgarner/edx-platform/models"
	"github.com/terrylgarner/edx-platform/models/certificates"
	"github.com/terrylgarner/edx-platform/queue"
	"github.com/terrylgarner/edx-platform/store"

	"github.com/gofiber/fiber/v2"
)

// fakeStore implements store.CertificateStore in memory and counts the
// lookups the handlers perform.
type fakeStore struct {
	example        *certificates.ExampleCertificate
	exampleLookups int
	savedExamples  []*certificates.ExampleCertificate

	generatedCert *certificates.GeneratedCertificate
	genTriple     [3]string

	userCerts     []certificates.GeneratedCertificate
	overviews     map[string]*models.CourseOverview
	studentStatus string

	callbackLogs []*models.CallbackLog
}

func (s *fakeStore) CreateExample(cert *certificates.ExampleCertificate) error {
	s.example = cert
	return nil
}

func (s *fakeStore) SaveExample(cert *certificates.ExampleCertificate) error {
	s.savedExamples = append(s.savedExamples, cert)
	return nil
}

func (s *fakeStore) ExampleByUUIDAndKey(uuid, accessKey string) (*certificates.ExampleCertificate, error) {
	s.exampleLookups++
	if s.example != nil && s.example.UUID == uuid && s.example.AccessKey == accessKey {
		return s.example, nil
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) ExamplesForCourse(courseID string) ([]certificates.ExampleCertificate, error) {
	if s.example != nil && s.example.CourseID == courseID {
		return []certificates.ExampleCertificate{*s.example}, nil
	}
	return nil, nil
}

func (s *fakeStore) SaveGenerated(cert *certificates.GeneratedCertificate) error {
	return nil
}

func (s *fakeStore) GeneratedByKey(username, courseID, key string) (*certificates.GeneratedCertificate, error) {
	if s.generatedCert != nil && s.genTriple == [3]string{username, courseID, key} {
		return s.generatedCert, nil
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) GeneratedForStudent(userID uint, courseID string) (*certificates.GeneratedCertificate, error) {
	return nil, store.ErrNotFound
}

func (s *fakeStore) GeneratedForUser(userID uint) ([]certificates.GeneratedCertificate, error) {
	return s.userCerts, nil
}

func (s *fakeStore) StatusForStudent(userID uint, courseID string) (string, error) {
	if s.studentStatus == "" {
		return certificates.StatusUnavailable, nil
	}
	return s.studentStatus, nil
}

func (s *fakeStore) UserByID(id uint) (*models.User, error) {
	return nil, store.ErrNotFound
}

func (s *fakeStore) EnrollmentForStudent(userID uint, courseID string) (*models.Enrollment, error) {
	return nil, store.ErrNotFound
}

func (s *fakeStore) OverviewByCourseID(courseID string) (*models.CourseOverview, error) {
	if overview, ok := s.overviews[courseID]; ok {
		return overview, nil
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) LogCallback(entry *models.CallbackLog) error {
	s.callbackLogs = append(s.callbackLogs, entry)
	return nil
}

type fakeLimiter struct {
	exceeded bool
	ticks    int
}

func (l *fakeLimiter) IsRateLimitExceeded(key string) bool { return l.exceeded }
func (l *fakeLimiter) TickBadRequestCounter(key string)    { l.ticks++ }

type fakeTaskQueue struct {
	enqueued []queue.GenerationPayload
	err      error
}

func (q *fakeTaskQueue) EnqueueGeneration(ctx context.Context, payload queue.GenerationPayload) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, payload)
	return nil
}

func setTestConfig() {
	config.AppConfig = &config.Config{
		JWTKey:               "test-secret",
		ExampleCertFullName:  "John Doë",
		CertificatesHTMLView: true,
	}
}

func newXQueueApp(ctrl *XQueueController) *fiber.App {
	app := fiber.New()
	app.Post("/update_certificate", ctrl.UpdateCertificate)
	app.Post("/update_example_certificate", ctrl.UpdateExampleCertificate)
	app.Post("/certificates/request", middleware.OptionalJWTMiddleware, ctrl.RequestCertificate)
	return app
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return payload
}

func callbackForm(body, header string) url.Values {
	form := url.Values{}
	if body != "" {
		form.Set("xqueue_body", body)
	}
	if header != "" {
		form.Set("xqueue_header", header)
	}
	return form
}

func TestRequestCertificateAnonymous(t *testing.T) {
	setTestConfig()
	tasks := &fakeTaskQueue{}
	ctrl := NewXQueueController(&fakeStore{}, &fakeLimiter{}, tasks)
	app := newXQueueApp(ctrl)

	form := url.Values{}
	form.Set("course_id", "course-v1:edX+DemoX+2024")
	resp := postForm(t, app, "/certificates/request", form, nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for anonymous caller, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["add_status"] != "ERRORANONYMOUSUSER" {
		t.Errorf("expected add_status ERRORANONYMOUSUSER, got %v", payload["add_status"])
	}
	if len(tasks.enqueued) != 0 {
		t.Errorf("expected nothing to be enqueued for anonymous caller, got %d tasks", len(tasks.enqueued))
	}
}

func TestRequestCertificateAuthenticated(t *testing.T) {
	setTestConfig()
	certStore := &fakeStore{studentStatus: certificates.StatusNotPassing}
	tasks := &fakeTaskQueue{}
	ctrl := NewXQueueController(certStore, &fakeLimiter{}, tasks)
	app := newXQueueApp(ctrl)

	token, err := middleware.GenerateJWT(7, "jdoe", "USER", "jdoe@example.com")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	form := url.Values{}
	form.Set("course_id", "course-v1:edX+DemoX+2024")
	resp := postForm(t, app, "/certificates/request", form, map[string]string{
		"Authorization": "Bearer " + token,
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["add_status"] != certificates.StatusNotPassing {
		t.Errorf("expected add_status %q, got %v", certificates.StatusNotPassing, payload["add_status"])
	}

	if len(tasks.enqueued) != 1 {
		t.Fatalf("expected one generation task, got %d", len(tasks.enqueued))
	}
	got := tasks.enqueued[0]
	if got.UserID != 7 || got.Username != "jdoe" || got.CourseID != "course-v1:edX+DemoX+2024" {
		t.Errorf("unexpected payload %+v", got)
	}
}

func TestRequestCertificateInvalidCourseID(t *testing.T) {
	setTestConfig()
	tasks := &fakeTaskQueue{}
	ctrl := NewXQueueController(&fakeStore{}, &fakeLimiter{}, tasks)
	app := newXQueueApp(ctrl)

	token, err := middleware.GenerateJWT(7, "jdoe", "USER", "jdoe@example.com")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	form := url.Values{}
	form.Set("course_id", "definitely not a course key")
	resp := postForm(t, app, "/certificates/request", form, map[string]string{
		"Authorization": "Bearer " + token,
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for an invalid course id, got %d", resp.StatusCode)
	}
	if len(tasks.enqueued) != 0 {
		t.Errorf("expected nothing to be enqueued, got %d tasks", len(tasks.enqueued))
	}
}

func TestRequestCertificateEnqueueFailure(t *testing.T) {
	setTestConfig()
	tasks := &fakeTaskQueue{err: errors.New("redis unreachable")}
	ctrl := NewXQueueController(&fakeStore{}, &fakeLimiter{}, tasks)
	app := newXQueueApp(ctrl)

	token, err := middleware.GenerateJWT(7, "jdoe", "USER", "jdoe@example.com")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	form := url.Values{}
	form.Set("course_id", "course-v1:edX+DemoX+2024")
	resp := postForm(t, app, "/certificates/request", form, map[string]string{
		"Authorization": "Bearer " + token,
	})

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the queue is down, got %d", resp.StatusCode)
	}
}

func TestUpdateExampleCertificateSuccess(t *testing.T) {
	setTestConfig()
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")
	certStore := &fakeStore{example: cert}
	limiter := &fakeLimiter{}
	ctrl := NewXQueueController(certStore, limiter, &fakeTaskQueue{})
	app := newXQueueApp(ctrl)

	body := `{"username": "` + cert.UUID + `", "url": "https://cdn.example.com/cert.pdf"}`
	header := `{"lms_key": "` + cert.AccessKey + `"}`
	resp := postForm(t, app, "/update_example_certificate", callbackForm(body, header), nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["return_code"] != float64(0) {
		t.Errorf("expected return_code 0, got %v", payload["return_code"])
	}

	if cert.Status != certificates.ExampleStatusSuccess {
		t.Errorf("expected status %q, got %q", certificates.ExampleStatusSuccess, cert.Status)
	}
	if cert.DownloadURL != "https://cdn.example.com/cert.pdf" {
		t.Errorf("expected download url to be stored, got %q", cert.DownloadURL)
	}
	if len(certStore.savedExamples) != 1 {
		t.Errorf("expected the certificate to be saved once, got %d saves", len(certStore.savedExamples))
	}
	if limiter.ticks != 0 {
		t.Errorf("expected no bad request ticks on a valid callback, got %d", limiter.ticks)
	}
}

func TestUpdateExampleCertificateError(t *testing.T) {
	setTestConfig()

	cases := []struct {
		name       string
		body       string
		wantReason string
	}{
		{"with reason", `{"username": "%s", "error": "FAILED", "error_reason": "Killed by the renderer"}`, "Killed by the renderer"},
		{"without reason", `{"username": "%s", "error": "FAILED"}`, ""},
		{"null error", `{"username": "%s", "error": null}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")
			certStore := &fakeStore{example: cert}
			ctrl := NewXQueueController(certStore, &fakeLimiter{}, &fakeTaskQueue{})
			app := newXQueueApp(ctrl)

			body := strings.ReplaceAll(tc.body, "%s", cert.UUID)
			header := `{"lms_key": "` + cert.AccessKey + `"}`
			resp := postForm(t, app, "/update_example_certificate", callbackForm(body, header), nil)

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			if cert.Status != certificates.ExampleStatusError {
				t.Errorf("expected status %q, got %q", certificates.ExampleStatusError, cert.Status)
			}
			if cert.ErrorReason != tc.wantReason {
				t.Errorf("expected error reason %q, got %q", tc.wantReason, cert.ErrorReason)
			}
			if cert.DownloadURL != "" {
				t.Errorf("expected no download url on error, got %q", cert.DownloadURL)
			}
		})
	}
}

func TestUpdateExampleCertificateRateLimited(t *testing.T) {
	setTestConfig()
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")
	certStore := &fakeStore{example: cert}
	limiter := &fakeLimiter{exceeded: true}
	ctrl := NewXQueueController(certStore, limiter, &fakeTaskQueue{})
	app := newXQueueApp(ctrl)

	body := `{"username": "` + cert.UUID + `", "url": "https://cdn.example.com/cert.pdf"}`
	header := `{"lms_key": "` + cert.AccessKey + `"}`
	resp := postForm(t, app, "/update_example_certificate", callbackForm(body, header), nil)

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 when rate limited, got %d", resp.StatusCode)
	}
	content, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(content) != "Rate limit exceeded" {
		t.Errorf("unexpected body %q", string(content))
	}

	// The limit check happens before any lookup, so a throttled source
	// cannot probe for valid identifiers.
	if certStore.exampleLookups != 0 {
		t.Errorf("expected no store lookups when rate limited, got %d", certStore.exampleLookups)
	}
	if cert.Status != certificates.ExampleStatusPending {
		t.Errorf("expected certificate to stay pending, got %q", cert.Status)
	}
}

func TestUpdateExampleCertificateBadParameters(t *testing.T) {
	setTestConfig()

	cases := []struct {
		name        string
		body        string
		header      string
		wantMessage string
	}{
		{"missing body", "", `{"lms_key": "key"}`, "Parameter 'xqueue_body' is required."},
		{"missing header", `{"username": "abc"}`, "", "Parameter 'xqueue_header' is required."},
		{"body not json", "{not json", `{"lms_key": "key"}`, "Parameters must be JSON-serialized."},
		{"header not json", `{"username": "abc"}`, "{not json", "Parameters must be JSON-serialized."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limiter := &fakeLimiter{}
			ctrl := NewXQueueController(&fakeStore{}, limiter, &fakeTaskQueue{})
			app := newXQueueApp(ctrl)

			resp := postForm(t, app, "/update_example_certificate", callbackForm(tc.body, tc.header), nil)

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			payload := decodeJSON(t, resp)
			if payload["message"] != tc.wantMessage {
				t.Errorf("expected message %q, got %v", tc.wantMessage, payload["message"])
			}
			if limiter.ticks != 1 {
				t.Errorf("expected one bad request tick, got %d", limiter.ticks)
			}
		})
	}
}

func TestUpdateExampleCertificateLookupMissIsOpaque(t *testing.T) {
	setTestConfig()
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")

	// A wrong access key and a wrong uuid must produce identical responses.
	var responses []string
	var statuses []int
	totalTicks := 0
	for _, payload := range []struct{ uuid, key string }{
		{cert.UUID, "wrong-key"},
		{"wrong-uuid", cert.AccessKey},
	} {
		certStore := &fakeStore{example: cert}
		limiter := &fakeLimiter{}
		ctrl := NewXQueueController(certStore, limiter, &fakeTaskQueue{})
		app := newXQueueApp(ctrl)

		body := `{"username": "` + payload.uuid + `", "url": "https://cdn.example.com/cert.pdf"}`
		header := `{"lms_key": "` + payload.key + `"}`
		resp := postForm(t, app, "/update_example_certificate", callbackForm(body, header), nil)

		content, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		responses = append(responses, string(content))
		statuses = append(statuses, resp.StatusCode)
		totalTicks += limiter.ticks

		if len(certStore.callbackLogs) != 1 {
			t.Errorf("expected the failed callback to be recorded, got %d entries", len(certStore.callbackLogs))
		}
	}

	if statuses[0] != http.StatusNotFound || statuses[1] != http.StatusNotFound {
		t.Fatalf("expected 404 for both misses, got %v", statuses)
	}
	if responses[0] != responses[1] {
		t.Errorf("expected identical responses for wrong key and wrong uuid, got %q and %q", responses[0], responses[1])
	}
	if totalTicks != 2 {
		t.Errorf("expected each miss to tick the limiter once, got %d ticks", totalTicks)
	}
	if cert.Status != certificates.ExampleStatusPending {
		t.Errorf("expected certificate to stay pending, got %q", cert.Status)
	}
}

func TestUpdateExampleCertificateMissingDownloadURL(t *testing.T) {
	setTestConfig()
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")
	certStore := &fakeStore{example: cert}
	limiter := &fakeLimiter{}
	ctrl := NewXQueueController(certStore, limiter, &fakeTaskQueue{})
	app := newXQueueApp(ctrl)

	body := `{"username": "` + cert.UUID + `"}`
	header := `{"lms_key": "` + cert.AccessKey + `"}`
	resp := postForm(t, app, "/update_example_certificate", callbackForm(body, header), nil)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 when a success callback has no url, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["message"] != "Parameter 'download_url' is required for successfully generated certificates." {
		t.Errorf("unexpected message %v", payload["message"])
	}

	if cert.Status != certificates.ExampleStatusPending {
		t.Errorf("expected certificate to stay pending, got %q", cert.Status)
	}
	if len(certStore.savedExamples) != 0 {
		t.Errorf("expected no save without a download url, got %d saves", len(certStore.savedExamples))
	}
	if limiter.ticks != 1 {
		t.Errorf("expected one bad request tick, got %d", limiter.ticks)
	}
}

func TestUpdateExampleCertificateRedelivery(t *testing.T) {
	setTestConfig()
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")
	certStore := &fakeStore{example: cert}
	ctrl := NewXQueueController(certStore, &fakeLimiter{}, &fakeTaskQueue{})
	app := newXQueueApp(ctrl)

	header := `{"lms_key": "` + cert.AccessKey + `"}`

	successBody := `{"username": "` + cert.UUID + `", "url": "https://cdn.example.com/cert.pdf"}`
	resp := postForm(t, app, "/update_example_certificate", callbackForm(successBody, header), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first callback failed with %d", resp.StatusCode)
	}
	resp.Body.Close()

	errorBody := `{"username": "` + cert.UUID + `", "error": "FAILED", "error_reason": "agent crashed"}`
	resp = postForm(t, app, "/update_example_certificate", callbackForm(errorBody, header), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redelivered callback failed with %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Last write wins.
	if cert.Status != certificates.ExampleStatusError {
		t.Errorf("expected status %q after redelivery, got %q", certificates.ExampleStatusError, cert.Status)
	}
	if cert.ErrorReason != "agent crashed" {
		t.Errorf("expected the new error reason, got %q", cert.ErrorReason)
	}
	if cert.DownloadURL != "" {
		t.Errorf("expected the old download url to be cleared, got %q", cert.DownloadURL)
	}
}

func TestUpdateCertificateLegacyCallbackIsIgnored(t *testing.T) {
	setTestConfig()
	generated := &certificates.GeneratedCertificate{
		UserID:   7,
		CourseID: "course-v1:edX+DemoX+2024",
		Status:   certificates.StatusDownloadable,
		Key:      "legacy-key",
	}
	certStore := &fakeStore{
		generatedCert: generated,
		genTriple:     [3]string{"jdoe", "course-v1:edX+DemoX+2024", "legacy-key"},
	}
	ctrl := NewXQueueController(certStore, &fakeLimiter{}, &fakeTaskQueue{})
	app := newXQueueApp(ctrl)

	body := `{"username": "jdoe", "course_id": "course-v1:edX+DemoX+2024", "status": "error", "error_reason": "should be ignored"}`
	header := `{"lms_key": "legacy-key"}`
	resp := postForm(t, app, "/update_certificate", callbackForm(body, header), nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["return_code"] != float64(1) {
		t.Errorf("expected return_code 1, got %v", payload["return_code"])
	}
	if payload["content"] != "allowlist certificate" {
		t.Errorf("expected content 'allowlist certificate', got %v", payload["content"])
	}

	// The record is acknowledged but untouched.
	if generated.Status != certificates.StatusDownloadable {
		t.Errorf("expected certificate status to be unchanged, got %q", generated.Status)
	}
}

func TestUpdateCertificateLegacyLookupMiss(t *testing.T) {
	setTestConfig()
	certStore := &fakeStore{}
	ctrl := NewXQueueController(certStore, &fakeLimiter{}, &fakeTaskQueue{})
	app := newXQueueApp(ctrl)

	body := `{"username": "ghost", "course_id": "course-v1:edX+DemoX+2024"}`
	header := `{"lms_key": "unknown"}`
	resp := postForm(t, app, "/update_certificate", callbackForm(body, header), nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decodeJSON(t, resp)
	if payload["return_code"] != float64(1) {
		t.Errorf("expected return_code 1, got %v", payload["return_code"])
	}
	if payload["content"] != "unable to lookup key" {
		t.Errorf("expected content 'unable to lookup key', got %v", payload["content"])
	}
	if len(certStore.callbackLogs) != 1 {
		t.Errorf("expected the failed callback to be recorded, got %d entries", len(certStore.callbackLogs))
	}
}
