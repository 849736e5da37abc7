package queue

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/terrylgarner/edx-platform/models/certificates"
)

func TestSubmitExampleSendsTwoFieldForm(t *testing.T) {
	var gotHeader, gotBody string
	var gotUser, gotPass string
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		gotHeader = r.PostFormValue("xqueue_header")
		gotBody = r.PostFormValue("xqueue_body")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"return_code": 0, "content": ""}`))
	}))
	defer server.Close()

	client := NewXQueueClient(server.URL, "certificates", "https://lms.example.com", "lms", "secret")
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")

	if err := client.SubmitExample(cert); err != nil {
		t.Fatalf("expected submission to succeed, got %v", err)
	}

	if gotPath != "/xqueue/submit/" {
		t.Errorf("expected submission path /xqueue/submit/, got %q", gotPath)
	}
	if gotUser != "lms" || gotPass != "secret" {
		t.Errorf("expected basic auth lms:secret, got %s:%s", gotUser, gotPass)
	}

	var header xqueueHeader
	if err := json.Unmarshal([]byte(gotHeader), &header); err != nil {
		t.Fatalf("xqueue_header is not JSON-serialized: %v", err)
	}
	if header.LMSKey != cert.AccessKey {
		t.Errorf("expected lms_key %q, got %q", cert.AccessKey, header.LMSKey)
	}
	if header.LMSCallbackURL != "https://lms.example.com/update_example_certificate" {
		t.Errorf("unexpected callback url %q", header.LMSCallbackURL)
	}
	if header.QueueName != "certificates" {
		t.Errorf("expected queue name certificates, got %q", header.QueueName)
	}

	var body exampleCertBody
	if err := json.Unmarshal([]byte(gotBody), &body); err != nil {
		t.Fatalf("xqueue_body is not JSON-serialized: %v", err)
	}
	if body.Username != cert.UUID {
		t.Errorf("expected username %q, got %q", cert.UUID, body.Username)
	}
	if body.CourseID != "course-v1:edX+DemoX+2024" {
		t.Errorf("unexpected course id %q", body.CourseID)
	}
	if body.Name != "John Doë" {
		t.Errorf("unexpected name %q", body.Name)
	}
}

func TestSubmitExampleRejectedByQueue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"return_code": 1, "content": "queue 'certificates' not found"}`))
	}))
	defer server.Close()

	client := NewXQueueClient(server.URL, "certificates", "https://lms.example.com", "lms", "secret")
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")

	if err := client.SubmitExample(cert); err == nil {
		t.Fatal("expected an error when the queue rejects the submission")
	}
}

func TestSubmitExampleServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewXQueueClient(server.URL, "certificates", "https://lms.example.com", "lms", "secret")
	cert := certificates.NewExampleCertificate("course-v1:edX+DemoX+2024", "full-course", "John Doë", "certificate-template.pdf")

	if err := client.SubmitExample(cert); err == nil {
		t.Fatal("expected an error on a non-200 response")
	}
}
