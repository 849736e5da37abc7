package queue

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/terrylgarner/edx-platform/models/certificates"

	"github.com/go-resty/resty/v2"
)

// ExampleQueue submits example certificate generation requests to the
// external queue.
type ExampleQueue interface {
	SubmitExample(cert *certificates.ExampleCertificate) error
}

// XQueueClient talks to the certificate agent's XQueue over HTTP. Requests
// carry two form fields, xqueue_header and xqueue_body, each holding a
// JSON-serialized string; the queue later reports results by posting the same
// two-field form to our callback endpoint with the lms_key echoed back.
type XQueueClient struct {
	client      *resty.Client
	queueName   string
	callbackURL string
}

type xqueueHeader struct {
	LMSCallbackURL string `json:"lms_callback_url"`
	LMSKey         string `json:"lms_key"`
	QueueName      string `json:"queue_name"`
}

type exampleCertBody struct {
	Action      string `json:"action"`
	Username    string `json:"username"`
	CourseID    string `json:"course_id"`
	Name        string `json:"name"`
	TemplatePDF string `json:"template_pdf"`
}

type xqueueReply struct {
	ReturnCode int    `json:"return_code"`
	Content    string `json:"content"`
}

// NewXQueueClient builds a client for the queue at baseURL. Callbacks are
// addressed relative to callbackURL.
func NewXQueueClient(baseURL, queueName, callbackURL, authUser, authPass string) *XQueueClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetBasicAuth(authUser, authPass).
		SetTimeout(10 * time.Second)

	return &XQueueClient{
		client:      client,
		queueName:   queueName,
		callbackURL: strings.TrimRight(callbackURL, "/"),
	}
}

// SubmitExample asks the queue to generate an example certificate. The access
// key placed in the header is what authorizes the queue's later callback to
// update the record.
func (x *XQueueClient) SubmitExample(cert *certificates.ExampleCertificate) error {
	header, err := json.Marshal(xqueueHeader{
		LMSCallbackURL: x.callbackURL + "/update_example_certificate",
		LMSKey:         cert.AccessKey,
		QueueName:      x.queueName,
	})
	if err != nil {
		return fmt.Errorf("marshal xqueue header: %w", err)
	}

	body, err := json.Marshal(exampleCertBody{
		Action:      "create",
		Username:    cert.UUID,
		CourseID:    cert.CourseID,
		Name:        cert.FullName,
		TemplatePDF: cert.TemplatePDF,
	})
	if err != nil {
		return fmt.Errorf("marshal xqueue body: %w", err)
	}

	response, err := x.client.R().
		SetFormData(map[string]string{
			"xqueue_header": string(header),
			"xqueue_body":   string(body),
		}).
		Post("/xqueue/submit/")
	if err != nil {
		return fmt.Errorf("submit to xqueue: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		return fmt.Errorf("xqueue submit returned status %d", response.StatusCode())
	}

	var reply xqueueReply
	if err := json.Unmarshal(response.Body(), &reply); err != nil {
		return fmt.Errorf("parse xqueue reply: %w", err)
	}
	if reply.ReturnCode != 0 {
		return fmt.Errorf("xqueue rejected submission: %s", reply.Content)
	}
	return nil
}
