package main

import (
	"encoding/json"
	"flag"
	"log"

	"github.com/go-resty/resty/v2"
)

// certagent plays the queue worker during development: it posts a result
// callback for an example certificate to a running LMS, so the callback
// endpoints can be exercised without a real XQueue install.
func main() {
	lms := flag.String("lms", "http://localhost:3000", "base URL of the LMS")
	uuid := flag.String("uuid", "", "uuid of the example certificate")
	key := flag.String("key", "", "access key of the example certificate")
	url := flag.String("url", "", "download URL to report on success")
	errMsg := flag.String("error", "", "error message to report instead of success")
	flag.Parse()

	if *uuid == "" || *key == "" {
		log.Fatal("Both -uuid and -key are required")
	}
	if *url == "" && *errMsg == "" {
		log.Fatal("One of -url or -error is required")
	}

	body := map[string]interface{}{"username": *uuid}
	if *errMsg != "" {
		body["error"] = *errMsg
		body["error_reason"] = *errMsg
	} else {
		body["url"] = *url
	}
	header := map[string]interface{}{"lms_key": *key}

	rawBody, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("Failed to encode xqueue_body: %v", err)
	}
	rawHeader, err := json.Marshal(header)
	if err != nil {
		log.Fatalf("Failed to encode xqueue_header: %v", err)
	}

	client := resty.New()
	resp, err := client.R().
		SetFormData(map[string]string{
			"xqueue_body":   string(rawBody),
			"xqueue_header": string(rawHeader),
		}).
		Post(*lms + "/update_example_certificate")
	if err != nil {
		log.Fatalf("Failed to post callback: %v", err)
	}

	log.Printf("Response %d: %s", resp.StatusCode(), resp.String())
}
