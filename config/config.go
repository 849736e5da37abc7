package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      string
	DBName    string
	JWTKey    string
	SaltRound int

	// XQueue is the external grading/certificate queue. The LMS submits
	// example-certificate generation requests to it, and it posts results
	// back to our callback endpoints authenticated only by the
	// per-certificate access key.
	XQueueURL         string
	XQueueName        string
	XQueueAuthUser    string
	XQueueAuthPass    string
	XQueueCallbackURL string // base URL the queue uses to reach us

	RedisAddr string // asynq broker for certificate generation tasks

	// Bad-request limiter for the xqueue callback endpoints.
	RateLimitRequests int
	RateLimitMinutes  int

	CertificatesHTMLView bool   // feature switch: web certificate views enabled
	CertDownloadBase     string // base URL for generated certificate PDFs
	ExampleCertFullName  string
	ExampleStaleHours    int // pending example certs older than this are failed
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:      getEnv("PORT", "3000"),
		DBName:    getEnv("DB_NAME", "lms"),
		JWTKey:    getEnv("JWT_SECRET_KEY", "defaultSecret"),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		XQueueURL:         getEnv("XQUEUE_URL", "http://localhost:18040"),
		XQueueName:        getEnv("XQUEUE_NAME", "certificates"),
		XQueueAuthUser:    getEnv("XQUEUE_AUTH_USER", "lms"),
		XQueueAuthPass:    getEnv("XQUEUE_AUTH_PASS", "password"),
		XQueueCallbackURL: getEnv("XQUEUE_CALLBACK_URL", "http://localhost:3000"),

		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		RateLimitRequests: getEnvInt("BAD_REQUEST_RATE_LIMIT", 30),
		RateLimitMinutes:  getEnvInt("BAD_REQUEST_RATE_MINUTES", 5),

		CertificatesHTMLView: getEnvBool("CERTIFICATES_HTML_VIEW", true),
		CertDownloadBase:     getEnv("CERT_DOWNLOAD_BASE", "http://localhost:3000/certificates/download"),
		ExampleCertFullName:  getEnv("EXAMPLE_CERT_FULL_NAME", "John Doë"),
		ExampleStaleHours:    getEnvInt("EXAMPLE_CERT_STALE_HOURS", 24),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.XQueueAuthPass == "password" {
		log.Println("Warning: Using default XQUEUE_AUTH_PASS. Update it in your environment.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

// getEnvBool retrieves an environment variable as a boolean or returns the default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to bool: %v", key, err)
		return defaultValue
	}
	return boolValue
}
