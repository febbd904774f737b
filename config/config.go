package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/models"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string
	Environment  string

	// Reconciler
	StatusSweepInterval   time.Duration
	ReminderSweepInterval time.Duration
	ReminderLead          time.Duration
	ReminderDedupWindow   time.Duration
	SweepTimeout          time.Duration
	SchedulerLockTTL      time.Duration

	// Email
	SendgridAPIKey  string
	MailFromAddress string
	MailFromName    string

	// InstanceID identifies this process when taking scheduler locks.
	// Heroku sets DYNO to "web.1", "web.2", etc.
	InstanceID string
}

// New sets up all config related services
func New() *Config {
	// a missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	environment := getEnv("ENVIRONMENT", "local")

	//setup zap logger and replace default logger
	logger, err := setLogger(environment)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Config{
		URL:          getEnv("DB_URI", "mongodb://127.0.0.1:27017"),
		DatabaseName: getEnv("DB_NAME", "court-case-portal"),
		BaseURL:      getEnv("BASE_URL", "http://localhost:8080"),
		Port:         getEnv("PORT", "8080"),
		Environment:  environment,

		StatusSweepInterval:   getDuration("STATUS_SWEEP_INTERVAL", 30*time.Second),
		ReminderSweepInterval: getDuration("REMINDER_SWEEP_INTERVAL", time.Minute),
		ReminderLead:          getDuration("REMINDER_LEAD", 5*time.Minute),
		ReminderDedupWindow:   getDuration("REMINDER_DEDUP_WINDOW", 10*time.Minute),
		SweepTimeout:          getDuration("SWEEP_TIMEOUT", 2*time.Minute),
		SchedulerLockTTL:      getDuration("SCHEDULER_LOCK_TTL", 5*time.Minute),

		SendgridAPIKey:  os.Getenv("SENDGRID_API_KEY"),
		MailFromAddress: getEnv("MAIL_FROM_ADDRESS", "no-reply@courtcaseportal.com"),
		MailFromName:    getEnv("MAIL_FROM_NAME", "Court Case Portal"),

		InstanceID: instanceID,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts either a Go duration ("90s") or a whole number of seconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	zap.S().Warnw("ignoring invalid duration", "key", key, "value", value, "default", defaultValue)
	return defaultValue
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	errText := ""
	if err != nil {
		errText = err.Error()
	}
	zap.S().Errorw(message, "status", httpStatusCode, "error", errText)

	b, _ := json.Marshal(models.ErrorMessageResponse{
		Response: models.MessageError{
			Message: message,
			Error:   errText,
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_, _ = w.Write(b)
}
