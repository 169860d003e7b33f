package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FormRuleMode selects which rule source the form placement resolver consults.
type FormRuleMode string

const (
	FormRuleModeService         FormRuleMode = "service"
	FormRuleModeTreatmentTarget FormRuleMode = "treatment_target"
	FormRuleModeAuto            FormRuleMode = "auto"
)

// Config holds application configuration, loaded once at process start.
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	DatabaseURL    string
	CORSOrigins    []string
	AdminJWTSecret string

	// Collision window (minutes). A session occupies
	// [start - SessionPeriod, start + SessionBreak] on its day.
	SessionPeriodMinutes int
	SessionBreakMinutes  int

	// Service code of the terminal discharge report, per tenant catalog.
	DischargeServiceCode string

	// Form placement rule source.
	FormRuleMode FormRuleMode

	// Minimum absence length callers may declare, in days.
	AbsenceMinDays int

	// How often the resume sweep flips expired absences back to ongoing.
	AbsenceSweepInterval time.Duration

	// Redis catalog cache. Empty RedisAddr disables caching.
	RedisAddr       string
	RedisPassword   string
	CatalogCacheTTL time.Duration

	// Outbound email.
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string
	AdminEmail     string

	// Notification queue. Empty NotifyQueueURL selects the in-memory queue.
	UseMemoryQueue bool
	NotifyQueueURL string
	WorkerCount    int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSOrigins:    splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		SessionPeriodMinutes: getEnvAsInt("SESSION_TIME_PERIOD_MINUTES", 60),
		SessionBreakMinutes:  getEnvAsInt("SESSION_BREAK_MINUTES", 15),

		DischargeServiceCode: getEnv("DISCHARGE_SERVICE_CODE", "DISCHARGE_SUMMARY"),

		FormRuleMode: parseFormRuleMode(getEnv("FORM_RULE_MODE", "auto")),

		AbsenceMinDays:       getEnvAsInt("ABSENCE_MIN_DAYS", 21),
		AbsenceSweepInterval: getEnvAsDuration("ABSENCE_SWEEP_INTERVAL", time.Hour),

		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CatalogCacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 10*time.Minute),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Mindwell Health"),
		AdminEmail:     getEnv("ADMIN_EMAIL", ""),

		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		NotifyQueueURL: getEnv("NOTIFY_QUEUE_URL", ""),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

func parseFormRuleMode(raw string) FormRuleMode {
	switch FormRuleMode(strings.ToLower(strings.TrimSpace(raw))) {
	case FormRuleModeService:
		return FormRuleModeService
	case FormRuleModeTreatmentTarget:
		return FormRuleModeTreatmentTarget
	default:
		return FormRuleModeAuto
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
