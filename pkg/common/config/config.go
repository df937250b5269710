package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers    []string
	KafkaGroupID    string
	EscalationTopic string
	IntakeTopic     string

	// OIDC
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string

	// JWT (empty secret disables gateway auth)
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// Session store
	SessionBackend string // memory, redis, postgres
	SessionTTL     time.Duration

	// Rule tables
	RedactionRulesPath string
	RedFlagRulesPath   string
	PlaybookPath       string
	GuidelinesPath     string

	// Redaction
	AgeRedactionThreshold int

	// Retrieval / recommendation
	RetrievalTopK    int
	RecommendTimeout time.Duration

	// Report storage
	ReportStorageRoot string

	// Gateway
	GatewayRateLimitRPS   int
	GatewayRateLimitBurst int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 4*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "caremesh"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "caremesh123"),
		PostgresDB:       getEnv("POSTGRES_DB", "caremesh"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:    getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "caremesh-triage"),
		EscalationTopic: getEnv("ESCALATION_TOPIC", "escalation-events"),
		IntakeTopic:     getEnv("INTAKE_TOPIC", "intake-events"),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "caremesh"),
		JWTAudience: getEnv("JWT_AUDIENCE", "triage-api"),
		JWTTTL:      getDuration("JWT_TTL", time.Hour),

		SessionBackend: getEnv("SESSION_BACKEND", "memory"),
		SessionTTL:     getDuration("SESSION_TTL", 24*time.Hour),

		RedactionRulesPath: getEnv("REDACTION_RULES_PATH", ""),
		RedFlagRulesPath:   getEnv("REDFLAG_RULES_PATH", ""),
		PlaybookPath:       getEnv("PLAYBOOK_PATH", ""),
		GuidelinesPath:     getEnv("GUIDELINES_PATH", ""),

		AgeRedactionThreshold: getIntEnv("AGE_REDACTION_THRESHOLD", 89),

		RetrievalTopK:    getIntEnv("RETRIEVAL_TOP_K", 3),
		RecommendTimeout: getDuration("RECOMMEND_TIMEOUT", 3*time.Second),

		ReportStorageRoot: getEnv("REPORT_STORAGE_ROOT", "./storage/reports"),

		GatewayRateLimitRPS:   getIntEnv("GATEWAY_RATE_LIMIT_RPS", 50),
		GatewayRateLimitBurst: getIntEnv("GATEWAY_RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
