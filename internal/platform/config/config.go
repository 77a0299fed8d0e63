package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Server struct {
	Addr          string
	DirectoryURL  string
	MatcherURL    string
	PostgresURL   string
	Redis         RedisConfig
	JWTSigningKey string
	SessionTTL    time.Duration

	// MatchThreshold is the acceptance confidence percentage. Nominal
	// matches below it are treated as no-match.
	MatchThreshold int
}

// RedisConfig holds connection settings for the registration cache.
// An empty URL disables the cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RegistrationCacheTTL bounds how long a directory-confirmed registration may
// be served from cache.
var RegistrationCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	jwtSigningKey := getenv("JWT_SIGNING_KEY", "")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:           getenv("APPRAISER_GATEWAY_ADDR", ":8080"),
		DirectoryURL:   getenv("DIRECTORY_URL", "http://localhost:8081"),
		MatcherURL:     getenv("FACE_MATCHER_URL", "http://localhost:8082"),
		PostgresURL:    os.Getenv("POSTGRES_URL"),
		JWTSigningKey:  jwtSigningKey,
		SessionTTL:     getduration("SESSION_TTL", 8*time.Hour),
		MatchThreshold: getint("MATCH_THRESHOLD", 50),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
