package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Port        string
	Debug       bool
	CORSOrigins []string

	CollectorTimeout time.Duration

	// MySQLDSN enables the gorm store; empty keeps results in memory.
	MySQLDSN string

	// RedisAddr enables the Redis dedup cache; empty uses the in-memory FIFO cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DedupTTL      time.Duration
	DedupCapacity int

	KafkaBrokers []string

	// S3Bucket enables S3 image storage; empty stores uploads under UploadDir.
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Profile      string
	S3UsePathStyle bool
	UploadDir      string

	FactCheckAPIKey string
	VisionAPIKey    string
	GoogleADC       bool
	CohereAPIKey    string
	FeedPresets     []string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	// Missing .env is not an error
	_ = godotenv.Load()

	cfg := Config{
		Port:             getEnvOrDefault("PORT", "8080"),
		Debug:            getEnvBool("DEBUG", false),
		CORSOrigins:      getEnvList("CORS_ORIGINS"),
		CollectorTimeout: getEnvDuration("COLLECTOR_TIMEOUT", CollectorTimeout),
		MySQLDSN:         strings.TrimSpace(os.Getenv("MYSQL_DSN")),
		RedisAddr:        strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:    os.Getenv("REDIS_PASS"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		DedupTTL:         getEnvDuration("DEDUP_TTL", DedupTTL),
		DedupCapacity:    getEnvInt("DEDUP_CAPACITY", DedupCapacity),
		S3Bucket:         strings.TrimSpace(os.Getenv("S3_BUCKET")),
		S3Prefix:         strings.TrimSpace(os.Getenv("S3_PREFIX")),
		S3Region:         strings.TrimSpace(os.Getenv("S3_REGION")),
		S3Profile:        strings.TrimSpace(os.Getenv("S3_PROFILE")),
		S3UsePathStyle:   getEnvBool("S3_USE_PATH_STYLE", false),
		UploadDir:        getEnvOrDefault("UPLOAD_DIR", UploadDir),
		FactCheckAPIKey:  strings.TrimSpace(os.Getenv("GOOGLE_FACT_CHECK_API_KEY")),
		VisionAPIKey:     strings.TrimSpace(os.Getenv("GOOGLE_VISION_API_KEY")),
		GoogleADC:        getEnvBool("GOOGLE_USE_ADC", false),
		CohereAPIKey:     strings.TrimSpace(os.Getenv("COHERE_API_KEY")),
		FeedPresets:      getEnvList("FACTCHECK_FEEDS"),
	}
	if brokers := getEnvList("KAFKA_BOOTSTRAP_SERVERS"); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func getEnvList(key string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
