package config

import (
	"os"
	"strconv"
	"time"
)

// IngestConfig tunes SMS import and duplicate detection
type IngestConfig struct {
	SimilarityThreshold float64
	SimilarityWindow    time.Duration
	SimilarityProximity time.Duration
	MaxBatchSize        int
	MaxSessionErrors    int
	ImportRateLimit     int
	ImportRateWindow    time.Duration
	HashIndexTTL        time.Duration
	TimezoneOffsetHours int
	CategoryCacheTTL    time.Duration
}

func LoadIngestConfig() *IngestConfig {
	return &IngestConfig{
		SimilarityThreshold: getEnvAsFloat("SMS_SIMILARITY_THRESHOLD", 0.8),
		SimilarityWindow:    getEnvAsDuration("SMS_SIMILARITY_WINDOW", 24*time.Hour),
		SimilarityProximity: getEnvAsDuration("SMS_SIMILARITY_PROXIMITY", 10*time.Minute),
		MaxBatchSize:        getEnvAsInt("SMS_MAX_BATCH_SIZE", 100),
		MaxSessionErrors:    getEnvAsInt("SMS_MAX_SESSION_ERRORS", 100),
		ImportRateLimit:     getEnvAsInt("SMS_IMPORT_RATE_LIMIT", 30),
		ImportRateWindow:    getEnvAsDuration("SMS_IMPORT_RATE_WINDOW", 1*time.Hour),
		HashIndexTTL:        getEnvAsDuration("SMS_HASH_INDEX_TTL", 720*time.Hour),
		TimezoneOffsetHours: getEnvAsInt("SMS_TIMEZONE_OFFSET_HOURS", 3),
		CategoryCacheTTL:    getEnvAsDuration("SMS_CATEGORY_CACHE_TTL", 5*time.Minute),
	}
}

// Location is the zone message timestamps are read in
func (c *IngestConfig) Location() *time.Location {
	if c.TimezoneOffsetHours == 3 {
		return time.FixedZone("EAT", 3*60*60)
	}
	return time.FixedZone("", c.TimezoneOffsetHours*60*60)
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
