package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Settings are the tunables of the core engine, read once from the
// environment at startup. Every value has a default so a bare .env works.
type Settings struct {
	Port       string
	MemoryMode bool

	// Similarity / aggregation
	RadiusMeters   float64
	GeoWeight      float64
	TextWeight     float64
	MergeThreshold float64

	// Escalation
	ScanInterval        time.Duration
	ReportedThreshold   time.Duration
	AckThreshold        time.Duration
	InProgressThreshold time.Duration

	// Misc
	JurisdictionsFile string
	ReportRateLimit   int
}

// LoadSettings reads the environment, falling back to defaults.
func LoadSettings() Settings {
	return Settings{
		Port:       envString("PORT", "8080"),
		MemoryMode: envString("MEMORY_MODE", "") == "true",

		RadiusMeters:   envFloat("SIMILARITY_RADIUS_METERS", 150),
		GeoWeight:      envFloat("SIMILARITY_GEO_WEIGHT", 0.5),
		TextWeight:     envFloat("SIMILARITY_TEXT_WEIGHT", 0.5),
		MergeThreshold: envFloat("MERGE_THRESHOLD", 0.75),

		ScanInterval:        envDuration("ESCALATION_SCAN_INTERVAL", 10*time.Minute),
		ReportedThreshold:   envDuration("ESCALATION_REPORTED_THRESHOLD", 72*time.Hour),
		AckThreshold:        envDuration("ESCALATION_ACKNOWLEDGED_THRESHOLD", 7*24*time.Hour),
		InProgressThreshold: envDuration("ESCALATION_IN_PROGRESS_THRESHOLD", 14*24*time.Hour),

		JurisdictionsFile: envString("JURISDICTIONS_FILE", "config/jurisdictions.yaml"),
		ReportRateLimit:   envInt("REPORT_RATE_LIMIT", 10),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}
