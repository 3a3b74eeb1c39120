package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transport names accepted in TRANSPORT.
const (
	TransportStandard  = "standard"
	TransportChromeTLS = "chrome-tls"
	TransportBrowser   = "browser"
)

// Pacing names accepted in PACING.
const (
	PacingSleep = "sleep"
	PacingRate  = "rate"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL        string
	Origin         string
	Transport      string
	RequestTimeout time.Duration
	ChromeBin      string

	FiltersPath  string
	MaxPages     int
	DelaySeconds float64
	Pacing       string

	OutputDir     string
	OutputFile    string
	LatestFile    string
	CSVOutputPath string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	NATSURL     string
	NATSSubject string

	LogLevel string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		BaseURL:        getEnv("BILBASEN_API_URL", "https://www.bilbasen.dk/api/search/by-request"),
		Origin:         getEnv("BILBASEN_ORIGIN", "https://www.bilbasen.dk"),
		Transport:      strings.ToLower(getEnv("TRANSPORT", TransportStandard)),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		ChromeBin:      getEnv("CHROME_BIN", ""),

		FiltersPath:  getEnv("FILTERS_PATH", ""),
		MaxPages:     getEnvInt("MAX_PAGES", 0),
		DelaySeconds: getEnvFloat("DELAY_SECONDS", 1.0),
		Pacing:       strings.ToLower(getEnv("PACING", PacingSleep)),

		OutputDir:     getEnv("OUTPUT_DIR", "data"),
		OutputFile:    getEnv("OUTPUT_FILE", ""),
		LatestFile:    getEnv("LATEST_FILE", "latest_cars.json"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", ""),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "bilbasen"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		NATSURL:     getEnv("NATS_URL", ""),
		NATSSubject: getEnv("NATS_SUBJECT", "bilbasen.snapshot.written"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Delay returns the inter-request pause as a Duration.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
