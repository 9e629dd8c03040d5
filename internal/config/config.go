package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for VitaLink
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Assistant AssistantConfig `yaml:"assistant"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Plots     PlotsConfig     `yaml:"plots"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port        int    `yaml:"port"`
	Environment string `yaml:"environment"`
}

// GatewayConfig holds the remote telemetry gateway link configuration
type GatewayConfig struct {
	URL               string        `yaml:"url"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	VitalsTimeout     time.Duration `yaml:"vitals_timeout"`
}

// AssistantConfig holds the conversational-answer service configuration
type AssistantConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// SensorsConfig holds the wearable ingest log configuration
type SensorsConfig struct {
	PatientID string `yaml:"patient_id"`
	CSVPath   string `yaml:"csv_path"`
}

// PlotsConfig holds plot artifact output configuration
type PlotsConfig struct {
	Dir string `yaml:"dir"`
}

// AuditConfig holds fall-alert audit persistence configuration
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := LoadFromEnv()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvInt("PORT", 5001),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Gateway: GatewayConfig{
			URL:               getEnv("GATEWAY_URL", "http://10.127.124.254:5000"),
			HandshakeTimeout:  getEnvDuration("GATEWAY_HANDSHAKE_TIMEOUT", 10*time.Second),
			RetryAttempts:     getEnvInt("GATEWAY_RETRY_ATTEMPTS", 3),
			RetryBackoff:      getEnvDuration("GATEWAY_RETRY_BACKOFF", 3*time.Second),
			ReconnectInterval: getEnvDuration("GATEWAY_RECONNECT_INTERVAL", 30*time.Second),
			VitalsTimeout:     getEnvDuration("GATEWAY_VITALS_TIMEOUT", 5*time.Second),
		},
		Assistant: AssistantConfig{
			BaseURL:     getEnv("ASSISTANT_BASE_URL", "https://api.openai.com"),
			APIKey:      getEnv("OPENAI_KEY", ""),
			Model:       getEnv("ASSISTANT_MODEL", "gpt-3.5-turbo"),
			Temperature: getEnvFloat("ASSISTANT_TEMPERATURE", 0.2),
			MaxTokens:   getEnvInt("ASSISTANT_MAX_TOKENS", 500),
			Timeout:     getEnvDuration("ASSISTANT_TIMEOUT", 5*time.Second),
		},
		Sensors: SensorsConfig{
			PatientID: getEnv("PATIENT_ID", "00001"),
			CSVPath:   getEnv("SENSOR_CSV_PATH", "./data/patient_00001.csv"),
		},
		Plots: PlotsConfig{
			Dir: getEnv("PLOT_DIR", "./data/plots"),
		},
		Audit: AuditConfig{
			Enabled: getEnvBool("AUDIT_ENABLED", false),
			DBPath:  getEnv("AUDIT_DB_PATH", "./data/audit"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
