package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServerAddress   string     `json:"serverAddress"`
	DatabasePath    string     `json:"databasePath"`
	DatabaseURL     string     `json:"databaseUrl"`
	VisitorStorage  Storage    `json:"visitorStorage"`
	DocumentStorage Storage    `json:"documentStorage"`
	Security        Security   `json:"security"`
	Notifier        Notifier   `json:"notifier"`
	SMTP            SMTPConfig `json:"smtp"`
}

// Notifier configuration for the background share delivery loop
type Notifier struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"intervalSeconds"`
	AutoStart       bool `json:"autoStart"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Storage configuration for one file store
type Storage struct {
	BasePath          string   `json:"basePath"`
	MaxFileSizeMB     int64    `json:"maxFileSizeMB"`
	AllowedExtensions []string `json:"allowedExtensions"`
}

// Security configuration
type Security struct {
	SessionDurationHours int `json:"sessionDurationHours"`
}

// SMTPConfig configures outgoing mail for password resets
type SMTPConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	FromAddress string `json:"fromAddress"`
	FromName    string `json:"fromName"`
	UseTLS      bool   `json:"useTls"`
	SkipVerify  bool   `json:"skipVerify"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "visitreg.db",
		VisitorStorage: Storage{
			BasePath:      "./visitor_photos",
			MaxFileSizeMB: 20,
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".gif", ".webp",
			},
		},
		DocumentStorage: Storage{
			BasePath:      "./documents",
			MaxFileSizeMB: 50,
			AllowedExtensions: []string{
				".pdf", ".doc", ".docx", ".xls", ".xlsx", ".txt",
				".jpg", ".jpeg", ".png",
			},
		},
		Security: Security{
			SessionDurationHours: 24,
		},
		Notifier: Notifier{
			Enabled:         true,
			IntervalSeconds: 15,
			AutoStart:       true,
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Registre des visites",
			UseTLS:   true,
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if basePath := os.Getenv("VISITOR_STORAGE_PATH"); basePath != "" {
		cfg.VisitorStorage.BasePath = basePath
	}
	if basePath := os.Getenv("DOCUMENT_STORAGE_PATH"); basePath != "" {
		cfg.DocumentStorage.BasePath = basePath
	}

	// Notifier configuration
	if enabled := os.Getenv("NOTIFIER_ENABLED"); enabled != "" {
		cfg.Notifier.Enabled = enabled == "true" || enabled == "1"
	}
	if interval := os.Getenv("NOTIFIER_INTERVAL_SECONDS"); interval != "" {
		if seconds, err := strconv.Atoi(interval); err == nil && seconds > 0 {
			cfg.Notifier.IntervalSeconds = seconds
		}
	}

	// SMTP configuration
	if host := os.Getenv("SMTP_HOST"); host != "" {
		cfg.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.SMTP.Port = p
		}
	}
	if username := os.Getenv("SMTP_USERNAME"); username != "" {
		cfg.SMTP.Username = username
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		cfg.SMTP.Password = password
	}
	if from := os.Getenv("SMTP_FROM_ADDRESS"); from != "" {
		cfg.SMTP.FromAddress = from
	}

	// Ensure storage directories exist and are absolute
	for _, storage := range []*Storage{&cfg.VisitorStorage, &cfg.DocumentStorage} {
		if err := os.MkdirAll(storage.BasePath, 0755); err != nil {
			return nil, err
		}
		absPath, err := filepath.Abs(storage.BasePath)
		if err != nil {
			return nil, err
		}
		storage.BasePath = absPath
	}

	return cfg, nil
}
