package app

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type Config struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`

	Auth struct {
		JWTSecret   string `toml:"jwt_secret"`
		Issuer      string `toml:"issuer"`
		TokenTTL    string `toml:"token_ttl"`
		TokenHeader string `toml:"token_header"`
		// RedisURL moves sessions to redis; empty keeps them in the document store.
		RedisURL   string `toml:"redis_url"`
		BcryptCost int    `toml:"bcrypt_cost"`
	} `toml:"auth"`

	API struct {
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Accounts struct {
		IndustrialPrefix string `toml:"industrial_prefix"`
		AcademicPrefix   string `toml:"academic_prefix"`
		CodeAttempts     int    `toml:"code_attempts"`
	} `toml:"accounts"`

	Bootstrap struct {
		AdminEmail     string `toml:"admin_email"`
		AdminPassword  string `toml:"admin_password"`
		AdminFirstName string `toml:"admin_first_name"`
		AdminLastName  string `toml:"admin_last_name"`
	} `toml:"bootstrap"`

	Export struct {
		CredentialsFile string        `toml:"credentials_file"`
		SpreadsheetID   string        `toml:"spreadsheet_id"`
		Schedule        string        `toml:"schedule"`
		TimestampRange  string        `toml:"timestamp_range"`
		Students        []SheetTarget `toml:"students"`
	} `toml:"export"`
}

// SheetTarget names the tab a student's logbook is written to.
type SheetTarget struct {
	StudentID string `toml:"student_id"`
	SheetName string `toml:"sheet_name"`
}

// envOverrides maps environment variables onto config fields that usually hold secrets.
func (c *Config) envOverrides() map[string]*string {
	return map[string]*string{
		"LOGBOOK_PORT":               &c.Server.Port,
		"LOGBOOK_JWT_SECRET":         &c.Auth.JWTSecret,
		"LOGBOOK_REDIS_URL":          &c.Auth.RedisURL,
		"LOGBOOK_DATABASE_DSN":       &c.Database.DSN,
		"LOGBOOK_ADMIN_EMAIL":        &c.Bootstrap.AdminEmail,
		"LOGBOOK_ADMIN_PASSWORD":     &c.Bootstrap.AdminPassword,
		"LOGBOOK_SHEETS_CREDENTIALS": &c.Export.CredentialsFile,
		"LOGBOOK_SHEETS_SPREADSHEET": &c.Export.SpreadsheetID,
		"LOGBOOK_EXPORT_SCHEDULE":    &c.Export.Schedule,
	}
}

func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Error.Printf("Failed to load .env: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w",
			path,
			err,
		)
	}

	for name, field := range config.envOverrides() {
		if v, ok := os.LookupEnv(name); ok {
			*field = v
		}
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is not set, put it in config or LOGBOOK_JWT_SECRET")
	}
	if config.Auth.TokenHeader == "" {
		config.Auth.TokenHeader = "Authorization"
	}
	if config.Database.DSN == "" {
		config.Database.DSN = "sqlite://logbook.db"
	}
	if config.Database.MigrationsDir == "" {
		config.Database.MigrationsDir = "./migrations"
	}

	logger.Debug.Printf("Loaded config, database %s", config.Database.DSN)

	return &config, nil
}
