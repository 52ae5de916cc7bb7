package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/medata/medrecords/utils"
)

type Config struct {
	PostgresHost     string `validate:"required"`
	PostgresPort     int64  `validate:"required"`
	PostgresUser     string `validate:"required"`
	PostgresPassword string `validate:"required"`
	PostgresDB       string `validate:"required"`

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string `validate:"required"`
	S3Bucket           string `validate:"required"`
	S3Endpoint         string

	APIKey   string `validate:"required"`
	HTTPPort string

	// TablePKMap maps each exported table to its primary key column
	TablePKMap map[string]string
}

// Load builds the process configuration from the environment once at
// startup. Components take a *Config, there is no ambient global.
func Load() (*Config, error) {
	cfg := &Config{
		PostgresHost:     utils.GetEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     utils.GetEnvOrDefaultInt("POSTGRES_PORT", 5432),
		PostgresUser:     utils.GetEnvOrDefault("POSTGRES_USER", "postgres"),
		PostgresPassword: utils.GetEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       utils.GetEnvOrDefault("POSTGRES_DB", "postgres"),

		AWSAccessKeyID:     utils.GetEnvOrDefault("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: utils.GetEnvOrDefault("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          utils.GetEnvOrDefault("AWS_REGION", "us-east-1"),
		S3Bucket:           utils.GetEnvOrDefault("S3_BUCKET", "external-medate-exam-data"),
		S3Endpoint:         utils.GetEnvOrDefault("S3_ENDPOINT", ""),

		APIKey:   utils.GetEnvOrDefault("API_KEY", "test_api_key"),
		HTTPPort: utils.GetEnvOrDefault("HTTP_PORT", "8080"),

		TablePKMap: DefaultTablePKMap(),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return cfg, nil
}

func DefaultTablePKMap() map[string]string {
	return map[string]string{
		"admissions":          "hospitalization_case_number",
		"lab_results":         "result_id",
		"lab_tests":           "test_id",
		"patient_information": "patient_id",
	}
}

// Tables returns the exported table names in a stable order.
func (c *Config) Tables() []string {
	return []string{"admissions", "lab_results", "lab_tests", "patient_information"}
}

// PostgresURL builds the connection URL for pgx and sql-migrate.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s", c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}
