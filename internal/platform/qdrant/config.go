package qdrant

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	URL       string
	VectorDim int
	Distance  string
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL       ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL       ConfigErrorCode = "invalid_url"
	ConfigErrorMissingVectorDim ConfigErrorCode = "missing_vector_dim"
	ConfigErrorInvalidVectorDim ConfigErrorCode = "invalid_vector_dim"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "QDRANT_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf(
			"invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333",
			e.Value,
		)
	case ConfigErrorMissingVectorDim:
		return "QDRANT_VECTOR_DIM is required and must be a positive integer"
	case ConfigErrorInvalidVectorDim:
		return fmt.Sprintf(
			"invalid QDRANT_VECTOR_DIM=%q; expected positive integer",
			e.Value,
		)
	default:
		return "invalid qdrant config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ResolveConfigFromEnv() (Config, error) {
	cfg := Config{
		URL:      strings.TrimSpace(os.Getenv("QDRANT_URL")),
		Distance: strings.TrimSpace(os.Getenv("QDRANT_DISTANCE")),
	}
	if cfg.Distance == "" {
		cfg.Distance = "Cosine"
	}

	dimRaw := strings.TrimSpace(os.Getenv("QDRANT_VECTOR_DIM"))
	if dimRaw == "" {
		return Config{}, &ConfigError{Code: ConfigErrorMissingVectorDim}
	}
	dim, err := strconv.Atoi(dimRaw)
	if err != nil || dim <= 0 {
		return Config{}, &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: dimRaw, Cause: err}
	}
	cfg.VectorDim = dim

	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL, Cause: err}
	}
	if cfg.VectorDim <= 0 {
		return &ConfigError{Code: ConfigErrorMissingVectorDim}
	}
	return nil
}
