package chroma

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	URL        string
	Collection string
	VectorDim  int
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid chroma config"
	}
	switch e.Code {
	case ConfigErrorMissingURL:
		return "CHROMA_URL is required"
	case ConfigErrorInvalidURL:
		return fmt.Sprintf(
			"invalid CHROMA_URL=%q; expected absolute URL like http://chroma:8000",
			e.Value,
		)
	case ConfigErrorMissingCollection:
		return "CHROMA_COLLECTION is required"
	case ConfigErrorInvalidVectorDim:
		return fmt.Sprintf(
			"invalid CHROMA_VECTOR_DIM=%q; expected positive integer",
			e.Value,
		)
	default:
		return "invalid chroma config"
	}
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

const defaultCollection = "curio_knowledge"

func ResolveConfigFromEnv() (Config, error) {
	rawDim := strings.TrimSpace(os.Getenv("CHROMA_VECTOR_DIM"))
	dim := 0
	if rawDim != "" {
		parsed, err := strconv.Atoi(rawDim)
		if err != nil {
			return Config{}, &ConfigError{
				Code:  ConfigErrorInvalidVectorDim,
				Value: rawDim,
				Cause: err,
			}
		}
		dim = parsed
	}

	cfg := Config{
		URL:        strings.TrimSpace(os.Getenv("CHROMA_URL")),
		Collection: strings.TrimSpace(os.Getenv("CHROMA_COLLECTION")),
		VectorDim:  dim,
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates a Chroma config.
// VectorDim may be zero, in which case dimension checks on fetched vectors are skipped.
func ValidateConfig(cfg Config) error {
	if cfg.URL == "" {
		return &ConfigError{Code: ConfigErrorMissingURL}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
		return &ConfigError{
			Code:  ConfigErrorInvalidURL,
			Value: cfg.URL,
			Cause: err,
		}
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		return &ConfigError{Code: ConfigErrorMissingCollection}
	}
	if cfg.VectorDim < 0 {
		return &ConfigError{
			Code:  ConfigErrorInvalidVectorDim,
			Value: strconv.Itoa(cfg.VectorDim),
		}
	}
	return nil
}
