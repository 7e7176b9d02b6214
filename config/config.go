package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration derived from the config file and environment variables.
type Config struct {
	HTTPPort      string
	MortalityPath string
	BaselinePath  string
	DBPath        string
	WatchInputs   bool
	ServeHTTP     bool
	StrictConfig  bool
	ConfigPath    string
	Pipeline      PipelineConfig
}

type fileConfig struct {
	HTTPPort      string             `json:"http_port" yaml:"http_port"`
	MortalityPath string             `json:"mortality_path" yaml:"mortality_path"`
	BaselinePath  string             `json:"baseline_path" yaml:"baseline_path"`
	DBPath        string             `json:"db_path" yaml:"db_path"`
	WatchInputs   *bool              `json:"watch_inputs" yaml:"watch_inputs"`
	ServeHTTP     *bool              `json:"serve_http" yaml:"serve_http"`
	Pipeline      pipelineFileConfig `json:"pipeline" yaml:"pipeline"`
}

const (
	defaultPort          = ":8000"
	defaultMortalityPath = "runtime/data/excess_deaths_by_race.csv"
	defaultBaselinePath  = "runtime/data/population_by_race.csv"
	defaultDBFile        = "runtime/excess_mortality.db"
)

// Load reads configuration from an optional .env file, the config file and
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	LoadDotEnv(getEnv("DOTENV_PATH", ".env"))

	cfg := Config{
		StrictConfig: parseBoolEnv("STRICT_CONFIG"),
		ConfigPath:   getEnv("CONFIG_PATH", filepath.Join("config", "config.yaml")),
		Pipeline:     DefaultPipelineConfig(),
	}

	fileCfg, fileErr := loadFileConfig(cfg.ConfigPath)
	if fileErr != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("config load failed (%s): %w", cfg.ConfigPath, fileErr)
		}
		log.Printf("config load failed (%s): %v (using defaults)", cfg.ConfigPath, fileErr)
	}

	pipeline, err := mergePipelineConfig(cfg.Pipeline, fileCfg.Pipeline)
	if err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config: %v (using defaults)", err)
	} else {
		cfg.Pipeline = pipeline
	}

	cfg.MortalityPath = firstNonEmpty(os.Getenv("MORTALITY_PATH"), fileCfg.MortalityPath, defaultMortalityPath)
	cfg.BaselinePath = firstNonEmpty(os.Getenv("BASELINE_PATH"), fileCfg.BaselinePath, defaultBaselinePath)
	cfg.DBPath = firstNonEmpty(os.Getenv("DB_PATH"), fileCfg.DBPath, defaultDBFile)

	cfg.HTTPPort = firstNonEmpty(os.Getenv("HTTP_PORT"), fileCfg.HTTPPort, defaultPort)
	if legacyPort := os.Getenv("PORT"); legacyPort != "" && cfg.HTTPPort == defaultPort {
		cfg.HTTPPort = legacyPort
	}
	if !strings.HasPrefix(cfg.HTTPPort, ":") {
		cfg.HTTPPort = ":" + cfg.HTTPPort
	}

	cfg.WatchInputs = boolOr(fileCfg.WatchInputs, false)
	cfg.WatchInputs = parseBoolEnvDefault("WATCH_INPUTS", cfg.WatchInputs)
	cfg.ServeHTTP = boolOr(fileCfg.ServeHTTP, true)
	cfg.ServeHTTP = parseBoolEnvDefault("SERVE_HTTP", cfg.ServeHTTP)

	if v := strings.TrimSpace(os.Getenv("PIPELINE_CUTOFF")); v != "" {
		cutoff, err := time.Parse(cutoffLayout, v)
		if err != nil {
			if cfg.StrictConfig {
				return cfg, fmt.Errorf("invalid PIPELINE_CUTOFF: %w", err)
			}
			log.Printf("invalid PIPELINE_CUTOFF=%q: %v (using %s)", v, err, cfg.Pipeline.Cutoff.Format(cutoffLayout))
		} else {
			cfg.Pipeline.Cutoff = cutoff
		}
	}
	if v := strings.TrimSpace(os.Getenv("PIPELINE_TIME_PERIOD")); v != "" {
		cfg.Pipeline.TimePeriod = v
	}
	if v := strings.TrimSpace(os.Getenv("PIPELINE_METHOD")); v != "" {
		cfg.Pipeline.Method = v
	}
	if v, ok, err := parseIntEnv("LABEL_YEAR"); err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid LABEL_YEAR: %w", err)
		}
		log.Printf("invalid LABEL_YEAR: %v (using default)", err)
	} else if ok && v > 0 {
		cfg.Pipeline.LabelYear = v
	}

	if err := validateConfig(cfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		log.Printf("config validation failed: %v (continuing)", err)
	}

	log.Printf("config: mortality=%s baseline=%s db=%s cutoff=%s period=%q method=%q",
		cfg.MortalityPath, cfg.BaselinePath, cfg.DBPath, cfg.Pipeline.Cutoff.Format(cutoffLayout), cfg.Pipeline.TimePeriod, cfg.Pipeline.Method)
	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.MortalityPath) == "" {
		return errors.New("MORTALITY_PATH is required")
	}
	if strings.TrimSpace(cfg.BaselinePath) == "" {
		return errors.New("BASELINE_PATH is required")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH is required")
	}
	return validatePipeline(cfg.Pipeline)
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return false
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return parseBoolEnv(key)
}

func parseIntEnv(key string) (int, bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false, nil
	}
	val, err := strconv.Atoi(raw)
	return val, true, err
}
