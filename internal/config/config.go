// Package config provides viper-backed runtime configuration for the
// capture pipeline (spec §4.5): one struct, a two-tier (fatal/warning)
// validator, and load/save helpers following the corpus's agent.yaml
// convention.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/screenpipe/agent/internal/logging"
)

var log = logging.L("config")

// Config is the full set of fixed-at-startup parameters the pipeline and
// its ambient stack consume.
type Config struct {
	MonitorID         uint32 `mapstructure:"monitor_id"`
	CaptureIntervalMS int    `mapstructure:"capture_interval_ms"`

	OCRBackend         string `mapstructure:"ocr_backend"`
	SaveTextFiles      bool   `mapstructure:"save_text_files"`
	TextSinkDir        string `mapstructure:"text_sink_dir"`
	UnstructuredAPIURL string `mapstructure:"unstructured_api_url"`
	UnstructuredAPIKey string `mapstructure:"unstructured_api_key"`
	TesseractPath      string `mapstructure:"tesseract_path"`
	OCRLanguage        string `mapstructure:"ocr_language"`

	StreamListenAddr string `mapstructure:"stream_listen_addr"`

	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	DispatchWorkers   int `mapstructure:"dispatch_workers"`
	DispatchQueueSize int `mapstructure:"dispatch_queue_size"`
}

// Default returns a Config with safe, conservative values: capture a frame
// every 500ms against monitor 0, OCR locally via tesseract, and serve the
// stream on localhost only.
func Default() *Config {
	return &Config{
		MonitorID:         0,
		CaptureIntervalMS: 500,

		OCRBackend:    "tesseract",
		SaveTextFiles: false,
		TextSinkDir:   filepath.Join(GetDataDir(), "text"),
		OCRLanguage:   "eng",

		StreamListenAddr: "127.0.0.1:8088",

		LogLevel:      "info",
		LogFormat:     "text",
		LogMaxSizeMB:  50,
		LogMaxBackups: 3,

		DispatchWorkers:   4,
		DispatchQueueSize: 64,
	}
}

// Load reads configuration from cfgFile (or the platform default config
// directory/"screenpipe-agent.yaml" if empty), overlays environment
// variables prefixed SCREENPIPE_, and validates the result. Warnings are
// logged and the (possibly clamped) config is returned; fatal errors abort
// with a non-nil error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("screenpipe-agent")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SCREENPIPE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// Save writes cfg to the platform default config path.
func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

// SaveTo writes cfg to cfgFile, or the platform default path if empty. Only
// the monitor, capture interval, OCR backend, text sink, Unstructured URL,
// stream address, log level/format and dispatch fields are taken from cfg;
// the API key, Tesseract path, OCR language and log file/rotation fields are
// not set from cfg before writing.
func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("monitor_id", cfg.MonitorID)
	viper.Set("capture_interval_ms", cfg.CaptureIntervalMS)
	viper.Set("ocr_backend", cfg.OCRBackend)
	viper.Set("save_text_files", cfg.SaveTextFiles)
	viper.Set("text_sink_dir", cfg.TextSinkDir)
	viper.Set("unstructured_api_url", cfg.UnstructuredAPIURL)
	viper.Set("stream_listen_addr", cfg.StreamListenAddr)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("dispatch_workers", cfg.DispatchWorkers)
	viper.Set("dispatch_queue_size", cfg.DispatchQueueSize)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "screenpipe-agent.yaml")
		if err := os.MkdirAll(configDir(), 0o700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// The API key, if present, only ever lives in the source file written
	// by the operator; restrict it to owner-only access either way.
	return os.Chmod(cfgPath, 0o600)
}

// GetDataDir returns the platform-specific data directory for the agent.
func GetDataDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "screenpipe-agent", "data")
	case "darwin":
		return "/Library/Application Support/screenpipe-agent/data"
	default:
		return "/var/lib/screenpipe-agent"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "screenpipe-agent")
	case "darwin":
		return "/Library/Application Support/screenpipe-agent"
	default:
		return "/etc/screenpipe-agent"
	}
}
