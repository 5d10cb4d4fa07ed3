package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// PipelineConfig bounds one transcription request: upload limits, format
// allow-list, worker pool size, and the per-request deadline.
type PipelineConfig struct {
	Workers           int      `yaml:"workers"`
	MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
	SupportedFormats  []string `yaml:"supported_formats"`
	TargetSampleRate  int      `yaml:"target_sample_rate"`
	TempDir           string   `yaml:"temp_dir"`
	RequestTimeoutSec int      `yaml:"request_timeout_sec"`
}

type SeparationConfig struct {
	Mode    string `yaml:"mode"` // mock, exec
	Command string `yaml:"command"`
	Model   string `yaml:"model"`
	Method  string `yaml:"method"`
}

type ASRConfig struct {
	Mode             string `yaml:"mode"` // mock, exec
	Command          string `yaml:"command"`
	ModelDir         string `yaml:"model_dir"`
	DefaultModelSize string `yaml:"default_model_size"`
	DefaultLanguage  string `yaml:"default_language"`
}

type DeviceConfig struct {
	Preference   string `yaml:"preference"` // auto, cpu, accelerator
	ProbeCommand string `yaml:"probe_command"`
}

type RequestStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRequests   int    `yaml:"max_requests"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	ServiceName  string             `yaml:"service_name"`
	Environment  string             `yaml:"environment"`
	HTTP         HTTPConfig         `yaml:"http"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Bus          BusConfig          `yaml:"bus"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Separation   SeparationConfig   `yaml:"separation"`
	ASR          ASRConfig          `yaml:"asr"`
	Device       DeviceConfig       `yaml:"device"`
	RequestStore RequestStoreConfig `yaml:"request_store"`
}

func Default() Config {
	return Config{
		ServiceName: "scribe-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Pipeline: PipelineConfig{
			Workers:           4,
			MaxFileSizeMB:     100,
			SupportedFormats:  []string{"wav", "mp3", "m4a", "flac", "ogg"},
			TargetSampleRate:  16000,
			TempDir:           os.TempDir(),
			RequestTimeoutSec: 300,
		},
		Separation: SeparationConfig{
			Mode:   "mock",
			Model:  "htdemucs_ft",
			Method: "demucs",
		},
		ASR: ASRConfig{
			Mode:             "mock",
			DefaultModelSize: "small",
			DefaultLanguage:  "en",
		},
		Device: DeviceConfig{
			Preference: "auto",
		},
		RequestStore: RequestStoreConfig{
			Path:          "./data/scribe-requests.db",
			RetentionMode: "ephemeral",
			RetentionDays: 30,
			MaxRequests:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServiceName, "SCRIBE_SERVICE_NAME")
	overrideString(&cfg.Environment, "SCRIBE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "SCRIBE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "SCRIBE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "SCRIBE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "SCRIBE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "SCRIBE_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "SCRIBE_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "SCRIBE_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "SCRIBE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "SCRIBE_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "SCRIBE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "SCRIBE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "SCRIBE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "SCRIBE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "SCRIBE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "SCRIBE_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Pipeline.Workers, "SCRIBE_PIPELINE_WORKERS")
	overrideInt(&cfg.Pipeline.MaxFileSizeMB, "SCRIBE_PIPELINE_MAX_FILE_SIZE_MB")
	overrideStringSlice(&cfg.Pipeline.SupportedFormats, "SCRIBE_PIPELINE_SUPPORTED_FORMATS")
	overrideInt(&cfg.Pipeline.TargetSampleRate, "SCRIBE_PIPELINE_TARGET_SAMPLE_RATE")
	overrideString(&cfg.Pipeline.TempDir, "SCRIBE_PIPELINE_TEMP_DIR")
	overrideInt(&cfg.Pipeline.RequestTimeoutSec, "SCRIBE_PIPELINE_REQUEST_TIMEOUT_SEC")
	overrideString(&cfg.Separation.Mode, "SCRIBE_SEPARATION_MODE")
	overrideString(&cfg.Separation.Command, "SCRIBE_SEPARATION_COMMAND")
	overrideString(&cfg.Separation.Model, "SCRIBE_SEPARATION_MODEL")
	overrideString(&cfg.Separation.Method, "SCRIBE_SEPARATION_METHOD")
	overrideString(&cfg.ASR.Mode, "SCRIBE_ASR_MODE")
	overrideString(&cfg.ASR.Command, "SCRIBE_ASR_COMMAND")
	overrideString(&cfg.ASR.ModelDir, "SCRIBE_ASR_MODEL_DIR")
	overrideString(&cfg.ASR.DefaultModelSize, "SCRIBE_ASR_DEFAULT_MODEL_SIZE")
	overrideString(&cfg.ASR.DefaultLanguage, "SCRIBE_ASR_DEFAULT_LANGUAGE")
	overrideString(&cfg.Device.Preference, "SCRIBE_DEVICE_PREFERENCE")
	overrideString(&cfg.Device.ProbeCommand, "SCRIBE_DEVICE_PROBE_COMMAND")
	overrideString(&cfg.RequestStore.Path, "SCRIBE_REQUEST_STORE_PATH")
	overrideString(&cfg.RequestStore.RetentionMode, "SCRIBE_REQUEST_STORE_RETENTION_MODE")
	overrideInt(&cfg.RequestStore.RetentionDays, "SCRIBE_REQUEST_STORE_RETENTION_DAYS")
	overrideInt(&cfg.RequestStore.MaxRequests, "SCRIBE_REQUEST_STORE_MAX_REQUESTS")
	overrideBool(&cfg.RequestStore.VacuumOnStart, "SCRIBE_REQUEST_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServiceName == "" {
		return errors.New("service_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Pipeline.Workers <= 0 {
		return errors.New("pipeline.workers must be >= 1")
	}
	if cfg.Pipeline.MaxFileSizeMB <= 0 {
		return errors.New("pipeline.max_file_size_mb must be positive")
	}
	if len(cfg.Pipeline.SupportedFormats) == 0 {
		return errors.New("pipeline.supported_formats must not be empty")
	}
	if cfg.Pipeline.TargetSampleRate <= 0 {
		return errors.New("pipeline.target_sample_rate must be positive")
	}
	if cfg.Pipeline.RequestTimeoutSec <= 0 {
		return errors.New("pipeline.request_timeout_sec must be positive")
	}
	switch cfg.Separation.Mode {
	case "mock", "exec":
	default:
		return errors.New("separation.mode must be one of mock|exec")
	}
	if cfg.Separation.Mode == "exec" && cfg.Separation.Command == "" {
		return errors.New("separation.command must be set when mode=exec")
	}
	if cfg.Separation.Method == "" {
		return errors.New("separation.method must not be empty")
	}
	switch cfg.ASR.Mode {
	case "mock", "exec":
	default:
		return errors.New("asr.mode must be one of mock|exec")
	}
	if cfg.ASR.Mode == "exec" && cfg.ASR.Command == "" {
		return errors.New("asr.command must be set when mode=exec")
	}
	switch cfg.Device.Preference {
	case "auto", "cpu", "accelerator":
	default:
		return errors.New("device.preference must be one of auto|cpu|accelerator")
	}
	if cfg.RequestStore.Path == "" {
		return errors.New("request_store.path must not be empty")
	}
	switch cfg.RequestStore.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("request_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.RequestStore.RetentionDays < 0 {
		return errors.New("request_store.retention_days must be >= 0")
	}
	return nil
}
