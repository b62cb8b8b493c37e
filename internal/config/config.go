package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds recycle configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Model      ModelConfig      `yaml:"model"`
	Backend    BackendConfig    `yaml:"backend"`
	ImageHost  ImageHostConfig  `yaml:"image_host"`
	Location   LocationConfig   `yaml:"location"`
	Session    SessionConfig    `yaml:"session"`
	Quiz       QuizConfig       `yaml:"quiz"`
	Activation ActivationConfig `yaml:"activation"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`             // HTTP listen address, e.g. ":8080"
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"` // multipart image limit
	MaxInFlight       int           `yaml:"max_in_flight"`    // concurrent classify/pickup requests; excess get 429
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

// ModelConfig points at the classifier asset pair.
type ModelConfig struct {
	Dir               string `yaml:"dir"`
	ModelFile         string `yaml:"model_file"`          // e.g. "model.onnx"
	MetadataFile      string `yaml:"metadata_file"`       // e.g. "metadata.json"
	SharedLibraryPath string `yaml:"shared_library_path"` // onnxruntime library; env wins
	InputName         string `yaml:"input_name"`          // discovered from the model when empty
	OutputName        string `yaml:"output_name"`
	IntraOpThreads    int    `yaml:"intra_op_threads"`
}

// BackendConfig describes the external service behind /class-info, /login and /upload.
type BackendConfig struct {
	BaseURL          string        `yaml:"base_url"`
	BaseURLEnv       string        `yaml:"base_url_env"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

type ImageHostConfig struct {
	BaseURL              string        `yaml:"base_url"` // e.g. "https://api.cloudinary.com"
	CloudName            string        `yaml:"cloud_name"`
	CloudNameEnv         string        `yaml:"cloud_name_env"`
	UploadPreset         string        `yaml:"upload_preset"`
	UploadPresetEnv      string        `yaml:"upload_preset_env"`
	Timeout              time.Duration `yaml:"timeout"`
	AllowPrivateNetworks bool          `yaml:"allow_private_networks"`
}

// LocationConfig backs the pickup locator. Disabled behaves like a denied permission prompt.
type LocationConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Latitude  float64       `yaml:"latitude"`
	Longitude float64       `yaml:"longitude"`
	Timeout   time.Duration `yaml:"timeout"`
}

type SessionConfig struct {
	Store string `yaml:"store"` // file | sqlite
	Dir   string `yaml:"dir"`
	Key   string `yaml:"key"`
}

type QuizConfig struct {
	BankPath         string        `yaml:"bank_path"` // empty uses the built-in bank
	QuestionsPerQuiz int           `yaml:"questions_per_quiz"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	LeaderboardSize  int           `yaml:"leaderboard_size"`
}

type ActivationConfig struct {
	Stdout          bool                   `yaml:"stdout"`
	QueueSize       int                    `yaml:"queue_size"`
	Workers         int                    `yaml:"workers"`
	ShutdownTimeout time.Duration          `yaml:"shutdown_timeout"`
	DeliveryTimeout time.Duration          `yaml:"delivery_timeout"`
	Sinks           []ActivationSinkConfig `yaml:"sinks"`
}

type ActivationSinkConfig struct {
	Type    string            `yaml:"type"` // file_jsonl | webhook
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
	// Kinds limits the sink to these event kinds. Empty means all kinds.
	Kinds []string `yaml:"kinds"`
	// MaxBytes rotates a file_jsonl sink once it would grow past this size.
	MaxBytes int64 `yaml:"max_bytes"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}
	if cfg.Server.MaxInFlight <= 0 {
		cfg.Server.MaxInFlight = 4
	}
	if cfg.Server.ReadHeaderTimeout <= 0 {
		cfg.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	if cfg.Model.Dir == "" {
		cfg.Model.Dir = "model"
	}
	if cfg.Model.ModelFile == "" {
		cfg.Model.ModelFile = "model.onnx"
	}
	if cfg.Model.MetadataFile == "" {
		cfg.Model.MetadataFile = "metadata.json"
	}

	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:3000"
	}
	if cfg.Backend.BaseURLEnv == "" {
		cfg.Backend.BaseURLEnv = "RECYCLE_BACKEND_URL"
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Backend.MaxResponseBytes <= 0 {
		cfg.Backend.MaxResponseBytes = 1 << 20
	}

	if cfg.ImageHost.BaseURL == "" {
		cfg.ImageHost.BaseURL = "https://api.cloudinary.com"
	}
	if cfg.ImageHost.CloudNameEnv == "" {
		cfg.ImageHost.CloudNameEnv = "CLOUDINARY_CLOUD_NAME"
	}
	if cfg.ImageHost.UploadPresetEnv == "" {
		cfg.ImageHost.UploadPresetEnv = "CLOUDINARY_UPLOAD_PRESET"
	}
	if cfg.ImageHost.Timeout <= 0 {
		cfg.ImageHost.Timeout = 30 * time.Second
	}

	if cfg.Location.Timeout <= 0 {
		cfg.Location.Timeout = 10 * time.Second
	}

	if cfg.Session.Store == "" {
		cfg.Session.Store = "file"
	}
	if cfg.Session.Dir == "" {
		cfg.Session.Dir = ".recycle"
	}
	if cfg.Session.Key == "" {
		cfg.Session.Key = "user"
	}

	if cfg.Quiz.QuestionsPerQuiz <= 0 {
		cfg.Quiz.QuestionsPerQuiz = 5
	}
	if cfg.Quiz.SessionTTL <= 0 {
		cfg.Quiz.SessionTTL = 30 * time.Minute
	}
	if cfg.Quiz.LeaderboardSize <= 0 {
		cfg.Quiz.LeaderboardSize = 10
	}

	if cfg.Activation.QueueSize <= 0 {
		cfg.Activation.QueueSize = 1000
	}
	if cfg.Activation.Workers <= 0 {
		cfg.Activation.Workers = 1
	}
	if cfg.Activation.ShutdownTimeout <= 0 {
		cfg.Activation.ShutdownTimeout = 2 * time.Second
	}
	if cfg.Activation.DeliveryTimeout <= 0 {
		cfg.Activation.DeliveryTimeout = 5 * time.Second
	}
}

// applyEnvOverrides lets secrets and deployment-specific values come from the
// environment. Env wins over the file.
func applyEnvOverrides(cfg *Config) {
	if v := envValue(cfg.Backend.BaseURLEnv); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := envValue(cfg.ImageHost.CloudNameEnv); v != "" {
		cfg.ImageHost.CloudName = v
	}
	if v := envValue(cfg.ImageHost.UploadPresetEnv); v != "" {
		cfg.ImageHost.UploadPreset = v
	}
}

func envValue(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}
