package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("RECYCLE_BACKEND_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.Backend.BaseURL != "http://localhost:3000" {
		t.Fatalf("expected default backend, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Quiz.QuestionsPerQuiz != 5 {
		t.Fatalf("expected 5 questions per quiz, got %d", cfg.Quiz.QuestionsPerQuiz)
	}
	if cfg.Session.Key != "user" {
		t.Fatalf("expected storage key user, got %q", cfg.Session.Key)
	}
}

func TestLoadParsesYAMLAndAppliesDefaults(t *testing.T) {
	t.Setenv("RECYCLE_BACKEND_URL", "")
	path := filepath.Join(t.TempDir(), "recycle.yaml")
	data := []byte(`
server:
  addr: ":9090"
backend:
  base_url: "https://api.example.com"
  timeout: 3s
model:
  dir: "/opt/models/waste"
session:
  store: sqlite
activation:
  sinks:
    - type: file_jsonl
      path: /tmp/events.jsonl
      max_bytes: 1048576
      kinds: [pickup_requested, quiz_submitted]
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Server.Addr)
	}
	if cfg.Backend.Timeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %v", cfg.Backend.Timeout)
	}
	if cfg.Model.ModelFile != "model.onnx" || cfg.Model.MetadataFile != "metadata.json" {
		t.Fatalf("expected default asset names, got %q %q", cfg.Model.ModelFile, cfg.Model.MetadataFile)
	}
	if cfg.Session.Store != "sqlite" {
		t.Fatalf("expected sqlite store, got %q", cfg.Session.Store)
	}
	if len(cfg.Activation.Sinks) != 1 || cfg.Activation.Sinks[0].Type != "file_jsonl" {
		t.Fatalf("expected one file sink, got %+v", cfg.Activation.Sinks)
	}
	if sink := cfg.Activation.Sinks[0]; sink.MaxBytes != 1<<20 || len(sink.Kinds) != 2 {
		t.Fatalf("expected rotation size and kinds, got %+v", sink)
	}
	if cfg.Activation.DeliveryTimeout != 5*time.Second {
		t.Fatalf("expected default delivery timeout, got %v", cfg.Activation.DeliveryTimeout)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv("RECYCLE_BACKEND_URL", "https://backend.example.org")
	t.Setenv("CLOUDINARY_CLOUD_NAME", "demo")
	t.Setenv("CLOUDINARY_UPLOAD_PRESET", "unsigned_preset")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://backend.example.org" {
		t.Fatalf("expected env backend url, got %q", cfg.Backend.BaseURL)
	}
	if cfg.ImageHost.CloudName != "demo" || cfg.ImageHost.UploadPreset != "unsigned_preset" {
		t.Fatalf("expected image host env overrides, got %+v", cfg.ImageHost)
	}
}
