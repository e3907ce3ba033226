package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AnnouncementInterval != 3*time.Second {
		t.Errorf("Expected 3s interval, got %s", cfg.AnnouncementInterval)
	}
	if cfg.VideoSource != "0" {
		t.Errorf("Expected default video source 0, got %q", cfg.VideoSource)
	}
	if cfg.QueueLimit != 0 {
		t.Errorf("Expected unbounded queue by default, got %d", cfg.QueueLimit)
	}
	if cfg.QuitKeyCode() != 'q' {
		t.Errorf("Expected quit key 'q', got %d", cfg.QuitKeyCode())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ANNOUNCEMENT_INTERVAL", "5")
	t.Setenv("SUMMARIZER_TIMEOUT", "1500ms")
	t.Setenv("PREVIEW", "false")
	t.Setenv("SPEECH_ENGINE", "ESPEAK")
	t.Setenv("DETECTION_THRESHOLD", "0.35")
	t.Setenv("JOURNAL_DSN", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AnnouncementInterval != 5*time.Second {
		t.Errorf("Expected 5s, got %s", cfg.AnnouncementInterval)
	}
	if cfg.SummarizerTimeout != 1500*time.Millisecond {
		t.Errorf("Expected 1.5s, got %s", cfg.SummarizerTimeout)
	}
	if cfg.Preview {
		t.Error("Expected preview disabled")
	}
	if cfg.SpeechEngine != "espeak" {
		t.Errorf("Expected engine lowercased to espeak, got %q", cfg.SpeechEngine)
	}
	if cfg.DetectionThreshold != 0.35 {
		t.Errorf("Expected threshold 0.35, got %v", cfg.DetectionThreshold)
	}
	if cfg.JournalDSN != "" {
		t.Errorf("Explicitly empty JOURNAL_DSN should disable the journal, got %q", cfg.JournalDSN)
	}
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echopath.yaml")
	content := `
announcement_interval: 4s
video_source: "udpsrc port=5000 ! application/x-rtp, encoding-name=H264 ! rtph264depay ! avdec_h264 ! videoconvert ! appsink"
video_api: gstreamer
model_format: ssd
model_path: ./models/frozen_inference_graph.pb
model_config_path: ./models/ssd_mobilenet.pbtxt
label_offset: 1
speech_engine: spd-say
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("SPEECH_ENGINE", "none")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AnnouncementInterval != 4*time.Second {
		t.Errorf("Expected 4s from file, got %s", cfg.AnnouncementInterval)
	}
	if cfg.VideoAPI != "gstreamer" || cfg.ModelFormat != "ssd" || cfg.LabelOffset != 1 {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.SpeechEngine != "none" {
		t.Errorf("Env should override file, got %q", cfg.SpeechEngine)
	}
	if cfg.SummarizerModel != "llama3.2:latest" {
		t.Errorf("Unset keys should keep defaults, got %q", cfg.SummarizerModel)
	}
}

func TestLoad_YAMLDurationsInSeconds(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    time.Duration
		wantErr bool
	}{
		{"int seconds", "announcement_interval: 3\n", 3 * time.Second, false},
		{"float seconds", "announcement_interval: 0.5\n", 500 * time.Millisecond, false},
		{"duration string", "announcement_interval: 1500ms\n", 1500 * time.Millisecond, false},
		{"quoted seconds", "announcement_interval: \"3\"\n", 0, true},
		{"garbage", "announcement_interval: soon\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "echopath.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.content)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.AnnouncementInterval != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, cfg.AnnouncementInterval)
			}
		})
	}
}

func TestLoad_YAMLAllDurationKeysAcceptSeconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echopath.yaml")
	content := `
reinit_delay: 2
summarizer_timeout: 10
speech_timeout: 20
snapshot_flush_interval: 45
snapshot_dir: ./snapshots
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ReinitDelay != 2*time.Second || cfg.SummarizerTimeout != 10*time.Second ||
		cfg.SpeechTimeout != 20*time.Second || cfg.SnapshotFlushInterval != 45*time.Second {
		t.Errorf("Durations not read as seconds: %+v", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero interval", func(c *Config) { c.AnnouncementInterval = 0 }},
		{"unknown model format", func(c *Config) { c.ModelFormat = "rcnn" }},
		{"ssd without config", func(c *Config) { c.ModelFormat = "ssd"; c.ModelConfigPath = "" }},
		{"unknown engine", func(c *Config) { c.SpeechEngine = "festival" }},
		{"unknown backend", func(c *Config) { c.SummarizerBackend = "openai" }},
		{"negative queue limit", func(c *Config) { c.QueueLimit = -1 }},
		{"long quit key", func(c *Config) { c.QuitKey = "quit" }},
		{"threshold above one", func(c *Config) { c.DetectionThreshold = 1.2 }},
		{"empty source", func(c *Config) { c.VideoSource = " " }},
		{"bad qos", func(c *Config) { c.MQTTQoS = 3 }},
	}

	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{"3", 3 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"250ms", 250 * time.Millisecond},
		{"2m", 2 * time.Minute},
		{"soon", 7 * time.Second},
	}

	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvAsDuration("TEST_DURATION", 7*time.Second); got != tt.expected {
			t.Errorf("getEnvAsDuration(%q) = %s, expected %s", tt.value, got, tt.expected)
		}
	}
}
