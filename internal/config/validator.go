package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	modelFormats       = []string{"ssd", "yolo"}
	summarizerBackends = []string{"cli", "http", "none"}
	speechEngines      = []string{"say", "espeak", "espeak-ng", "spd-say", "none"}
	videoAPIs          = []string{"any", "gstreamer", "v4l2", "ffmpeg"}
)

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.AnnouncementInterval < time.Millisecond {
		return fmt.Errorf("announcement_interval must be at least 1ms (got %s); use a duration such as 3s", c.AnnouncementInterval)
	}
	if c.ReinitDelay < 0 {
		return fmt.Errorf("reinit_delay must not be negative")
	}
	if strings.TrimSpace(c.VideoSource) == "" {
		return fmt.Errorf("video_source is required")
	}
	if err := oneOf("video_api", c.VideoAPI, videoAPIs); err != nil {
		return err
	}
	if err := oneOf("model_format", c.ModelFormat, modelFormats); err != nil {
		return err
	}
	if c.ModelFormat == "ssd" && c.ModelConfigPath == "" {
		return fmt.Errorf("model_config_path is required for ssd models")
	}
	if c.ModelInputSize <= 0 {
		return fmt.Errorf("model_input_size must be positive")
	}
	if c.DetectionThreshold < 0 || c.DetectionThreshold > 1 {
		return fmt.Errorf("detection_threshold must be in [0,1]")
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return fmt.Errorf("nms_threshold must be in [0,1]")
	}
	if err := oneOf("summarizer_backend", c.SummarizerBackend, summarizerBackends); err != nil {
		return err
	}
	if c.SummarizerTimeout <= 0 {
		return fmt.Errorf("summarizer_timeout must be positive")
	}
	if err := oneOf("speech_engine", c.SpeechEngine, speechEngines); err != nil {
		return err
	}
	if c.SpeechTimeout <= 0 {
		return fmt.Errorf("speech_timeout must be positive")
	}
	if c.QueueLimit < 0 {
		return fmt.Errorf("queue_limit must not be negative")
	}
	if utf8.RuneCountInString(c.QuitKey) != 1 {
		return fmt.Errorf("quit_key must be a single character (got %q)", c.QuitKey)
	}
	if c.SnapshotDirectory != "" && c.SnapshotFlushInterval <= 0 {
		return fmt.Errorf("snapshot_flush_interval must be positive")
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		return fmt.Errorf("mqtt_qos must be 0, 1 or 2")
	}
	return nil
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (allowed: %s)", field, value, strings.Join(allowed, ", "))
}
