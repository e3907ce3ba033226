package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	InstanceID string `yaml:"instance_id"`

	AnnouncementInterval time.Duration `yaml:"announcement_interval"` // Debounce window between spoken summaries

	VideoSource string        `yaml:"video_source"` // Device index ("0"), file, URL or GStreamer pipeline
	VideoAPI    string        `yaml:"video_api"`    // any, gstreamer, v4l2, ffmpeg
	ReinitDelay time.Duration `yaml:"reinit_delay"` // Pause before reopening a failed source

	ModelPath          string  `yaml:"model_path"`
	ModelConfigPath    string  `yaml:"model_config_path"` // Only for SSD graphs (.pbtxt)
	ModelFormat        string  `yaml:"model_format"`      // ssd, yolo
	ModelInputSize     int     `yaml:"model_input_size"`
	LabelsPath         string  `yaml:"labels_path"`
	LabelOffset        int     `yaml:"label_offset"` // 1 for SSD graphs with a background class
	DetectionThreshold float64 `yaml:"detection_threshold"`
	NMSThreshold       float64 `yaml:"nms_threshold"`

	SummarizerBackend string        `yaml:"summarizer_backend"` // cli, http, none
	SummarizerModel   string        `yaml:"summarizer_model"`
	SummarizerURL     string        `yaml:"summarizer_url"`
	SummarizerPersona string        `yaml:"summarizer_persona"` // Empty selects the built-in cane persona
	SummarizerTimeout time.Duration `yaml:"summarizer_timeout"`

	SpeechEngine  string        `yaml:"speech_engine"` // say, espeak, espeak-ng, spd-say, none
	SpeechVoice   string        `yaml:"speech_voice"`
	SpeechTimeout time.Duration `yaml:"speech_timeout"`
	QueueLimit    int           `yaml:"queue_limit"` // 0 = unbounded

	Preview bool   `yaml:"preview"`
	QuitKey string `yaml:"quit_key"`

	LogDirectory string `yaml:"log_dir"`
	JournalDSN   string `yaml:"journal_dsn"` // SQLite path or postgres:// URL, empty disables

	SnapshotDirectory     string        `yaml:"snapshot_dir"` // Empty disables snapshots
	SnapshotLimit         int           `yaml:"snapshot_limit"`
	SnapshotFlushInterval time.Duration `yaml:"snapshot_flush_interval"`

	MonitorAddr  string `yaml:"monitor_addr"` // Empty disables the monitor server
	MonitorToken string `yaml:"monitor_token"`

	MQTTBroker string `yaml:"mqtt_broker"` // host:port, empty disables
	MQTTTopic  string `yaml:"mqtt_topic"`
	MQTTQoS    int    `yaml:"mqtt_qos"`
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "echopath"
	}

	return &Config{
		InstanceID:            hostname,
		AnnouncementInterval:  3 * time.Second,
		VideoSource:           "0",
		VideoAPI:              "any",
		ReinitDelay:           time.Second,
		ModelPath:             filepath.Join(".", "models", "yolo-tuned.onnx"),
		ModelFormat:           "yolo",
		ModelInputSize:        640,
		LabelsPath:            filepath.Join(".", "models", "coco.names"),
		DetectionThreshold:    0.5,
		NMSThreshold:          0.45,
		SummarizerBackend:     "cli",
		SummarizerModel:       "llama3.2:latest",
		SummarizerURL:         "http://localhost:11434",
		SummarizerTimeout:     30 * time.Second,
		SpeechEngine:          "say",
		SpeechTimeout:         30 * time.Second,
		Preview:               true,
		QuitKey:               "q",
		LogDirectory:          filepath.Join(".", "logs"),
		JournalDSN:            filepath.Join(".", "data", "echopath.db"),
		SnapshotLimit:         7,
		SnapshotFlushInterval: 30 * time.Second,
		MonitorAddr:           "127.0.0.1:8090",
		MQTTTopic:             "echopath/announcements",
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and the environment, in that order of precedence (lowest first).
func Load(path string) (*Config, error) {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		secondsToDurations(root)
	}
	if err := root.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// durationKeys lists the yaml keys of time.Duration fields.
var durationKeys = func() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type == reflect.TypeOf(time.Duration(0)) {
			keys[strings.Split(f.Tag.Get("yaml"), ",")[0]] = true
		}
	}
	return keys
}()

// secondsToDurations rewrites bare numbers under duration keys as seconds
// ("3" -> "3s"), matching what the environment accepts. yaml.v3 only
// decodes strings into time.Duration.
func secondsToDurations(mapping *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		if !durationKeys[key.Value] || value.Kind != yaml.ScalarNode {
			continue
		}
		if value.Tag != "!!int" && value.Tag != "!!float" {
			continue
		}
		if _, err := strconv.ParseFloat(value.Value, 64); err != nil {
			continue
		}
		value.Tag = "!!str"
		value.Value += "s"
	}
}

func (c *Config) applyEnv() {
	c.InstanceID = getEnv("INSTANCE_ID", c.InstanceID)
	c.AnnouncementInterval = getEnvAsDuration("ANNOUNCEMENT_INTERVAL", c.AnnouncementInterval)
	c.VideoSource = getEnv("VIDEO_SOURCE", c.VideoSource)
	c.VideoAPI = getEnv("VIDEO_API", c.VideoAPI)
	c.ReinitDelay = getEnvAsDuration("REINIT_DELAY", c.ReinitDelay)
	c.ModelPath = getEnv("MODEL_PATH", c.ModelPath)
	c.ModelConfigPath = getEnv("MODEL_CONFIG_PATH", c.ModelConfigPath)
	c.ModelFormat = strings.ToLower(getEnv("MODEL_FORMAT", c.ModelFormat))
	c.ModelInputSize = getEnvAsInt("MODEL_INPUT_SIZE", c.ModelInputSize)
	c.LabelsPath = getEnv("LABELS_PATH", c.LabelsPath)
	c.LabelOffset = getEnvAsInt("LABEL_OFFSET", c.LabelOffset)
	c.DetectionThreshold = getEnvAsFloat("DETECTION_THRESHOLD", c.DetectionThreshold)
	c.NMSThreshold = getEnvAsFloat("NMS_THRESHOLD", c.NMSThreshold)
	c.SummarizerBackend = strings.ToLower(getEnv("SUMMARIZER_BACKEND", c.SummarizerBackend))
	c.SummarizerModel = getEnv("SUMMARIZER_MODEL", c.SummarizerModel)
	c.SummarizerURL = getEnv("SUMMARIZER_URL", c.SummarizerURL)
	c.SummarizerPersona = getEnv("SUMMARIZER_PERSONA", c.SummarizerPersona)
	c.SummarizerTimeout = getEnvAsDuration("SUMMARIZER_TIMEOUT", c.SummarizerTimeout)
	c.SpeechEngine = strings.ToLower(getEnv("SPEECH_ENGINE", c.SpeechEngine))
	c.SpeechVoice = getEnv("SPEECH_VOICE", c.SpeechVoice)
	c.SpeechTimeout = getEnvAsDuration("SPEECH_TIMEOUT", c.SpeechTimeout)
	c.QueueLimit = getEnvAsInt("QUEUE_LIMIT", c.QueueLimit)
	c.Preview = getEnvAsBool("PREVIEW", c.Preview)
	c.QuitKey = getEnv("QUIT_KEY", c.QuitKey)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.JournalDSN = getEnvAllowEmpty("JOURNAL_DSN", c.JournalDSN)
	c.SnapshotDirectory = getEnv("SNAPSHOT_DIR", c.SnapshotDirectory)
	c.SnapshotLimit = getEnvAsInt("SNAPSHOT_LIMIT", c.SnapshotLimit)
	c.SnapshotFlushInterval = getEnvAsDuration("SNAPSHOT_FLUSH_INTERVAL", c.SnapshotFlushInterval)
	c.MonitorAddr = getEnvAllowEmpty("MONITOR_ADDR", c.MonitorAddr)
	c.MonitorToken = getEnv("MONITOR_TOKEN", c.MonitorToken)
	c.MQTTBroker = getEnv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTTopic = getEnv("MQTT_TOPIC", c.MQTTTopic)
	c.MQTTQoS = getEnvAsInt("MQTT_QOS", c.MQTTQoS)
}

// QuitKeyCode returns the key code compared against the preview's key poll.
func (c *Config) QuitKeyCode() int {
	return int([]rune(c.QuitKey)[0])
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty lets an explicitly empty variable disable a feature.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or plain seconds ("3", "0.5").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}
