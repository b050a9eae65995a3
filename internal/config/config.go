package config

import (
	"errors"
	"fmt"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the device settings.
type Config struct {
	// CaptureInterval is the pause between navigation cycles.
	CaptureInterval time.Duration `yaml:"capture_interval"`
	// PollInterval is the emergency button polling period.
	PollInterval time.Duration `yaml:"poll_interval"`
	// AlertCooldown is the minimum interval between two alerts.
	AlertCooldown time.Duration `yaml:"alert_cooldown"`
	// LocationTimeout bounds the wait for a GPS fix.
	LocationTimeout time.Duration `yaml:"location_timeout"`
	// AdviceTimeout bounds a single scene advisory call.
	AdviceTimeout time.Duration `yaml:"advice_timeout"`
	// DispatchTimeout bounds a single alert delivery.
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	// ShutdownTimeout bounds the wait for both loops after an interrupt.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// DebounceSamples is how many consecutive active polls make a press.
	DebounceSamples int `yaml:"debounce_samples"`
	// JournalFile is where alert attempts are appended.
	JournalFile string `yaml:"journal_file"`
	// StatusAddress enables the gRPC health endpoint when not empty.
	StatusAddress string `yaml:"status_address"`
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level"`

	Camera  CameraConfig  `yaml:"camera"`
	Button  ButtonConfig  `yaml:"button"`
	GPS     GPSConfig     `yaml:"gps"`
	Advisor AdvisorConfig `yaml:"advisor"`
	Speech  SpeechConfig  `yaml:"speech"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Alert   AlertConfig   `yaml:"alert"`
}

// CameraConfig selects the capture device.
type CameraConfig struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ButtonConfig describes the emergency button wiring.
type ButtonConfig struct {
	// Pin is the GPIO line name, e.g. "GPIO17".
	Pin string `yaml:"pin"`
	// ActiveLow means the pressed button pulls the line low.
	ActiveLow bool `yaml:"active_low"`
}

// GPSConfig describes the serial GPS receiver.
type GPSConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// AdvisorConfig selects the scene advisory backend.
type AdvisorConfig struct {
	// Provider is "gemini" or "openai".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// SpeechConfig configures speech synthesis and the offline fallback.
type SpeechConfig struct {
	Model string  `yaml:"model"`
	Voice string  `yaml:"voice"`
	Speed float64 `yaml:"speed"`
	// FallbackCommand is run with the text on stdin when online synthesis fails.
	FallbackCommand []string `yaml:"fallback_command"`
}

// SMTPConfig describes the mail relay used for alerts.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	From     string `yaml:"from"`
}

// AlertConfig lists who gets notified.
type AlertConfig struct {
	Recipients []string `yaml:"recipients"`
}

const (
	// DefaultConfigFilename is the default filename for device settings.
	DefaultConfigFilename = "smart-cane-settings.yaml"

	// DefaultJournalFilename is the default alert journal path.
	DefaultJournalFilename = "smart-cane-alerts.jsonl"

	// DefaultFilePermissions is the default file permission for config and journal files.
	DefaultFilePermissions = 0o600

	DefaultCaptureInterval = 5 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultAlertCooldown   = 10 * time.Second
	DefaultLocationTimeout = 10 * time.Second
	DefaultAdviceTimeout   = 20 * time.Second
	DefaultDispatchTimeout = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultDebounceSamples = 2

	// ProviderGemini selects Google Gemini as scene advisor.
	ProviderGemini = "gemini"
	// ProviderOpenAI selects OpenAI as scene advisor.
	ProviderOpenAI = "openai"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRecipientsRequired is returned when nobody would receive alerts.
	errRecipientsRequired = errors.New("at least one alert recipient must be provided")
	// errSMTPHostRequired is returned when the mail relay is missing.
	errSMTPHostRequired = errors.New("smtp host must be provided")
	// errUnknownProvider is returned for an unsupported advisor backend.
	errUnknownProvider = errors.New("unknown advisor provider")
)

// Default returns settings with every default applied and no recipients.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate applies defaults and checks the provided settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if len(cfg.Alert.Recipients) == 0 {
		return errRecipientsRequired
	}

	for _, recipient := range cfg.Alert.Recipients {
		if _, err := mail.ParseAddress(recipient); err != nil {
			return fmt.Errorf("invalid alert recipient %q: %w", recipient, err)
		}
	}

	if cfg.SMTP.Host == "" {
		return errSMTPHostRequired
	}

	switch cfg.Advisor.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q", errUnknownProvider, cfg.Advisor.Provider)
	}

	if cfg.StatusAddress == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(cfg.StatusAddress); err != nil {
		return fmt.Errorf("invalid status address: %w", err)
	}

	return nil
}

// applyDefaults fills every zero or negative option with its default.
//
//nolint:cyclop // A flat list of defaults reads best.
func applyDefaults(cfg *Config) {
	setDuration(&cfg.CaptureInterval, DefaultCaptureInterval)
	setDuration(&cfg.PollInterval, DefaultPollInterval)
	setDuration(&cfg.AlertCooldown, DefaultAlertCooldown)
	setDuration(&cfg.LocationTimeout, DefaultLocationTimeout)
	setDuration(&cfg.AdviceTimeout, DefaultAdviceTimeout)
	setDuration(&cfg.DispatchTimeout, DefaultDispatchTimeout)
	setDuration(&cfg.ShutdownTimeout, DefaultShutdownTimeout)

	if cfg.DebounceSamples <= 0 {
		cfg.DebounceSamples = DefaultDebounceSamples
	}

	if cfg.JournalFile == "" {
		cfg.JournalFile = DefaultJournalFilename
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		cfg.Camera.Width, cfg.Camera.Height = 640, 480
	}

	if cfg.Button.Pin == "" {
		// Pulled-up line on BCM 17, pressed pulls it low.
		cfg.Button.Pin = "GPIO17"
		cfg.Button.ActiveLow = true
	}

	if cfg.GPS.Port == "" {
		cfg.GPS.Port = "/dev/serial0"
	}

	if cfg.GPS.BaudRate <= 0 {
		cfg.GPS.BaudRate = 9600
	}

	if cfg.Advisor.Provider == "" {
		cfg.Advisor.Provider = ProviderGemini
	}

	if cfg.Advisor.Model == "" {
		cfg.Advisor.Model = defaultModel(cfg.Advisor.Provider)
	}

	if cfg.Speech.Model == "" {
		cfg.Speech.Model = "tts-1"
	}

	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = "alloy"
	}

	if cfg.Speech.Speed <= 0 {
		cfg.Speech.Speed = 1.5
	}

	if len(cfg.Speech.FallbackCommand) == 0 {
		cfg.Speech.FallbackCommand = []string{"festival", "--tts"}
	}

	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = 587
	}

	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
}

func setDuration(target *time.Duration, fallback time.Duration) {
	if *target <= 0 {
		*target = fallback
	}
}

func defaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o-mini"
	}

	return "gemini-1.5-pro"
}
