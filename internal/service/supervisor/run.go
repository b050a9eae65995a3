package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/smart-cane/internal/alert"
	"github.com/oshokin/smart-cane/internal/api/grpc/health"
	"github.com/oshokin/smart-cane/internal/button"
	"github.com/oshokin/smart-cane/internal/config"
	"github.com/oshokin/smart-cane/internal/domain/guidance"
	"github.com/oshokin/smart-cane/internal/location"
	"github.com/oshokin/smart-cane/internal/logger"
	"github.com/oshokin/smart-cane/internal/repository/journal"
	"github.com/oshokin/smart-cane/internal/service/common"
	"github.com/oshokin/smart-cane/internal/service/emergency"
	"github.com/oshokin/smart-cane/internal/service/navigation"
	"github.com/oshokin/smart-cane/internal/speech"
	"github.com/oshokin/smart-cane/internal/speech/tts"
	"github.com/oshokin/smart-cane/internal/version"
	"github.com/oshokin/smart-cane/internal/vision"
)

// Loop names, also used as status service names.
const (
	NavigationLoop = "navigation"
	EmergencyLoop  = "emergency"
)

// Options controls the smart-cane process.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// EnvFile specifies the dotenv file holding secrets.
	EnvFile string
	// LogLevel overrides the level from the settings when not empty.
	LogLevel string
}

// ErrInvalidLogLevel indicates an unknown log level name.
var ErrInvalidLogLevel = errors.New("invalid log level")

// Run loads the settings, builds the device and supervises it until ctx is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "supervisor")

	// Load configuration first, everything else depends on it.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = applyLogLevel(settings.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	secrets, err := config.LoadSecrets(opts.EnvFile)
	if err != nil {
		return fmt.Errorf("load secrets: %w", err)
	}

	// Camera and GPIO lines can have one owner only.
	if err = common.EnsureSingleInstance(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Starting smart cane", "version", version.Full())

	hardware := NewHardware()

	renderer, err := newRenderer(ctx, settings, secrets, hardware)
	if err != nil {
		return fmt.Errorf("build speech output: %w", err)
	}

	sink := speech.New(renderer)

	repo := journal.NewFileRepository(settings.JournalFile)
	logLastAlert(ctx, repo)

	status := health.NewServer(NavigationLoop, EmergencyLoop)

	supervisor := New(sink, status, hardware, settings.ShutdownTimeout,
		Loop{Name: NavigationLoop, Runner: newNavigation(ctx, settings, secrets, sink, hardware)},
		Loop{Name: EmergencyLoop, Runner: newEmergency(settings, secrets, sink, repo, hardware)},
	)

	if settings.StatusAddress == "" {
		return supervisor.Supervise(ctx)
	}

	// The status endpoint lives exactly as long as supervision.
	statusCtx, stopStatus := context.WithCancel(ctx)
	statusDone := make(chan struct{})

	go func() {
		defer close(statusDone)

		if serveErr := status.Serve(statusCtx, settings.StatusAddress); serveErr != nil {
			logger.ErrorKV(ctx, "Status server failed", "error", serveErr)
		}
	}()

	err = supervisor.Supervise(ctx)

	stopStatus()
	<-statusDone

	return err
}

// applyLogLevel sets the level from the override or the settings.
func applyLogLevel(configured, override string) error {
	name := configured
	if override != "" {
		name = override
	}

	if name == "" {
		return nil
	}

	level, ok := logger.ParseLogLevel(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, name)
	}

	logger.SetLevel(level)

	return nil
}

// newRenderer chains online synthesis, when a key is available, with the local fallback command.
func newRenderer(ctx context.Context, settings *config.Config, secrets *config.Secrets, hardware *Hardware) (speech.Renderer, error) {
	var renderers []speech.Renderer

	if secrets.OpenAIAPIKey != "" {
		audio := tts.NewSpeaker()
		hardware.Track("audio output", audio)

		synthesizer := tts.NewOpenAI(tts.OpenAIOptions{
			APIKey: secrets.OpenAIAPIKey,
			Model:  settings.Speech.Model,
			Voice:  settings.Speech.Voice,
			Speed:  settings.Speech.Speed,
		})

		renderers = append(renderers, tts.NewVoice(synthesizer, audio))
	} else {
		logger.Warn(ctx, "No OpenAI key, speaking with the local fallback only")
	}

	command, err := tts.NewCommand(settings.Speech.FallbackCommand)
	if err != nil {
		logger.WarnKV(ctx, "Local speech fallback disabled", "error", err)
	} else {
		renderers = append(renderers, command)
	}

	return tts.NewChain(renderers...)
}

// newAdvisor builds the configured scene advisor.
func newAdvisor(ctx context.Context, settings *config.Config, secrets *config.Secrets) (navigation.Advisor, error) {
	apiKey := secrets.APIKey(settings.Advisor.Provider)
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for %s advisor", settings.Advisor.Provider)
	}

	if settings.Advisor.Provider == config.ProviderOpenAI {
		return vision.NewOpenAI(apiKey, settings.Advisor.Model), nil
	}

	return vision.NewGemini(ctx, apiKey, settings.Advisor.Model)
}

// newNavigation builds the navigation loop. Without an advisor the loop fails
// to start the same way it does without a camera.
func newNavigation(
	ctx context.Context,
	settings *config.Config,
	secrets *config.Secrets,
	sink *speech.Sink,
	hardware *Hardware,
) Runner {
	advisor, err := newAdvisor(ctx, settings, secrets)
	if err != nil {
		return RunnerFunc(func(ctx context.Context) error {
			sink.Speak(ctx, guidance.PhraseNavigationFailed, guidance.PriorityRoutine)

			return fmt.Errorf("%w: scene advisor: %w", guidance.ErrFatalInitialization, err)
		})
	}

	cameras := navigation.CameraSourceFunc(func(ctx context.Context) (navigation.Camera, error) {
		camera, err := vision.OpenCamera(ctx, vision.CameraOptions{
			Device: settings.Camera.Device,
			Width:  settings.Camera.Width,
			Height: settings.Camera.Height,
		})
		if err != nil {
			return nil, err
		}

		return trackedCamera{Camera: camera, close: hardware.Track("camera", camera)}, nil
	})

	return navigation.New(cameras, advisor, sink, navigation.Options{
		CaptureInterval: settings.CaptureInterval,
		AdviceTimeout:   settings.AdviceTimeout,
	})
}

// newEmergency builds the emergency monitor.
func newEmergency(
	settings *config.Config,
	secrets *config.Secrets,
	sink *speech.Sink,
	repo journal.Repository,
	hardware *Hardware,
) Runner {
	buttons := emergency.ButtonSourceFunc(func(context.Context) (emergency.Button, error) {
		pin, err := button.Open(button.Options{
			Pin:       settings.Button.Pin,
			ActiveLow: settings.Button.ActiveLow,
		})
		if err != nil {
			return nil, err
		}

		return trackedButton{Button: pin, close: hardware.Track("gpio "+settings.Button.Pin, pin)}, nil
	})

	locator := location.NewGPS(location.Options{
		Port:     settings.GPS.Port,
		BaudRate: settings.GPS.BaudRate,
	})

	mailer := alert.NewMailer(alert.Options{
		Host:     settings.SMTP.Host,
		Port:     settings.SMTP.Port,
		Username: settings.SMTP.Username,
		Password: secrets.SMTPPassword,
		From:     settings.SMTP.From,
	})

	return emergency.New(buttons, locator, mailer, repo, sink, emergency.Options{
		PollInterval:    settings.PollInterval,
		AlertCooldown:   settings.AlertCooldown,
		LocationTimeout: settings.LocationTimeout,
		DispatchTimeout: settings.DispatchTimeout,
		DebounceSamples: settings.DebounceSamples,
		ActiveLevel:     button.ActiveLevel(settings.Button.ActiveLow),
		Recipients:      settings.Alert.Recipients,
	})
}

// logLastAlert reports the previous alert so operators see unresolved emergencies after a restart.
func logLastAlert(ctx context.Context, repo journal.Repository) {
	record, err := repo.Last(ctx)

	switch {
	case errors.Is(err, journal.ErrNotFound):
		logger.Debug(ctx, "No previous alerts")
	case err != nil:
		logger.WarnKV(ctx, "Failed to read alert journal", "error", err)
	default:
		logger.InfoKV(ctx, "Previous alert",
			"alert_id", record.Alert.ID,
			"triggered_at", record.Alert.TriggeredAt,
			"delivered", record.Delivered,
			"location", record.Alert.Coordinate.String(),
		)
	}
}

// trackedCamera closes through the hardware registry.
type trackedCamera struct {
	navigation.Camera

	close func() error
}

func (c trackedCamera) Close() error { return c.close() }

// trackedButton closes through the hardware registry.
type trackedButton struct {
	emergency.Button

	close func() error
}

func (b trackedButton) Close() error { return b.close() }
