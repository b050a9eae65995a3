package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/smart-cane/internal/config"
	"github.com/oshokin/smart-cane/internal/logger"
	"github.com/oshokin/smart-cane/internal/service/supervisor"
	"github.com/oshokin/smart-cane/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// envFile with secrets (API keys, SMTP password).
	envFile string
	// logLevel overrides the level from the configuration file.
	logLevel string

	// rootCmd represents the base command running the device.
	rootCmd = &cobra.Command{
		Use:   "smart-cane",
		Short: "Run the smart cane: spoken navigation guidance and the emergency button.",
		Long: `Runs the smart cane controller.

The navigation loop captures a camera frame every few seconds, asks a vision
model for short directions and speaks them. The emergency monitor watches the
push button independently and emails the guardians the GPS location when it
is pressed. Both loops share one speech output; alerts always go first.

Settings are read from a YAML file, secrets (GEMINI_API_KEY, OPENAI_API_KEY,
SMTP_PASSWORD) from the environment or a dotenv file. SIGINT or SIGTERM shuts
the device down and releases the camera, the GPIO pin and the audio output.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &supervisor.Options{
				ConfigPath: configPath,
				EnvFile:    envFile,
				LogLevel:   logLevel,
			}

			return supervisor.Run(ctx, options)
		},
	}
)

// Execute runs the smart-cane CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	err := rootCmd.Execute()
	if err != nil {
		logger.ErrorKV(context.Background(), "Smart cane stopped with an error", "error", err)
	}

	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", config.DefaultEnvFilename, "path to dotenv file with secrets")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level override: debug, info, warn, error")
}
