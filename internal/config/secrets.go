package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variable names holding secrets.
const (
	EnvGeminiAPIKey = "GEMINI_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvSMTPPassword = "SMTP_PASSWORD"

	// DefaultEnvFilename is the dotenv file read at startup when present.
	DefaultEnvFilename = ".env"
)

// Secrets holds credentials that never live in the YAML settings.
type Secrets struct {
	GeminiAPIKey string
	OpenAIAPIKey string
	SMTPPassword string
}

// LoadSecrets seeds the environment from the dotenv file, if it exists, and
// reads the secrets. Variables already set in the environment win.
func LoadSecrets(envFile string) (*Secrets, error) {
	if envFile == "" {
		envFile = DefaultEnvFilename
	}

	err := godotenv.Load(filepath.Clean(envFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	return &Secrets{
		GeminiAPIKey: os.Getenv(EnvGeminiAPIKey),
		OpenAIAPIKey: os.Getenv(EnvOpenAIAPIKey),
		SMTPPassword: os.Getenv(EnvSMTPPassword),
	}, nil
}

// APIKey returns the key of the selected advisor provider.
func (s *Secrets) APIKey(provider string) string {
	if provider == ProviderOpenAI {
		return s.OpenAIAPIKey
	}

	return s.GeminiAPIKey
}
