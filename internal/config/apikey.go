package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const envAPIKey = "DEEPFEED_API_KEY"

// providerEnv maps hosted providers to the variable their own SDKs read.
var providerEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// NeedsAPIKey reports whether the configured provider is a hosted API.
func (g GenerationConfig) NeedsAPIKey() bool {
	_, ok := providerEnv[g.Provider]
	return ok
}

// ResolveAPIKey finds the API key for the configured provider. Lookup order is
// the config value, DEEPFEED_API_KEY, the provider's own variable, then a
// .env file in dotenvDir. Providers that need no key return "".
func (g GenerationConfig) ResolveAPIKey(dotenvDir string) (string, error) {
	if !g.NeedsAPIKey() {
		return "", nil
	}
	if g.APIKey != "" {
		return g.APIKey, nil
	}
	names := []string{envAPIKey, providerEnv[g.Provider]}
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	if dotenvDir != "" {
		env, err := godotenv.Read(filepath.Join(dotenvDir, ".env"))
		if err == nil {
			for _, name := range names {
				if v := env[name]; v != "" {
					return v, nil
				}
			}
		}
	}
	return "", fmt.Errorf("%w: no API key for provider %q (set %s or %s)",
		ErrConfigurationMissing, g.Provider, envAPIKey, providerEnv[g.Provider])
}
