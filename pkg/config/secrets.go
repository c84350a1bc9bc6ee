package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// LoadWithSecrets loads configuration with separate secrets file support.
// Precedence: flags > ENV > secrets file > config file > defaults
//
// Example:
//
//	config.yaml:
//	  cosmos:
//	    endpoint: https://account.documents.azure.com:443/
//	    database: towbook
//
//	secrets.yaml:
//	  cosmos:
//	    key: <account key>
//
// The secrets file is optional and automatically discovered:
// - If configFile is "config.yaml", looks for "secrets.yaml" in same directory
// - Can be explicitly set via <ENV_PREFIX>_SECRETS_FILE (defaults to COSMOSKIT_SECRETS_FILE)
//
// The second return value holds only the values read from the secrets file, or nil.
func (l *ViperLoader) LoadWithSecrets() (*Config, *Config, error) {
	return l.load(true)
}

func (l *ViperLoader) mergeSecrets(v *viper.Viper) (*Config, error) {
	secretsFile, _, err := l.discoverSecretsFile()
	if err != nil {
		return nil, err
	}
	if secretsFile == "" {
		return nil, nil
	}

	secretsViper := viper.New()
	secretsViper.SetConfigFile(secretsFile)
	if err := secretsViper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
	}
	var secrets Config
	if err := secretsViper.Unmarshal(&secrets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secrets file %s: %w", secretsFile, err)
	}
	if err := v.MergeConfigMap(secretsViper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge secrets: %w", err)
	}
	return &secrets, nil
}

// discoverSecretsFile finds the secrets file using these rules:
// 1. Check <ENV_PREFIX>_SECRETS_FILE (default COSMOSKIT_SECRETS_FILE)
// 2. If configFile is set, look for secrets.{ext} in same directory
// 3. Look for secrets.yaml in current directory
// Returns the path, whether it came from explicit env var, and an error for invalid explicit env values.
func (l *ViperLoader) discoverSecretsFile() (string, bool, error) {
	secretsEnv := l.prefixedEnv("SECRETS_FILE")
	if rawSecretsFile, ok := os.LookupEnv(secretsEnv); ok {
		secretsFile := strings.TrimSpace(rawSecretsFile)
		if secretsFile == "" {
			return "", true, fmt.Errorf("%s is set but empty", secretsEnv)
		}
		info, err := os.Stat(secretsFile)
		if err != nil {
			return "", true, fmt.Errorf("%s points to an inaccessible file %s: %w", secretsEnv, secretsFile, err)
		}
		if info.IsDir() {
			return "", true, fmt.Errorf("%s must point to a file, got directory %s", secretsEnv, secretsFile)
		}
		return secretsFile, true, nil
	}

	if l.configFile != "" {
		dir := filepath.Dir(l.configFile)
		ext := filepath.Ext(l.configFile)
		secretsFile := filepath.Join(dir, "secrets"+ext)
		if info, err := os.Stat(secretsFile); err == nil && !info.IsDir() {
			return secretsFile, false, nil
		}
	}

	for _, ext := range []string{".yaml", ".yml", ".json", ".toml"} {
		secretsFile := "secrets" + ext
		if info, err := os.Stat(secretsFile); err == nil && !info.IsDir() {
			return secretsFile, false, nil
		}
	}

	return "", false, nil
}
