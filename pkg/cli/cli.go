// Package cli builds the cosmoskit command line: database bootstrap, health checks
// and ad-hoc document access against the configured Cosmos DB account.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nimburion/cosmoskit/pkg/config"
	"github.com/nimburion/cosmoskit/pkg/observability/logger"
	"github.com/nimburion/cosmoskit/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Options configures the root command.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	// EnvPrefix defaults to config.DefaultEnvPrefix.
	EnvPrefix string
}

type app struct {
	opts           Options
	cfgPath        string
	secretFilePath string
}

// Cosa fa: crea il comando radice con bootstrap, healthcheck, query, get, delete, put,
// config show e version.
// Cosa NON fa: non esegue nulla finché Execute non viene chiamato.
// Esempio minimo: cli.Execute(cli.NewRootCommand(cli.Options{Name: "cosmoskit"}))
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "cosmoskit"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&a.secretFilePath, "secret-file", "", fmt.Sprintf("path to secrets file (sets %s_SECRETS_FILE)", resolveEnvPrefix(opts.EnvPrefix)))
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		a.bootstrapCommand(),
		a.healthcheckCommand(),
		a.queryCommand(),
		a.getCommand(),
		a.deleteCommand(),
		a.putCommand(),
		a.configCommand(),
		versionCommand(opts.Name),
	)
	return rootCmd
}

// Execute runs the command and exits with appropriate code.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) loadConfig(flags *pflag.FlagSet) (*config.Config, *config.Config, logger.Logger, error) {
	return LoadConfigAndLogger(a.cfgPath, a.opts.EnvPrefix, a.secretFilePath, flags)
}

// LoadConfigAndLogger loads the configuration (secrets file included) and builds the
// logger it describes. The second result holds the values read from the secrets file.
func LoadConfigAndLogger(cfgPath, envPrefix, secretFilePath string, flags *pflag.FlagSet) (*config.Config, *config.Config, logger.Logger, error) {
	if err := applySecretFileFlag(envPrefix, secretFilePath); err != nil {
		return nil, nil, nil, err
	}
	cfg, secrets, err := config.NewViperLoader(cfgPath, envPrefix).WithFlags(flags).LoadWithSecrets()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewZapLogger(logger.Config{
		Level:  logger.LogLevel(strings.ToLower(cfg.Observability.LogLevel)),
		Format: logger.LogFormat(strings.ToLower(cfg.Observability.LogFormat)),
		Output: os.Stderr,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	logConfigIfDebug(log, cfg, secrets)
	return cfg, secrets, log, nil
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(resolveEnvPrefix(envPrefix)+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

func logConfigIfDebug(log logger.Logger, cfg, secrets *config.Config) {
	if !strings.EqualFold(cfg.Observability.LogLevel, string(logger.DebugLevel)) {
		return
	}
	rendered, err := cfg.Redacted(secrets).YAML()
	if err != nil {
		return
	}
	log.Debug("effective configuration", "config", string(rendered))
}

func resolveEnvPrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		return config.DefaultEnvPrefix
	}
	return strings.ToUpper(trimmed)
}

func versionCommand(name string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Current(name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Service:    %s\n", info.Service)
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			fmt.Fprintf(out, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(out, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(out, "User Agent: %s\n", info.UserAgent())
		},
	}
}
