package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagBinding maps a command-line flag to a configuration key.
type flagBinding struct {
	Flag  string
	Key   string
	Usage string
	// Parse converts the flag text into the value stored under Key.
	Parse func(string) (interface{}, error)
}

func asString(raw string) (interface{}, error) { return raw, nil }

func asDuration(raw string) (interface{}, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, err
	}
	return d, nil
}

var flagBindings = []flagBinding{
	{Flag: "cosmos-endpoint", Key: "cosmos.endpoint", Usage: "Cosmos DB account endpoint", Parse: asString},
	{Flag: "cosmos-database", Key: "cosmos.database", Usage: "Cosmos DB database name", Parse: asString},
	{Flag: "cosmos-request-timeout", Key: "cosmos.request_timeout", Usage: "Cosmos DB request timeout", Parse: asDuration},
	{Flag: "environment", Key: "service.environment", Usage: "deployment environment (development enables emulator certificate pinning)", Parse: asString},
	{Flag: "log-level", Key: "observability.log_level", Usage: "log level (debug, info, warn, error)", Parse: asString},
}

// RegisterFlags adds the configuration override flags to flags. Only flags that are
// explicitly set take part in loading.
func RegisterFlags(flags *pflag.FlagSet) {
	for _, binding := range flagBindings {
		if flags.Lookup(binding.Flag) != nil {
			continue
		}
		flags.String(binding.Flag, "", binding.Usage)
	}
}

func (l *ViperLoader) applyFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for _, binding := range flagBindings {
		flag := l.flags.Lookup(binding.Flag)
		if flag == nil || !flag.Changed {
			continue
		}
		parsed, err := binding.Parse(flag.Value.String())
		if err != nil {
			return fmt.Errorf("invalid value for --%s: %w", binding.Flag, err)
		}
		v.Set(binding.Key, parsed)
	}
	return nil
}
