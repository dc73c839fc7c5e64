package spinevo

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

const (
	configEnv = "SPINEVO_CONFIG"
)

var (
	cfgLoaded = false
	config    = _spinconfig{}
)

// _spinconfig is a "hidden" struct, just use `spinConfig`
type _spinconfig struct {
	outputDir           string
	maxCollapseAttempts int
	trotterOrder        int
}

// defaultConfig is used when no configuration file is available.
func defaultConfig() _spinconfig {
	return _spinconfig{outputDir: ".", maxCollapseAttempts: DefaultMaxCollapseAttempts, trotterOrder: 1}
}

// spinConfig returns the spinevo configuration, read once from $SPINEVO_CONFIG/conf.toml.
func spinConfig() (_spinconfig, error) {
	if cfgLoaded {
		return config, nil
	}
	confPath := os.Getenv(configEnv)
	if confPath == "" {
		return defaultConfig(), errors.New("environment variable `" + configEnv + "` is missing or empty")
	}
	v := viper.New()
	v.SetConfigName("conf")
	v.AddConfigPath(confPath)
	v.SetDefault("general.output_path", ".")
	v.SetDefault("collapse.max_attempts", DefaultMaxCollapseAttempts)
	v.SetDefault("trotter.order", 1)
	if err := v.ReadInConfig(); err != nil {
		return defaultConfig(), fmt.Errorf("%s/conf.toml: %w", confPath, err)
	}

	loaded := _spinconfig{
		outputDir:           v.GetString("general.output_path"),
		maxCollapseAttempts: v.GetInt("collapse.max_attempts"),
		trotterOrder:        v.GetInt("trotter.order"),
	}
	if loaded.maxCollapseAttempts <= 0 {
		return defaultConfig(), fmt.Errorf("collapse.max_attempts must be positive, got %d", loaded.maxCollapseAttempts)
	}
	if loaded.trotterOrder != 1 && loaded.trotterOrder != 2 {
		return defaultConfig(), fmt.Errorf("trotter.order must be 1 or 2, got %d", loaded.trotterOrder)
	}
	config = loaded
	cfgLoaded = true
	return config, nil
}
