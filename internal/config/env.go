package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Mode names accepted in NOHANDS_ENV
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// DefaultMode is the mode used when NOHANDS_ENV is unset. Release builds
// keep "production"; development builds override it via ldflags:
//
//	-X nohands.dev/go/nohands/internal/config.DefaultMode=development
var DefaultMode = ModeProduction

// Env holds the environment-driven switches read once at startup
type Env struct {
	Mode         string `envconfig:"ENV"`
	DevServerURL string `envconfig:"DEV_SERVER_URL"`
	IsTest       bool   `envconfig:"IS_TEST"`
	LogLevel     string `envconfig:"LOG_LEVEL"`
}

// LoadEnv reads NOHANDS_* variables
func LoadEnv() (*Env, error) {
	env := &Env{}
	if err := envconfig.Process("nohands", env); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	env.Mode = strings.ToLower(strings.TrimSpace(env.Mode))
	if env.Mode == "" {
		env.Mode = DefaultMode
	}
	if env.Mode != ModeDevelopment && env.Mode != ModeProduction {
		return nil, fmt.Errorf("invalid NOHANDS_ENV %q: want %s or %s", env.Mode, ModeDevelopment, ModeProduction)
	}

	return env, nil
}

// Development reports whether the process runs in development mode
func (e *Env) Development() bool {
	return e.Mode != ModeProduction
}

// UseDevServer reports whether the window should load the dev server URL
// instead of the bundled content
func (e *Env) UseDevServer() bool {
	return e.Development() && e.DevServerURL != ""
}
