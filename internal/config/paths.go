package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds all platform-specific file paths for nohands
type Paths struct {
	ConfigDir  string // ~/.config/nohands or equivalent
	ProfileDir string // ~/.config/nohands/renderer (renderer user data)
	BundleDir  string // <executable dir>/dist

	ConfigFile string // ~/.config/nohands/config.toml
	LockFile   string // ~/.config/nohands/nohands.lock (Linux/macOS)
	StoreFile  string // ~/.config/nohands/store.json

	SocketPath string // /run/user/<uid>/nohands.sock or equivalent
}

// GetPaths returns platform-specific paths for nohands
func GetPaths() (*Paths, error) {
	var configDir string
	var socketPath string

	// Allow override via environment variable (useful for testing multiple instances)
	if envConfigDir := os.Getenv("NOHANDS_CONFIG_DIR"); envConfigDir != "" {
		configDir = envConfigDir
		socketPath = filepath.Join(configDir, "nohands.sock")
		if runtime.GOOS == "windows" {
			socketPath = pipeName(filepath.Base(configDir))
		}
	} else {
		switch runtime.GOOS {
		case "linux":
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "nohands")
			if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
				configDir = filepath.Join(xdg, "nohands")
			}

			// Socket in XDG_RUNTIME_DIR or /run/user/<uid>
			runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
			if runtimeDir == "" {
				runtimeDir = fmt.Sprintf("/run/user/%d", os.Getuid())
			}
			socketPath = filepath.Join(runtimeDir, "nohands.sock")

		case "darwin":
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("get home directory: %w", err)
			}
			configDir = filepath.Join(home, "Library", "Application Support", "nohands")
			socketPath = filepath.Join(configDir, "nohands.sock")

		case "windows":
			appData := os.Getenv("APPDATA")
			if appData == "" {
				return nil, fmt.Errorf("APPDATA environment variable not set")
			}
			configDir = filepath.Join(appData, "nohands")

			username := os.Getenv("USERNAME")
			if username == "" {
				username = "user"
			}
			socketPath = pipeName(username)

		default:
			return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
		}
	}

	p := &Paths{
		ConfigDir:  configDir,
		ProfileDir: filepath.Join(configDir, "renderer"),
		BundleDir:  defaultBundleDir(),

		ConfigFile: filepath.Join(configDir, "config.toml"),
		LockFile:   filepath.Join(configDir, "nohands.lock"),
		StoreFile:  filepath.Join(configDir, "store.json"),

		SocketPath: socketPath,
	}

	return p, nil
}

// EnsureDirectories creates all required directories with appropriate permissions
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.ProfileDir,
	}

	if runtime.GOOS != "windows" {
		dirs = append(dirs, filepath.Dir(p.SocketPath))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// LogFile returns the platform-specific log file path (Windows only)
func (p *Paths) LogFile() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(p.ConfigDir, "nohands.log")
	}
	return "" // Linux/macOS log to stderr (journal / unified log)
}

func pipeName(suffix string) string {
	return fmt.Sprintf(`\\.\pipe\nohands-%s`, suffix)
}

// defaultBundleDir is the "dist" directory next to the executable, where
// packaged builds place the rendered UI.
func defaultBundleDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "dist"
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), "dist")
}
