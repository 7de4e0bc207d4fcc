package lifecycle

import "nohands.dev/go/nohands/internal/config"

// GracefulExitMode is how a development parent asks the app to quit
type GracefulExitMode string

const (
	GracefulExitNone    GracefulExitMode = ""
	GracefulExitMessage GracefulExitMode = "message" // "graceful-exit" line on stdin
	GracefulExitSignal  GracefulExitMode = "signal"  // SIGTERM
)

// gracefulExitLine is the stdin message for GracefulExitMessage
const gracefulExitLine = "graceful-exit"

// Policy is every platform and mode decision, made once at startup
type Policy struct {
	Mode string `json:"mode"`

	// QuitOnAllWindowsClosed is false where apps stay alive without windows
	QuitOnAllWindowsClosed bool `json:"quit_on_all_windows_closed"`

	GracefulExit      GracefulExitMode `json:"graceful_exit,omitempty"`
	// OpenDevTools only applies when a dev server serves the content
	OpenDevTools      bool             `json:"open_devtools"`
	EnableAutostart   bool             `json:"enable_autostart"`
	InstallDevTooling bool             `json:"install_dev_tooling"`
}

// ResolvePolicy derives the policy for goos and env
func ResolvePolicy(goos string, env *config.Env) Policy {
	dev := env.Development()

	p := Policy{
		Mode:                   env.Mode,
		QuitOnAllWindowsClosed: goos != "darwin",
		OpenDevTools:           env.UseDevServer() && !env.IsTest,
		EnableAutostart:        !dev && !env.IsTest,
		InstallDevTooling:      dev && !env.IsTest,
	}

	if dev {
		if goos == "windows" {
			p.GracefulExit = GracefulExitMessage
		} else {
			p.GracefulExit = GracefulExitSignal
		}
	}
	return p
}

// HandleTerm reports whether SIGTERM means host shutdown. It does not when
// a development parent uses it to ask for a graceful exit.
func (p Policy) HandleTerm() bool {
	return p.GracefulExit != GracefulExitSignal
}
