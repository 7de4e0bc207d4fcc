package lifecycle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nohands.dev/go/nohands/internal/config"
)

func TestResolvePolicy(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  config.Env
		want Policy
	}{
		{
			name: "linux production",
			goos: "linux",
			env:  config.Env{Mode: config.ModeProduction},
			want: Policy{Mode: "production", QuitOnAllWindowsClosed: true, EnableAutostart: true},
		},
		{
			name: "darwin production keeps running without windows",
			goos: "darwin",
			env:  config.Env{Mode: config.ModeProduction},
			want: Policy{Mode: "production", EnableAutostart: true},
		},
		{
			name: "production under test",
			goos: "linux",
			env:  config.Env{Mode: config.ModeProduction, IsTest: true},
			want: Policy{Mode: "production", QuitOnAllWindowsClosed: true},
		},
		{
			name: "windows development exits on message",
			goos: "windows",
			env:  config.Env{Mode: config.ModeDevelopment},
			want: Policy{
				Mode:                   "development",
				QuitOnAllWindowsClosed: true,
				GracefulExit:           GracefulExitMessage,
				InstallDevTooling:      true,
			},
		},
		{
			name: "linux development with dev server opens devtools",
			goos: "linux",
			env:  config.Env{Mode: config.ModeDevelopment, DevServerURL: "http://localhost:5173"},
			want: Policy{
				Mode:                   "development",
				QuitOnAllWindowsClosed: true,
				GracefulExit:           GracefulExitSignal,
				OpenDevTools:           true,
				InstallDevTooling:      true,
			},
		},
		{
			name: "dev server under test keeps devtools closed",
			goos: "linux",
			env:  config.Env{Mode: config.ModeDevelopment, DevServerURL: "http://localhost:5173", IsTest: true},
			want: Policy{Mode: "development", QuitOnAllWindowsClosed: true, GracefulExit: GracefulExitSignal},
		},
		{
			name: "linux development under test",
			goos: "linux",
			env:  config.Env{Mode: config.ModeDevelopment, IsTest: true},
			want: Policy{Mode: "development", QuitOnAllWindowsClosed: true, GracefulExit: GracefulExitSignal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePolicy(tt.goos, &tt.env))
		})
	}
}

func TestHandleTerm(t *testing.T) {
	assert.True(t, Policy{}.HandleTerm())
	assert.True(t, Policy{GracefulExit: GracefulExitMessage}.HandleTerm())
	assert.False(t, Policy{GracefulExit: GracefulExitSignal}.HandleTerm())
}

func TestWatchGracefulExitMessage(t *testing.T) {
	ch := WatchGracefulExit(context.Background(), GracefulExitMessage, strings.NewReader("hello\n  graceful-exit \n"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("graceful exit not seen")
	}
}

func TestWatchGracefulExitIgnoresOtherInput(t *testing.T) {
	ch := WatchGracefulExit(context.Background(), GracefulExitMessage, strings.NewReader("quit\n"))

	select {
	case <-ch:
		t.Fatal("unexpected graceful exit")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchGracefulExitNone(t *testing.T) {
	assert.Nil(t, WatchGracefulExit(context.Background(), GracefulExitNone, nil))
}
