//go:build windows

package instance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

type mutexLock struct {
	handle windows.Handle
}

// acquire creates the session-local named mutex. The handle stays open for
// the life of the process; Windows releases it if we die.
func acquire(opts Options) (locker, error) {
	if opts.AppID == "" {
		return nil, errors.New("app id is required")
	}

	name, err := windows.UTF16PtrFromString(`Local\` + opts.AppID + "-instance")
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateMutex(nil, false, name)
	if err != nil {
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			if handle != 0 {
				windows.CloseHandle(handle)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("create mutex: %w", err)
	}

	return &mutexLock{handle: handle}, nil
}

func (l *mutexLock) release() error {
	return windows.CloseHandle(l.handle)
}

// HolderPID is not recorded on Windows; the named mutex carries no PID
func HolderPID(string) (int, error) {
	return 0, errors.New("holder pid is not available on windows")
}
