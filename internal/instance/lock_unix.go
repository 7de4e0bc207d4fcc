//go:build !windows

package instance

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

type fileLock struct {
	f *os.File
}

// acquire takes an exclusive flock on the lock file and records our PID
// in it. The kernel drops the lock when the process dies.
func acquire(opts Options) (locker, error) {
	if opts.LockPath == "" {
		return nil, errors.New("lock path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.LockPath), 0700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(opts.LockPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("lock %s: %w", opts.LockPath, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}

// HolderPID returns the PID recorded by the process holding the lock, or
// ErrNoHolder when nobody holds it. A PID left behind by a crashed holder is
// not reported.
func HolderPID(lockPath string) (int, error) {
	f, err := os.Open(lockPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNoHolder
		}
		return 0, err
	}
	defer f.Close()

	err = unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB)
	if err == nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return 0, ErrNoHolder
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		return 0, fmt.Errorf("lock %s: %w", lockPath, err)
	}

	var pid int
	if _, err := fmt.Fscanf(f, "%d", &pid); err != nil {
		return 0, fmt.Errorf("parse lock file: %w", err)
	}
	return pid, nil
}
