//go:build windows

package idle

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

// NewQuerier uses GetLastInputInfo
func NewQuerier() Querier {
	return QuerierFunc(func(context.Context) (time.Duration, error) {
		info := lastInputInfo{cbSize: uint32(unsafe.Sizeof(lastInputInfo{}))}
		ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
		if ret == 0 {
			return 0, fmt.Errorf("GetLastInputInfo: %w", err)
		}
		now, _, _ := procGetTickCount.Call()
		// both are 32-bit millisecond tick counts; subtraction wraps correctly
		return time.Duration(uint32(now)-info.dwTime) * time.Millisecond, nil
	})
}
