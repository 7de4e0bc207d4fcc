//go:build !darwin && !windows

package shortcut

const commandOrControl = ModCtrl
