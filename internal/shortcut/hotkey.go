//go:build darwin || windows

package shortcut

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var hotkeyKeys = func() map[string]hotkey.Key {
	m := map[string]hotkey.Key{
		"space":  hotkey.KeySpace,
		"return": hotkey.KeyReturn,
		"escape": hotkey.KeyEscape,
		"delete": hotkey.KeyDelete,
		"tab":    hotkey.KeyTab,
		"left":   hotkey.KeyLeft,
		"right":  hotkey.KeyRight,
		"up":     hotkey.KeyUp,
		"down":   hotkey.KeyDown,
		"f1":     hotkey.KeyF1,
		"f2":     hotkey.KeyF2,
		"f3":     hotkey.KeyF3,
		"f4":     hotkey.KeyF4,
		"f5":     hotkey.KeyF5,
		"f6":     hotkey.KeyF6,
		"f7":     hotkey.KeyF7,
		"f8":     hotkey.KeyF8,
		"f9":     hotkey.KeyF9,
		"f10":    hotkey.KeyF10,
		"f11":    hotkey.KeyF11,
		"f12":    hotkey.KeyF12,
	}
	letters := []hotkey.Key{
		hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
		hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
		hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
		hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
		hotkey.KeyY, hotkey.KeyZ,
	}
	for i, k := range letters {
		m[string(rune('a'+i))] = k
	}
	digits := []hotkey.Key{
		hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
		hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
	}
	for i, k := range digits {
		m[string(rune('0'+i))] = k
	}
	return m
}()

// hotkeyBinding registers with the OS through golang.design/x/hotkey
type hotkeyBinding struct {
	acc Accelerator

	hk      *hotkey.Hotkey
	keydown chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newHostBinding(acc Accelerator) binding {
	return &hotkeyBinding{acc: acc, keydown: make(chan struct{}, 1)}
}

func (b *hotkeyBinding) Register() error {
	key, ok := hotkeyKeys[b.acc.Key]
	if !ok {
		return fmt.Errorf("key %q has no hotkey code", b.acc.Key)
	}
	mods := make([]hotkey.Modifier, 0, len(b.acc.Mods))
	for _, m := range b.acc.Mods {
		mods = append(mods, hotkeyMods[m])
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return err
	}
	b.hk = hk
	b.stop = make(chan struct{})

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-b.stop:
				return
			case _, ok := <-hk.Keydown():
				if !ok {
					return
				}
				select {
				case b.keydown <- struct{}{}:
				default:
				}
			}
		}
	}()
	return nil
}

func (b *hotkeyBinding) Unregister() error {
	if b.hk == nil {
		return nil
	}
	close(b.stop)
	b.wg.Wait()
	err := b.hk.Unregister()
	b.hk = nil
	return err
}

func (b *hotkeyBinding) Keydown() <-chan struct{} {
	return b.keydown
}
