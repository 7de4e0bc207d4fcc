//go:build !linux && !darwin && !windows

package shortcut

type unsupportedBinding struct{}

func newHostBinding(Accelerator) binding { return unsupportedBinding{} }

func (unsupportedBinding) Register() error          { return ErrUnsupported }
func (unsupportedBinding) Unregister() error        { return nil }
func (unsupportedBinding) Keydown() <-chan struct{} { return nil }
