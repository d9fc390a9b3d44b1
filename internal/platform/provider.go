package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Provider bundles the Win32 backends the automation core drives.
type Provider struct {
	Windows   WindowSystem
	Inputter  Inputter
	Messenger Messenger
	Launcher  Launcher
}

// ErrUnsupported is returned when no backend is registered for this OS.
var ErrUnsupported = fmt.Errorf("vbs-autopilot is not supported on %s/%s; supported: windows/amd64, windows/386", runtime.GOOS, runtime.GOARCH)

// NewProviderFunc is set by the windows package from init().
var NewProviderFunc func() (*Provider, error)

// NewProvider returns the registered Provider after checking that every
// backend is present.
func NewProvider() (*Provider, error) {
	if NewProviderFunc == nil {
		return nil, ErrUnsupported
	}
	p, err := NewProviderFunc()
	if err != nil {
		return nil, err
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

// Check reports which backends are missing.
func (p *Provider) Check() error {
	if p == nil {
		return fmt.Errorf("platform provider is nil")
	}
	var missing []string
	if p.Windows == nil {
		missing = append(missing, "windows")
	}
	if p.Inputter == nil {
		missing = append(missing, "inputter")
	}
	if p.Messenger == nil {
		missing = append(missing, "messenger")
	}
	if p.Launcher == nil {
		missing = append(missing, "launcher")
	}
	if len(missing) > 0 {
		return fmt.Errorf("platform provider is missing backends: %s", strings.Join(missing, ", "))
	}
	return nil
}
