//go:build windows

package windows

import "github.com/mj1618/vbs-autopilot/internal/platform"

func init() {
	platform.NewProviderFunc = func() (*platform.Provider, error) {
		return &platform.Provider{
			Windows:   NewWindowSystem(),
			Inputter:  NewInputter(),
			Messenger: NewMessenger(),
			Launcher:  NewLauncher(),
		}, nil
	}
}
