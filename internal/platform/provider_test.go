package platform_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/clock"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/mj1618/vbs-autopilot/internal/platform/fake"
)

func withProviderFunc(t *testing.T, fn func() (*platform.Provider, error)) {
	t.Helper()
	orig := platform.NewProviderFunc
	platform.NewProviderFunc = fn
	t.Cleanup(func() { platform.NewProviderFunc = orig })
}

func TestNewProvider_Unregistered(t *testing.T) {
	withProviderFunc(t, nil)

	_, err := platform.NewProvider()
	if !errors.Is(err, platform.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got: %v", err)
	}
}

func TestNewProvider_Registered(t *testing.T) {
	d := fake.NewDesktop(clock.NewFake(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))
	withProviderFunc(t, func() (*platform.Provider, error) { return d.Provider(), nil })

	p, err := platform.NewProvider()
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	if p.Windows == nil || p.Launcher == nil {
		t.Errorf("provider backends not populated: %+v", p)
	}
}

func TestNewProvider_RegistrationError(t *testing.T) {
	boom := errors.New("user32.dll not found")
	withProviderFunc(t, func() (*platform.Provider, error) { return nil, boom })

	if _, err := platform.NewProvider(); !errors.Is(err, boom) {
		t.Errorf("expected registration error, got: %v", err)
	}
}

func TestNewProvider_MissingBackends(t *testing.T) {
	d := fake.NewDesktop(clock.NewFake(time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)))
	withProviderFunc(t, func() (*platform.Provider, error) {
		return &platform.Provider{Windows: d, Inputter: d}, nil
	})

	_, err := platform.NewProvider()
	if err == nil {
		t.Fatal("expected error for partial provider")
	}
	if !strings.Contains(err.Error(), "messenger, launcher") {
		t.Errorf("error should list missing backends, got: %v", err)
	}
}

func TestProviderCheck_Nil(t *testing.T) {
	var p *platform.Provider
	if err := p.Check(); err == nil {
		t.Error("expected error for nil provider")
	}
}
