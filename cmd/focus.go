package cmd

import (
	"fmt"

	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/output"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/spf13/cobra"
)

// FocusResult is the output of a successful focus.
type FocusResult struct {
	OK       bool    `yaml:"ok"                 json:"ok"`
	Action   string  `yaml:"action"             json:"action"`
	HWND     uintptr `yaml:"hwnd"               json:"hwnd"`
	PID      int     `yaml:"pid"                json:"pid"`
	Title    string  `yaml:"title"              json:"title"`
	Restored bool    `yaml:"restored,omitempty" json:"restored,omitempty"`
}

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Restore the VBS window and bring it to the foreground",
	Long:  "Focus the window chosen by the configured title hints, or the window given by --hwnd.",
	RunE:  runFocus,
}

func init() {
	rootCmd.AddCommand(focusCmd)
	focusCmd.Flags().Uint64("hwnd", 0, "Focus this window handle instead of locating VBS")
}

func runFocus(cmd *cobra.Command, args []string) error {
	hwnd, _ := cmd.Flags().GetUint64("hwnd")

	var ws platform.WindowSystem
	if hwnd != 0 {
		provider, err := platform.NewProvider()
		if err != nil {
			return err
		}
		ws = provider.Windows
	} else {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ws = a.provider.Windows
		h, err := locator.New(ws, a.clk, a.log).Find(a.cfg.Criteria())
		if err != nil {
			return err
		}
		hwnd = uint64(h.HWND)
	}

	res, err := focusWindow(ws, uintptr(hwnd))
	if err != nil {
		return err
	}
	return output.Print(res)
}

func focusWindow(ws platform.WindowSystem, hwnd uintptr) (FocusResult, error) {
	w, err := ws.Describe(hwnd)
	if err != nil {
		return FocusResult{}, fmt.Errorf("window %#x: %w", hwnd, err)
	}
	res := FocusResult{OK: true, Action: "focus", HWND: w.HWND, PID: w.PID, Title: w.Title}
	if w.Minimized {
		if err := ws.Restore(hwnd); err != nil {
			return FocusResult{}, model.WrapError(model.KindInputInjectionFailure, "restore window", err)
		}
		res.Restored = true
	}
	if err := ws.SetForeground(hwnd); err != nil {
		return FocusResult{}, model.WrapError(model.KindInputInjectionFailure, "set foreground", err)
	}
	return res, nil
}
