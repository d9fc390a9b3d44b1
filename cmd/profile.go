package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/config"
	"github.com/mj1618/vbs-autopilot/internal/diag"
	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/output"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and calibrate the coordinate profile",
}

var profileCheckCmd = &cobra.Command{
	Use:   "check [profile-file]",
	Short: "Check the profile defines every target the phases click",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileCheck,
}

var profileOverlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Capture the VBS window with every profile target drawn on it",
	Long: `Capture the located VBS window and mark each profile target with a box
and its name. Open the PNG to see whether the offsets still line up with
the buttons and fields after a resolution or layout change.`,
	RunE: runProfileOverlay,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileCheckCmd)
	profileCmd.AddCommand(profileOverlayCmd)
	profileOverlayCmd.Flags().String("out", "", "PNG path (default <diagnostics.dir>/overlay-<time>.png)")
	profileOverlayCmd.Flags().String("prefer", "", "Title hint of the screen to capture, e.g. 'login'")
}

// ProfileReport is the output of profile check.
type ProfileReport struct {
	Profile string                 `yaml:"profile"           json:"profile"`
	Origin  model.Origin           `yaml:"origin"            json:"origin"`
	OK      bool                   `yaml:"ok"                json:"ok"`
	Missing []string               `yaml:"missing,omitempty" json:"missing,omitempty"`
	Unused  []string               `yaml:"unused,omitempty"  json:"unused,omitempty"`
	Targets map[string]model.Point `yaml:"targets"           json:"targets"`
}

func checkProfile(p *model.CoordinateProfile, required []string) ProfileReport {
	targets := p.Targets()
	need := make(map[string]bool, len(required))
	r := ProfileReport{Profile: p.Name(), Origin: p.Origin(), Targets: targets}
	for _, name := range required {
		need[name] = true
		if _, ok := targets[name]; !ok {
			r.Missing = append(r.Missing, name)
		}
	}
	for _, name := range p.Names() {
		if !need[name] {
			r.Unused = append(r.Unused, name)
		}
	}
	r.OK = len(r.Missing) == 0
	return r
}

func runProfileCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.cfg.Profile.Path
	if len(args) == 1 {
		path = args[0]
	}
	p, err := config.LoadProfile(path)
	if err != nil {
		return err
	}
	deps := a.cfg.Deps(a.provider, p, a.clk, a.log)
	phases, err := a.cfg.Phases(deps)
	if err != nil {
		return err
	}

	report := checkProfile(p, requirements(phases))
	if err := output.Print(report); err != nil {
		return err
	}
	if !report.OK {
		return fmt.Errorf("profile %s is missing %d target(s)", p.Name(), len(report.Missing))
	}
	return nil
}

func runProfileOverlay(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.profile()
	if err != nil {
		return err
	}
	criteria := a.cfg.Criteria()
	if prefer, _ := cmd.Flags().GetString("prefer"); prefer != "" {
		criteria = criteria.WithPrefer(prefer)
	}
	h, err := locator.New(a.provider.Windows, a.clk, a.log).Find(criteria)
	if err != nil {
		return err
	}

	s := diag.NewSnapshotter(a.provider.Windows, p, a.cfg.Diagnostics.Dir, a.log)
	img, err := s.CaptureWindow(h.HWND)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(a.cfg.Diagnostics.Dir, fmt.Sprintf("overlay-%s.png", a.clk.Now().Format("20060102-150405")))
	}
	if err := diag.WritePNG(out, img); err != nil {
		return err
	}
	return output.Print(map[string]interface{}{
		"ok":      true,
		"file":    out,
		"hwnd":    h.HWND,
		"targets": len(p.Names()),
		"taken":   a.clk.Now().Format(time.RFC3339),
	})
}
