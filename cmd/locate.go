package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/locator"
	"github.com/mj1618/vbs-autopilot/internal/output"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Show the windows the configured hints match",
	Long: `Run the window locator with the configured title, exclude and process
hints and print every candidate, best first.

Examples:
  vbs-autopilot locate
  vbs-autopilot locate --prefer login --wait 30s`,
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
	locateCmd.Flags().String("prefer", "", "Comma-separated title hints to rank first")
	locateCmd.Flags().Duration("wait", 0, "Wait up to this long for a matching window")
}

func runLocate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	criteria := a.cfg.Criteria()
	if prefer, _ := cmd.Flags().GetString("prefer"); prefer != "" {
		criteria = criteria.WithPrefer(strings.Split(prefer, ",")...)
	}
	loc := locator.New(a.provider.Windows, a.clk, a.log)
	loc.PollInterval = a.cfg.Timeouts.LocatorPoll

	if wait, _ := cmd.Flags().GetDuration("wait"); wait > 0 {
		if _, err := loc.Wait(criteria, wait); err != nil {
			return err
		}
	}
	candidates, err := loc.Candidates(criteria)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("no window matches title hints %v (checked at %s)", criteria.TitleHints, a.clk.Now().Format(time.TimeOnly))
	}
	return output.Print(candidates)
}
