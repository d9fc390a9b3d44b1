package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/output"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run login, navigate, import and report once",
	Long: `Run the whole workflow once for a business date. The date selects the
input and output folders and the report period.

Ctrl+C stops the run before its next phase; the phase in progress
finishes first. The run is refused while another vbs-autopilot process
on this machine (serve, schedule or run) is running the workflow.

Examples:
  vbs-autopilot run
  vbs-autopilot run --date 2026-09-30 --format json`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("date", "", "Business date YYYY-MM-DD (default today)")
	runCmd.Flags().Bool("close-on-failure", false, "Close VBS when a phase exhausts its attempts")
}

func parseDate(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", raw)
	}
	return d, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	raw, _ := cmd.Flags().GetString("date")
	date, err := parseDate(raw, a.clk.Now())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("close-on-failure") {
		a.cfg.Workflow.CloseOnFailure, _ = cmd.Flags().GetBool("close-on-failure")
	}

	r, err := a.newRunner()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := a.cfg.Slot(a.clk).Run(ctx, "cli", func(ctx context.Context) model.WorkflowResult {
		return r.run(ctx, date)
	})
	if err != nil {
		return err
	}
	if err := output.Print(res); err != nil {
		return err
	}
	if !res.Success {
		if res.FailedPhase != "" {
			return fmt.Errorf("workflow failed at %s", res.FailedPhase)
		}
		return fmt.Errorf("workflow failed")
	}
	return nil
}
