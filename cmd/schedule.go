package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/scheduler"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the workflow on a cron schedule until interrupted",
	Long: `Run the workflow whenever the cron spec fires. A trigger that arrives
while a run is still in progress is skipped and logged.

Examples:
  vbs-autopilot schedule --spec "30 1 * * *" --timezone Asia/Kolkata
  vbs-autopilot schedule --spec @daily`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.Flags().String("spec", "", "Cron spec (overrides schedule.spec)")
	scheduleCmd.Flags().String("timezone", "", "IANA timezone (overrides schedule.timezone)")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	spec, _ := cmd.Flags().GetString("spec")
	if spec == "" {
		spec = a.cfg.Schedule.Spec
	}
	if spec == "" {
		return fmt.Errorf("no schedule: set schedule.spec or pass --spec")
	}
	tz, _ := cmd.Flags().GetString("timezone")
	if tz == "" {
		tz = a.cfg.Schedule.Timezone
	}

	r, err := a.newRunner()
	if err != nil {
		return err
	}
	slot := a.cfg.Slot(a.clk)
	sched, err := scheduler.New(spec, tz, slot, func(ctx context.Context) model.WorkflowResult {
		return r.run(ctx, a.clk.Now())
	}, a.log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	serveMetrics(ctx, a.cfg.Server.MetricsAddr, r.metrics, a.log)
	sched.Run(ctx)
	return nil
}
