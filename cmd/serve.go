package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/scheduler"
	"github.com/mj1618/vbs-autopilot/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server that runs and inspects the workflow",
	Long: `Start a Model Context Protocol (MCP) server exposing run_workflow,
abort_run, last_result, list_windows, locate_window and check_profile.
When schedule.spec is set the cron trigger runs in the same process and
shares the single run slot with the tools.

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

Examples:
  vbs-autopilot serve
  vbs-autopilot serve --transport streamable-http --addr :8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport: stdio, streamable-http (default from server.addr)")
	serveCmd.Flags().String("addr", "", "Listen address for streamable-http (overrides server.addr)")
	serveCmd.Flags().Bool("no-schedule", false, "Do not start the cron trigger even if schedule.spec is set")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	transport, _ := cmd.Flags().GetString("transport")
	if transport == "" {
		transport = "stdio"
		if addr != "" {
			transport = "streamable-http"
		}
	}
	if transport == "streamable-http" && addr == "" {
		addr = ":8080"
	}

	r, err := a.newRunner()
	if err != nil {
		return err
	}
	slot := a.cfg.Slot(a.clk)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	serveMetrics(ctx, a.cfg.Server.MetricsAddr, r.metrics, a.log)

	if noSchedule, _ := cmd.Flags().GetBool("no-schedule"); !noSchedule && a.cfg.Schedule.Spec != "" {
		sched, err := scheduler.New(a.cfg.Schedule.Spec, a.cfg.Schedule.Timezone, slot, func(ctx context.Context) model.WorkflowResult {
			return r.run(ctx, a.clk.Now())
		}, a.log)
		if err != nil {
			return err
		}
		go sched.Run(ctx)
	}

	srv := server.New(server.Config{
		Windows:      a.provider.Windows,
		Locator:      r.deps.Locator,
		Criteria:     a.cfg.Criteria(),
		Profile:      r.profile,
		Requirements: requirements(r.phases),
		Workflow:     r.orch,
		Slot:         slot,
		Run:          r.run,
		Now:          a.clk.Now,
		Log:          a.log,
	})
	a.log.Info("mcp server starting", zap.String("transport", transport), zap.String("addr", addr))
	if err := srv.Serve(transport, addr); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
