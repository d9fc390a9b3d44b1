package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/output"
	"go.uber.org/zap"
)

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("run_workflow",
			mcp.WithDescription("Run login, navigate, import and report against the VBS window. Blocks until the run finishes and returns the workflow result."),
			mcp.WithString("date", mcp.Description("Business date YYYY-MM-DD selecting the input/output folders (default today)")),
		),
		s.handleRunWorkflow,
	)
	s.mcp.AddTool(
		mcp.NewTool("abort_run",
			mcp.WithDescription("Stop the run in progress before its next phase. The current phase finishes first."),
		),
		s.handleAbortRun,
	)
	s.mcp.AddTool(
		mcp.NewTool("last_result",
			mcp.WithDescription("Return the result of the most recent run"),
		),
		s.handleLastResult,
	)
	s.mcp.AddTool(
		mcp.NewTool("list_windows",
			mcp.WithDescription("List top-level windows with handle, PID, process, title and bounds"),
			mcp.WithBoolean("all", mcp.Description("Include invisible windows")),
			mcp.WithString("title", mcp.Description("Filter by case-insensitive title substring")),
		),
		s.handleListWindows,
	)
	s.mcp.AddTool(
		mcp.NewTool("locate_window",
			mcp.WithDescription("Run the window locator with the configured hints and return the ranked candidates"),
			mcp.WithString("prefer", mcp.Description("Comma-separated title hints to rank first, e.g. 'login'")),
		),
		s.handleLocateWindow,
	)
	s.mcp.AddTool(
		mcp.NewTool("check_profile",
			mcp.WithDescription("Check the coordinate profile defines every target the phases click"),
		),
		s.handleCheckProfile,
	)
}

func text(v interface{}) string {
	out, err := output.Sprint(output.FormatYAML, v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return out
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	date := s.cfg.Now()
	if raw := stringParam(params, "date", ""); raw != "" {
		d, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", raw)), nil
		}
		date = d
	}

	res, err := s.cfg.Slot.Run(ctx, "mcp", func(ctx context.Context) model.WorkflowResult {
		return s.cfg.Run(ctx, date)
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Info("run finished", zap.String("run_id", res.RunID), zap.Bool("success", res.Success))
	if !res.Success {
		return mcp.NewToolResultError(text(res)), nil
	}
	return mcp.NewToolResultText(text(res)), nil
}

func (s *Server) handleAbortRun(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	holder, since := s.cfg.Slot.Holder()
	if holder == "" {
		return mcp.NewToolResultError("no run in progress"), nil
	}
	s.cfg.Workflow.Abort()
	s.log.Warn("abort requested", zap.String("holder", holder))
	return mcp.NewToolResultText(fmt.Sprintf("abort requested for run started by %s at %s", holder, since.Format(time.TimeOnly))), nil
}

func (s *Server) handleLastResult(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, ok := s.cfg.Workflow.Last()
	if !ok {
		return mcp.NewToolResultError("no run has finished yet"), nil
	}
	return mcp.NewToolResultText(text(res)), nil
}

func (s *Server) handleListWindows(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	all := boolParam(params, "all", false)
	title := strings.ToLower(stringParam(params, "title", ""))

	wins, err := s.cfg.Windows.Windows()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := []model.Window{}
	for _, w := range wins {
		if !all && !w.Visible {
			continue
		}
		if title != "" && !strings.Contains(strings.ToLower(w.Title), title) {
			continue
		}
		out = append(out, w)
	}
	return mcp.NewToolResultText(text(out)), nil
}

func (s *Server) handleLocateWindow(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	criteria := s.cfg.Criteria
	if prefer := stringParam(request.GetArguments(), "prefer", ""); prefer != "" {
		criteria = criteria.WithPrefer(strings.Split(prefer, ",")...)
	}
	candidates, err := s.cfg.Locator.Candidates(criteria)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(candidates) == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("no window matches title hints %v", criteria.TitleHints)), nil
	}
	return mcp.NewToolResultText(text(candidates)), nil
}

type profileReport struct {
	Profile string   `yaml:"profile"`
	Origin  string   `yaml:"origin"`
	OK      bool     `yaml:"ok"`
	Error   string   `yaml:"error,omitempty"`
	Targets []string `yaml:"targets"`
}

func (s *Server) handleCheckProfile(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := s.cfg.Profile
	if err := p.Require(s.cfg.Requirements...); err != nil {
		report := profileReport{Error: err.Error()}
		if p != nil {
			report.Profile, report.Origin, report.Targets = p.Name(), string(p.Origin()), p.Names()
		}
		return mcp.NewToolResultError(text(report)), nil
	}
	return mcp.NewToolResultText(text(profileReport{
		Profile: p.Name(),
		Origin:  string(p.Origin()),
		OK:      true,
		Targets: p.Names(),
	})), nil
}

// Parameter extraction helpers for tool arguments.

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return b == "true"
		}
	}
	return defaultVal
}
