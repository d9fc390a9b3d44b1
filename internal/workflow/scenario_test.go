package workflow

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/phase"
	"github.com/mj1618/vbs-autopilot/internal/phase/phasetest"
	"github.com/mj1618/vbs-autopilot/internal/platform/fake"
	"github.com/mj1618/vbs-autopilot/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulated(rig *phasetest.Rig, phases []phase.Phase) *Orchestrator {
	return New(phases, rig.Profile, rig.Desktop, rig.Clock, rig.Deps.Log, Options{
		Retry:      retry.Policy{MaxAttempts: 2, Delay: 5 * time.Second},
		PhaseDelay: time.Second,
	})
}

func TestScenario_ColdStartCompletesAllPhases(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})

	res := simulated(rig, rig.Phases()).RunWorkflow(context.Background(), rig.Context)

	require.True(t, res.Success, "%+v", res.Errors)
	assert.Equal(t, model.AllPhases(), res.PhasesCompleted)
	assert.Equal(t, rig.Context.ExcelPath, res.ExcelFile)
	assert.Equal(t, rig.Context.PDFPath, res.PDFFile)
	assert.FileExists(t, res.PDFFile)
	assert.Equal(t, 1, rig.VBS.Launches())
	assert.Empty(t, rig.VBS.Violations())
}

func TestScenario_MinimizedWindowIsRestored(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	hwnd := rig.VBS.StartAtLogin(true)

	res := simulated(rig, rig.Phases()).RunWorkflow(context.Background(), rig.Context)

	require.True(t, res.Success, "%+v", res.Errors)
	assert.Zero(t, rig.VBS.Launches())
	w, ok := rig.Desktop.Window(hwnd)
	require.True(t, ok)
	assert.False(t, w.Minimized)
}

func TestScenario_RequiredSecurityPopupNeverAppears(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{NoSecurityPopup: true})
	cfg := rig.LoginConfig()
	cfg.SecurityPopup.Required = true
	phases := rig.Phases()
	phases[0] = phase.NewLogin(rig.Deps, cfg)

	res := simulated(rig, phases).RunWorkflow(context.Background(), rig.Context)

	require.False(t, res.Success)
	assert.Equal(t, model.PhaseLogin, res.FailedPhase)
	assert.Empty(t, res.PhasesCompleted)
	assert.Equal(t, []model.Phase{model.PhaseLogin}, res.PhasesAttempted)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, model.KindPopupTimeout, res.Errors[0].Kind)
	assert.Equal(t, model.KindPopupTimeout, res.Errors[1].Kind)
	assert.Equal(t, model.KindRetryExhausted, res.Errors[2].Kind)
}

func TestScenario_MissingExcelStopsBeforeReport(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	require.NoError(t, os.Remove(rig.Context.ExcelPath))

	res := simulated(rig, rig.Phases()).RunWorkflow(context.Background(), rig.Context)

	require.False(t, res.Success)
	assert.Equal(t, model.PhaseImport, res.FailedPhase)
	assert.Equal(t, []model.Phase{model.PhaseLogin, model.PhaseNavigate}, res.PhasesCompleted)
	assert.NotContains(t, res.PhasesAttempted, model.PhaseReport)
	require.NotEmpty(t, res.Errors)
	assert.True(t, strings.Contains(res.Errors[0].Message, "file not found"), res.Errors[0].Message)
	assert.Empty(t, res.ExcelFile)
}

func TestScenario_NoDownloadedReport(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{SkipPDF: true})

	res := simulated(rig, rig.Phases()).RunWorkflow(context.Background(), rig.Context)

	require.False(t, res.Success)
	assert.Equal(t, model.PhaseReport, res.FailedPhase)
	assert.Equal(t, []model.Phase{model.PhaseLogin, model.PhaseNavigate, model.PhaseImport}, res.PhasesCompleted)
	assert.Equal(t, model.KindStepVerificationFailure, res.Errors[0].Kind)
	assert.Equal(t, rig.Context.ExcelPath, res.ExcelFile)
	assert.Empty(t, res.PDFFile)
}

func TestScenario_WarmRerunSkipsLaunch(t *testing.T) {
	rig := phasetest.New(t, fake.VBSOptions{})
	o := simulated(rig, rig.Phases())
	require.True(t, o.RunWorkflow(context.Background(), rig.Context).Success)
	require.NoError(t, os.Remove(rig.Context.PDFPath))

	res := o.RunWorkflow(context.Background(), rig.Context)

	require.True(t, res.Success, "%+v", res.Errors)
	assert.Equal(t, model.AllPhases(), res.PhasesCompleted)
	assert.Equal(t, 1, rig.VBS.Launches())
	assert.FileExists(t, rig.Context.PDFPath)
	assert.Empty(t, rig.VBS.Violations())
}
