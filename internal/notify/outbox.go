// Package notify leaves a message per finished run in an outbox directory,
// where the mail sender picks it up.
package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Message is the outbox payload.
type Message struct {
	Subject         string             `yaml:"subject"`
	To              []string           `yaml:"to,omitempty"`
	RunID           string             `yaml:"run_id"`
	Success         bool               `yaml:"success"`
	Aborted         bool               `yaml:"aborted,omitempty"`
	FailedPhase     model.Phase        `yaml:"failed_phase,omitempty"`
	PhasesCompleted []model.Phase      `yaml:"phases_completed"`
	Artifacts       map[string]string  `yaml:"artifacts,omitempty"`
	Errors          []model.PhaseError `yaml:"errors,omitempty"`
	StartedAt       string             `yaml:"started_at"`
	Duration        string             `yaml:"duration"`
}

// Outbox writes one YAML file per run. It satisfies workflow.Recorder;
// phase results are ignored.
type Outbox struct {
	Dir           string
	SubjectPrefix string
	Recipients    []string

	log *zap.Logger
}

func NewOutbox(dir, subjectPrefix string, recipients []string, log *zap.Logger) *Outbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Outbox{Dir: dir, SubjectPrefix: subjectPrefix, Recipients: recipients, log: log.Named("notify")}
}

// Compose builds the message for res.
func (o *Outbox) Compose(res model.WorkflowResult) Message {
	day := res.StartedAt.Format("2006-01-02")
	var status string
	switch {
	case res.Success:
		status = "succeeded"
	case res.Aborted:
		status = "aborted"
	case res.FailedPhase != "":
		status = fmt.Sprintf("failed at %s", res.FailedPhase)
	default:
		status = "failed"
	}
	subject := strings.TrimSpace(fmt.Sprintf("%s Ledger export %s %s", o.SubjectPrefix, day, status))

	artifacts := map[string]string{}
	for k, v := range map[string]string{"excel_file": res.ExcelFile, "pdf_file": res.PDFFile, "screenshot": res.Screenshot} {
		if v != "" {
			artifacts[k] = v
		}
	}
	if len(artifacts) == 0 {
		artifacts = nil
	}

	return Message{
		Subject:         subject,
		To:              o.Recipients,
		RunID:           res.RunID,
		Success:         res.Success,
		Aborted:         res.Aborted,
		FailedPhase:     res.FailedPhase,
		PhasesCompleted: res.PhasesCompleted,
		Artifacts:       artifacts,
		Errors:          res.Errors,
		StartedAt:       res.StartedAt.Format(time.RFC3339),
		Duration:        res.Duration.String(),
	}
}

// Write stores the message for res and returns its path. The file appears
// atomically so the sender never reads a partial message.
func (o *Outbox) Write(res model.WorkflowResult) (string, error) {
	data, err := yaml.Marshal(o.Compose(res))
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.yaml", res.StartedAt.Format("20060102T150405"), res.RunID)
	path := filepath.Join(o.Dir, name)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

func (o *Outbox) ObservePhase(model.PhaseResult) {}

func (o *Outbox) ObserveRun(res model.WorkflowResult) {
	path, err := o.Write(res)
	if err != nil {
		o.log.Error("failed to write notification", zap.String("run_id", res.RunID), zap.Error(err))
		return
	}
	o.log.Info("notification queued", zap.String("path", path))
}
