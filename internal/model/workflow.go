package model

import (
	"path/filepath"
	"time"
)

// Phase names one stage of the nightly workflow.
type Phase string

const (
	PhaseLogin    Phase = "login"
	PhaseNavigate Phase = "navigate"
	PhaseImport   Phase = "import"
	PhaseReport   Phase = "report"
)

// AllPhases returns the phases in execution order.
func AllPhases() []Phase {
	return []Phase{PhaseLogin, PhaseNavigate, PhaseImport, PhaseReport}
}

// Credentials are the operational identifiers typed into the login form.
type Credentials struct {
	CompanyCode   string `yaml:"company_code"   json:"company_code"`
	FinancialYear string `yaml:"financial_year" json:"financial_year"`
}

// WorkflowContext is the read-only input of a single run.
type WorkflowContext struct {
	RunID       string      `yaml:"run_id"       json:"run_id"`
	DateFolder  string      `yaml:"date_folder"  json:"date_folder"`
	Credentials Credentials `yaml:"credentials"  json:"credentials"`
	ExcelPath   string      `yaml:"excel_path"   json:"excel_path"`
	PDFPath     string      `yaml:"pdf_path"     json:"pdf_path"`
}

// Validate checks that every field a phase depends on is present.
func (c WorkflowContext) Validate() error {
	switch {
	case c.DateFolder == "":
		return NewError(KindConfigurationError, "context", "date folder is empty")
	case c.Credentials.CompanyCode == "":
		return NewError(KindConfigurationError, "context", "company code is empty")
	case c.Credentials.FinancialYear == "":
		return NewError(KindConfigurationError, "context", "financial year is empty")
	case c.ExcelPath == "":
		return NewError(KindConfigurationError, "context", "excel path is empty")
	case c.PDFPath == "":
		return NewError(KindConfigurationError, "context", "pdf path is empty")
	}
	return nil
}

// ExcelDir and ExcelName split the import source for the file dialog.
func (c WorkflowContext) ExcelDir() string  { return filepath.Dir(c.ExcelPath) }
func (c WorkflowContext) ExcelName() string { return filepath.Base(c.ExcelPath) }

// PhaseError is one entry of a phase's error trail.
type PhaseError struct {
	Phase   Phase     `yaml:"phase"             json:"phase"`
	Kind    ErrorKind `yaml:"kind"              json:"kind"`
	Message string    `yaml:"message"           json:"message"`
	Attempt int       `yaml:"attempt,omitempty" json:"attempt,omitempty"`
}

// NewPhaseError classifies err for the error trail of phase.
func NewPhaseError(phase Phase, err error) PhaseError {
	return PhaseError{Phase: phase, Kind: KindOf(err), Message: err.Error()}
}

// Artifact keys shared between phases and the orchestrator.
const (
	ArtifactExcelFile  = "excel_file"
	ArtifactPDFFile    = "pdf_file"
	ArtifactLaunch     = "launch"
	ArtifactScreenshot = "screenshot"
	ArtifactDateRange  = "date_range"
)

// PhaseResult is the outcome of one phase run, or of all retries of it.
type PhaseResult struct {
	Phase     Phase             `yaml:"phase"               json:"phase"`
	Success   bool              `yaml:"success"             json:"success"`
	Errors    []PhaseError      `yaml:"errors,omitempty"    json:"errors,omitempty"`
	Artifacts map[string]string `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Handle    *WindowHandle     `yaml:"handle,omitempty"    json:"handle,omitempty"`
	States    []string          `yaml:"states,omitempty"    json:"states,omitempty"`
	Attempts  int               `yaml:"attempts,omitempty"  json:"attempts,omitempty"`
	Duration  time.Duration     `yaml:"duration"            json:"duration"`
}

// WorkflowResult is the terminal report of a run.
type WorkflowResult struct {
	RunID           string        `yaml:"run_id"                 json:"run_id"`
	Success         bool          `yaml:"success"                json:"success"`
	FailedPhase     Phase         `yaml:"failed_phase,omitempty" json:"failed_phase,omitempty"`
	PhasesAttempted []Phase       `yaml:"phases_attempted"       json:"phases_attempted"`
	PhasesCompleted []Phase       `yaml:"phases_completed"       json:"phases_completed"`
	Errors          []PhaseError  `yaml:"errors,omitempty"       json:"errors,omitempty"`
	ExcelFile       string        `yaml:"excel_file,omitempty"   json:"excel_file,omitempty"`
	PDFFile         string        `yaml:"pdf_file,omitempty"     json:"pdf_file,omitempty"`
	Screenshot      string        `yaml:"screenshot,omitempty"   json:"screenshot,omitempty"`
	Aborted         bool          `yaml:"aborted,omitempty"      json:"aborted,omitempty"`
	StartedAt       time.Time     `yaml:"started_at"             json:"started_at"`
	FinishedAt      time.Time     `yaml:"finished_at"            json:"finished_at"`
	Duration        time.Duration `yaml:"duration"               json:"duration"`
}
