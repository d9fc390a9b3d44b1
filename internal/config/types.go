package config

import (
	"time"

	"github.com/mj1618/vbs-autopilot/internal/logging"
	"github.com/mj1618/vbs-autopilot/internal/retry"
	"github.com/mj1618/vbs-autopilot/internal/workflow"
)

// Config is the complete runtime configuration.
type Config struct {
	Target      TargetConfig      `koanf:"target"`
	Profile     ProfileConfig     `koanf:"profile"`
	Paths       workflow.Paths    `koanf:"paths"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Retry       retry.Policy      `koanf:"retry"`
	Steps       StepsConfig       `koanf:"steps"`
	Timeouts    TimeoutsConfig    `koanf:"timeouts"`
	Input       InputConfig       `koanf:"input"`
	Popups      PopupsConfig      `koanf:"popups"`
	Report      ReportConfig      `koanf:"report"`
	Workflow    WorkflowConfig    `koanf:"workflow"`
	Logging     logging.Config    `koanf:"logging"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`
	Schedule    ScheduleConfig    `koanf:"schedule"`
	Notify      NotifyConfig      `koanf:"notify"`
	Server      ServerConfig      `koanf:"server"`
}

// TargetConfig identifies the application and its screens.
type TargetConfig struct {
	Executable string   `koanf:"executable"`
	Args       []string `koanf:"args"`

	// TitleHints, ExcludeHints and ProcessHints form the window matching
	// contract: include by title, exclude by title, owning executable.
	TitleHints   []string `koanf:"title_hints"`
	ExcludeHints []string `koanf:"exclude_hints"`
	ProcessHints []string `koanf:"process_hints"`

	LoginHints  []string `koanf:"login_hints"`
	ImportHints []string `koanf:"import_hints"`
	ReportHints []string `koanf:"report_hints"`

	// ImportKeys and ReportKeys are menu accelerators, e.g. [alt+u, i].
	ImportKeys []string `koanf:"import_keys"`
	ReportKeys []string `koanf:"report_keys"`
}

type ProfileConfig struct {
	Path string `koanf:"path"`
}

type CredentialsConfig struct {
	CompanyCode   string `koanf:"company_code"`
	FinancialYear string `koanf:"financial_year"`
}

// StepsConfig tunes step-level retries and input pacing.
type StepsConfig struct {
	Attempts     int           `koanf:"attempts"`
	RetryDelay   time.Duration `koanf:"retry_delay"`
	ClickSettle  time.Duration `koanf:"click_settle"`
	CharDelay    time.Duration `koanf:"char_delay"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

type TimeoutsConfig struct {
	Launch        time.Duration `koanf:"launch"`
	Screen        time.Duration `koanf:"screen"`
	Verify        time.Duration `koanf:"verify"`
	FileDialog    time.Duration `koanf:"file_dialog"`
	Generate      time.Duration `koanf:"generate"`
	Download      time.Duration `koanf:"download"`
	LocatorPoll   time.Duration `koanf:"locator_poll"`
	PopupPoll     time.Duration `koanf:"popup_poll"`
	RestoreSettle time.Duration `koanf:"restore_settle"`
}

// InputConfig selects foreground or message input per phase.
type InputConfig struct {
	Login    string `koanf:"login"`
	Navigate string `koanf:"navigate"`
	Import   string `koanf:"import"`
	Report   string `koanf:"report"`
}

// PointConfig is a client offset inside a popup.
type PointConfig struct {
	X int `koanf:"x"`
	Y int `koanf:"y"`
}

// PopupConfig describes one kind of dialog.
type PopupConfig struct {
	Name     string        `koanf:"name"`
	Patterns []string      `koanf:"patterns"`
	Timeout  time.Duration `koanf:"timeout"`
	Required bool          `koanf:"required"`
	Shortcut string        `koanf:"shortcut"`
	OKOffset *PointConfig  `koanf:"ok_offset"`
	Mode     string        `koanf:"mode"`
}

type PopupsConfig struct {
	Security   PopupConfig `koanf:"security"`
	FileDialog PopupConfig `koanf:"file_dialog"`
	Import     PopupConfig `koanf:"import"`
	Update     PopupConfig `koanf:"update"`
	// Stray dialogs are dismissed whenever a phase prepares its window.
	Stray []PopupConfig `koanf:"stray"`
}

type ReportConfig struct {
	DateLayout string `koanf:"date_layout"`
}

type WorkflowConfig struct {
	PhaseDelay     time.Duration `koanf:"phase_delay"`
	CloseOnFailure bool          `koanf:"close_on_failure"`
}

// MetricsConfig enables the node-exporter textfile written after each run.
type MetricsConfig struct {
	Textfile string `koanf:"textfile"`
}

type DiagnosticsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// LockOff disables the machine-wide run lock.
const LockOff = "off"

type ScheduleConfig struct {
	// Spec is a five-field cron expression or a descriptor like @daily.
	Spec     string `koanf:"spec"`
	Timezone string `koanf:"timezone"`

	// MinInterval rejects run starts closer together than this.
	MinInterval time.Duration `koanf:"min_interval"`
	// LockAddr is the loopback port every vbs-autopilot process on the
	// machine binds while it runs the workflow; "off" disables it.
	LockAddr string `koanf:"lock_addr"`
}

type NotifyConfig struct {
	OutboxDir     string   `koanf:"outbox_dir"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	Recipients    []string `koanf:"recipients"`
}

type ServerConfig struct {
	// Addr serves MCP over streamable HTTP; empty means stdio.
	Addr string `koanf:"addr"`
	// MetricsAddr serves /metrics while serve or schedule runs.
	MetricsAddr string `koanf:"metrics_addr"`
}
