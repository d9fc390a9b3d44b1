package fake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mj1618/vbs-autopilot/internal/model"
)

// Window titles and classes produced by the simulated application.
const (
	VBSProcess      = "VBS.exe"
	VBSClass        = "ThunderRT6FormDC"
	DialogClass     = "#32770"
	SecurityTitle   = "Open File - Security Warning"
	LoginTitle      = "VBS Accounting - Login"
	FileDialogTitle = "Open"
	ImportDoneTitle = "Import Successful"
	UpdateDoneTitle = "Update Successful"
	ImportTitleTail = " - Data Import"
	ReportTitleTail = " - Ledger Report"
	ReportFileName  = "LedgerReport.pdf"
	hitTolerance    = 6
)

// VBSOptions tunes the simulated application.
type VBSOptions struct {
	Profile      *model.CoordinateProfile
	DownloadsDir string

	// NoSecurityPopup makes the launch hang before the publisher warning.
	NoSecurityPopup bool
	// NoAccelerators ignores menu keyboard shortcuts.
	NoAccelerators bool
	// SkipPDF makes the export button do nothing.
	SkipPDF bool
	// StuckDialogs is how many file dialogs ignore Enter and only close
	// on Escape.
	StuckDialogs int

	LaunchDelay time.Duration
	ImportDelay time.Duration
	UpdateDelay time.Duration
	ReportDelay time.Duration
	ExportDelay time.Duration
}

// VBS simulates the accounting application on a Desktop.
type VBS struct {
	d    *Desktop
	opts VBSOptions

	mu         sync.Mutex
	pid        int
	main       uintptr
	dialog     uintptr
	company    string
	state      string
	focus      string
	selectAll  bool
	fields     map[string]string
	menu       string
	dialogDir  string
	dialogText string
	dialogs    int
	stuck      bool
	selected   string
	checked    bool
	imported   bool
	updated    bool
	generated  bool
	busy       bool
	popups     map[uintptr]func()
	launches   int
	violations []string
	exportedTo string
}

// NewVBS installs the simulator on d. The application is not running.
func NewVBS(d *Desktop, opts VBSOptions) *VBS {
	if opts.LaunchDelay == 0 {
		opts.LaunchDelay = 3 * time.Second
	}
	if opts.ImportDelay == 0 {
		opts.ImportDelay = 6 * time.Second
	}
	if opts.UpdateDelay == 0 {
		opts.UpdateDelay = 4 * time.Second
	}
	if opts.ReportDelay == 0 {
		opts.ReportDelay = 3 * time.Second
	}
	if opts.ExportDelay == 0 {
		opts.ExportDelay = 2 * time.Second
	}
	v := &VBS{
		d:      d,
		opts:   opts,
		pid:    4100,
		state:  "closed",
		fields: make(map[string]string),
		popups: make(map[uintptr]func()),
	}
	d.OnLaunch(v.launch)
	d.OnEvent(v.handle)
	return v
}

// StartAtLogin opens the login window as if the app was already running.
func (v *VBS) StartAtLogin(minimized bool) uintptr {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.openLogin(minimized)
	return v.main
}

// StartLoggedIn opens the main window as if a previous run logged in.
func (v *VBS) StartLoggedIn(company string) uintptr {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.openLogin(false)
	v.company = company
	v.state = "main"
	v.d.Update(v.main, func(w *model.Window) { w.Title = v.mainTitle("") })
	return v.main
}

// Main returns the application's main window handle, or 0.
func (v *VBS) Main() uintptr {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.main
}

func (v *VBS) Launches() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.launches
}

// Violations lists inputs the application received while busy.
func (v *VBS) Violations() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.violations...)
}

// Field returns the text typed into a form field.
func (v *VBS) Field(name string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fields[name]
}

// Dialogs returns how many file dialogs were opened.
func (v *VBS) Dialogs() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dialogs
}

func (v *VBS) State() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *VBS) Imported() (file string, imported, updated bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected, v.imported, v.updated
}

func (v *VBS) launch(path string) (int, error) {
	v.mu.Lock()
	v.launches++
	pid := v.pid
	v.mu.Unlock()
	if v.opts.NoSecurityPopup {
		return pid, nil
	}
	v.d.After(time.Second, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.openPopup(SecurityTitle, 900, func() {
			v.d.After(v.opts.LaunchDelay, func() {
				v.mu.Lock()
				defer v.mu.Unlock()
				v.openLogin(false)
			})
		})
	})
	return pid, nil
}

func (v *VBS) openLogin(minimized bool) {
	v.state = "login"
	v.main = v.d.Open(model.Window{
		PID:       v.pid,
		Process:   VBSProcess,
		Title:     LoginTitle,
		Class:     VBSClass,
		Bounds:    [4]int{100, 100, 1024, 768},
		Visible:   true,
		Minimized: minimized,
	})
}

// openPopup shows a dialog that closes on Enter, any alt shortcut or a
// click, then runs onDismiss. Called with v.mu held.
func (v *VBS) openPopup(title string, pid int, onDismiss func()) uintptr {
	h := v.d.Open(model.Window{
		PID:     pid,
		Process: VBSProcess,
		Title:   title,
		Class:   DialogClass,
		Bounds:  [4]int{420, 340, 360, 180},
		Visible: true,
	})
	v.popups[h] = onDismiss
	return h
}

func (v *VBS) mainTitle(tail string) string {
	return fmt.Sprintf("VBS Accounting - [%s]%s", v.company, tail)
}

func (v *VBS) handle(ev Event) {
	if ev.Kind == EventClose {
		return
	}
	v.mu.Lock()
	var after func()
	switch {
	case v.popups[ev.HWND] != nil:
		after = v.handlePopup(ev)
	case ev.HWND != 0 && ev.HWND == v.dialog:
		v.handleDialog(ev)
	case ev.HWND != 0 && ev.HWND == v.main:
		if v.busy {
			v.violations = append(v.violations, fmt.Sprintf("%s while busy in %s", ev.Kind, v.state))
		} else {
			v.handleMain(ev)
		}
	}
	v.mu.Unlock()
	if after != nil {
		after()
	}
}

func (v *VBS) handlePopup(ev Event) func() {
	dismiss := ev.Kind == EventClick ||
		(ev.Kind == EventKey && (ev.Key.Name == "enter" || ev.Key.Name == "return" || ev.Key.Alt))
	if !dismiss {
		return nil
	}
	fn := v.popups[ev.HWND]
	delete(v.popups, ev.HWND)
	v.d.Destroy(ev.HWND)
	return fn
}

func (v *VBS) handleDialog(ev Event) {
	switch ev.Kind {
	case EventChar:
		if v.selectAll {
			v.dialogText = ""
			v.selectAll = false
		}
		v.dialogText += string(ev.Rune)
	case EventKey:
		switch {
		case ev.Key.Ctrl && ev.Key.Name == "a":
			v.selectAll = true
		case ev.Key.Name == "backspace" || ev.Key.Name == "delete":
			if v.selectAll || len(v.dialogText) == 0 {
				v.dialogText = ""
			} else {
				v.dialogText = v.dialogText[:len(v.dialogText)-1]
			}
			v.selectAll = false
		case ev.Key.Name == "enter" || ev.Key.Name == "return":
			v.submitDialog()
		case ev.Key.Name == "escape" || ev.Key.Name == "esc":
			v.d.Destroy(v.dialog)
			v.dialog = 0
		}
	}
}

func (v *VBS) submitDialog() {
	text := strings.TrimSpace(v.dialogText)
	v.dialogText = ""
	if v.stuck {
		return
	}
	path := text
	if !filepath.IsAbs(path) && v.dialogDir != "" {
		path = filepath.Join(v.dialogDir, text)
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return
	case info.IsDir():
		v.dialogDir = path
	default:
		v.selected = path
		v.d.Destroy(v.dialog)
		v.dialog = 0
	}
}

func (v *VBS) handleMain(ev Event) {
	switch ev.Kind {
	case EventClick:
		v.clickMain(v.targetAt(ev.X, ev.Y))
	case EventChar:
		if v.focus == "" {
			return
		}
		if v.selectAll {
			v.fields[v.focus] = ""
			v.selectAll = false
		}
		v.fields[v.focus] += string(ev.Rune)
	case EventKey:
		v.keyMain(ev)
	}
}

func (v *VBS) keyMain(ev Event) {
	k := ev.Key
	switch {
	case k.Ctrl && k.Name == "a":
		v.selectAll = true
	case k.Name == "backspace" || k.Name == "delete":
		if v.focus != "" && v.selectAll {
			v.fields[v.focus] = ""
		}
		v.selectAll = false
	case v.opts.NoAccelerators:
	case k.Alt && k.Name == "u" && v.loggedIn():
		v.menu = "utilities"
	case k.Alt && k.Name == "r" && v.loggedIn():
		v.menu = "reports"
	case !k.Alt && k.Name == "i" && v.menu == "utilities":
		v.enterImport()
	case !k.Alt && k.Name == "l" && v.menu == "reports":
		v.enterReport()
	}
}

func (v *VBS) clickMain(target string) {
	v.focus = ""
	v.selectAll = false
	switch v.state {
	case "login":
		switch target {
		case "company_code_field", "financial_year_field":
			v.focus = target
		case "login_ok_button":
			if v.fields["company_code_field"] != "" && v.fields["financial_year_field"] != "" {
				v.company = v.fields["company_code_field"]
				v.state = "main"
				v.d.Update(v.main, func(w *model.Window) { w.Title = v.mainTitle("") })
			}
		}
	case "main", "import", "report":
		switch target {
		case "utilities_menu":
			v.menu = "utilities"
			return
		case "data_import_item":
			if v.menu == "utilities" {
				v.enterImport()
			}
		case "reports_menu":
			v.menu = "reports"
			return
		case "report_item":
			if v.menu == "reports" {
				v.enterReport()
			}
		case "browse_button":
			if v.state == "import" && v.dialog == 0 {
				v.dialog = v.d.Open(model.Window{
					PID: v.pid, Process: VBSProcess, Title: FileDialogTitle, Class: DialogClass,
					Bounds: [4]int{300, 250, 600, 400}, Visible: true,
				})
				v.dialogDir = ""
				v.dialogs++
				v.stuck = v.dialogs <= v.opts.StuckDialogs
			}
		case "import_checkbox":
			if v.state == "import" {
				v.checked = true
			}
		case "import_button":
			if v.state == "import" && v.selected != "" && v.checked {
				v.runBusy(v.opts.ImportDelay, ImportDoneTitle, func() { v.imported = true })
			}
		case "update_button":
			if v.state == "import" && v.imported {
				v.runBusy(v.opts.UpdateDelay, UpdateDoneTitle, func() { v.updated = true })
			}
		case "from_date_field", "to_date_field":
			if v.state == "report" {
				v.focus = target
			}
		case "generate_button":
			if v.state == "report" && v.fields["from_date_field"] != "" && v.fields["to_date_field"] != "" {
				v.busy = true
				v.d.After(v.opts.ReportDelay, func() {
					v.mu.Lock()
					defer v.mu.Unlock()
					v.busy = false
					v.generated = true
				})
			}
		case "export_pdf_button":
			if v.state == "report" && v.generated && !v.opts.SkipPDF {
				v.d.After(v.opts.ExportDelay, v.writePDF)
			}
		}
	}
	v.menu = ""
}

func (v *VBS) loggedIn() bool {
	return v.state == "main" || v.state == "import" || v.state == "report"
}

func (v *VBS) enterImport() {
	v.menu = ""
	v.state = "import"
	v.selected = ""
	v.checked = false
	v.imported = false
	v.updated = false
	v.d.Update(v.main, func(w *model.Window) { w.Title = v.mainTitle(ImportTitleTail) })
}

func (v *VBS) enterReport() {
	v.menu = ""
	v.state = "report"
	v.generated = false
	delete(v.fields, "from_date_field")
	delete(v.fields, "to_date_field")
	v.d.Update(v.main, func(w *model.Window) { w.Title = v.mainTitle(ReportTitleTail) })
}

// runBusy blocks the main window for delay, then shows a confirmation.
func (v *VBS) runBusy(delay time.Duration, title string, onDismiss func()) {
	v.busy = true
	v.d.After(delay, func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.busy = false
		v.openPopup(title, v.pid, func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			onDismiss()
		})
	})
}

func (v *VBS) writePDF() {
	if v.opts.DownloadsDir == "" {
		return
	}
	path := filepath.Join(v.opts.DownloadsDir, ReportFileName)
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err == nil {
		v.mu.Lock()
		v.exportedTo = path
		v.mu.Unlock()
	}
}

// targetAt maps client coordinates to the nearest profile target.
func (v *VBS) targetAt(x, y int) string {
	if v.opts.Profile == nil {
		return ""
	}
	best, bestDist := "", hitTolerance*hitTolerance+1
	for name, pt := range v.opts.Profile.Targets() {
		dx, dy := pt.X-x, pt.Y-y
		if dist := dx*dx + dy*dy; dist < bestDist {
			best, bestDist = name, dist
		}
	}
	return best
}
