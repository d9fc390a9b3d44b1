package workflow

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mj1618/vbs-autopilot/internal/model"
)

// DefaultDateFolderLayout names the per-day input and output folders.
const DefaultDateFolderLayout = "2006-01-02"

// Paths describes where a run's files live. File names may contain the
// placeholder {date}, replaced by the date folder name.
type Paths struct {
	InputRoot        string `koanf:"input_root"         yaml:"input_root"`
	OutputRoot       string `koanf:"output_root"        yaml:"output_root"`
	DownloadsDir     string `koanf:"downloads_dir"      yaml:"downloads_dir"`
	ExcelName        string `koanf:"excel_name"         yaml:"excel_name"`
	PDFName          string `koanf:"pdf_name"           yaml:"pdf_name"`
	DateFolderLayout string `koanf:"date_folder_layout" yaml:"date_folder_layout"`
}

// NewContext builds the context of a run for date with a fresh run id.
func NewContext(p Paths, creds model.Credentials, date time.Time) model.WorkflowContext {
	layout := p.DateFolderLayout
	if layout == "" {
		layout = DefaultDateFolderLayout
	}
	folder := date.Format(layout)
	expand := func(name string) string {
		return strings.ReplaceAll(name, "{date}", folder)
	}
	return model.WorkflowContext{
		RunID:       uuid.NewString(),
		DateFolder:  folder,
		Credentials: creds,
		ExcelPath:   filepath.Join(p.InputRoot, folder, expand(p.ExcelName)),
		PDFPath:     filepath.Join(p.OutputRoot, folder, expand(p.PDFName)),
	}
}
