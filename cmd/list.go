package cmd

import (
	"strings"

	"github.com/mj1618/vbs-autopilot/internal/model"
	"github.com/mj1618/vbs-autopilot/internal/output"
	"github.com/mj1618/vbs-autopilot/internal/platform"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List top-level windows",
	Long:  "List top-level windows with their handle, PID, process, title and bounds. Useful for choosing title and process hints.",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("all", false, "Include invisible windows")
	listCmd.Flags().Int("pid", 0, "Filter windows by PID")
	listCmd.Flags().String("title", "", "Filter windows by title substring")
	listCmd.Flags().String("process", "", "Filter windows by process image name")
}

type listFilter struct {
	all     bool
	pid     int
	title   string
	process string
}

func (f listFilter) apply(windows []model.Window) []model.Window {
	out := []model.Window{}
	title := strings.ToLower(f.title)
	process := strings.ToLower(f.process)
	for _, w := range windows {
		switch {
		case !f.all && !w.Visible:
		case f.pid != 0 && w.PID != f.pid:
		case title != "" && !strings.Contains(strings.ToLower(w.Title), title):
		case process != "" && !strings.Contains(strings.ToLower(w.Process), process):
		default:
			out = append(out, w)
		}
	}
	return out
}

func runList(cmd *cobra.Command, args []string) error {
	provider, err := platform.NewProvider()
	if err != nil {
		return err
	}

	var f listFilter
	f.all, _ = cmd.Flags().GetBool("all")
	f.pid, _ = cmd.Flags().GetInt("pid")
	f.title, _ = cmd.Flags().GetString("title")
	f.process, _ = cmd.Flags().GetString("process")

	windows, err := provider.Windows.Windows()
	if err != nil {
		return err
	}
	return output.Print(f.apply(windows))
}
