package cmd

import (
	"runtime"

	"github.com/mj1618/vbs-autopilot/internal/output"
	"github.com/mj1618/vbs-autopilot/internal/version"
	"github.com/spf13/cobra"
)

// VersionInfo is the output of the version command.
type VersionInfo struct {
	Version   string `yaml:"version"    json:"version"`
	Commit    string `yaml:"commit"     json:"commit"`
	BuildDate string `yaml:"build_date" json:"build_date"`
	Go        string `yaml:"go"         json:"go"`
	Platform  string `yaml:"platform"   json:"platform"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.Print(currentVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func currentVersion() VersionInfo {
	return VersionInfo{
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		Go:        runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
