package main

import (
	"github.com/mj1618/vbs-autopilot/cmd"

	_ "github.com/mj1618/vbs-autopilot/internal/platform/windows"
)

func main() {
	cmd.Execute()
}
