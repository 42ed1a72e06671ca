package main

import (
	"os"

	"github.com/towersched/towersched/cmd/towersched/cmd"
	"github.com/towersched/towersched/internal/common"
	"github.com/towersched/towersched/internal/common/schederrors"
)

func main() {
	common.ConfigureLogging()
	err := cmd.RootCmd().Execute()
	if err != nil {
		os.Exit(schederrors.ExitCodeFromError(err))
	}
}
