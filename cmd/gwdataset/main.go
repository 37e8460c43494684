package main

import (
	"os"

	"github.com/withObsrvr/gameweek-dataset/cmd/gwdataset/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
