// fuelctl локальный учёт заправок в файле SQLite
package main

import (
	"os"

	"fueltracker/services/fuel-svc/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
