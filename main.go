package main

import (
	"fmt"
	"os"

	"parking_control/internal/cmd"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "parking-control",
		Short:   "Parking spot control API",
		Long:    `Registers residents' parking spots and the cars assigned to them.`,
		Version: version,
	}

	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
