// Command invcore is the process entrypoint: a cobra root command wiring
// configuration, logging and storage construction around exactly two
// subcommands, migrate and serve. It owns process lifecycle only; every
// CRUD operation lives in the internal service packages, driven here or
// by a future transport layer, never inlined into a cobra Run func.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "invcore",
	Short: "Inventory catalogue and deployment tracker core",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (optional; IMS_ env vars and defaults otherwise)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
