package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "/etc/deckfsd/deckfsd.yaml", "Path to deckfsd.yaml")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(makeDirsCmd)
	rootCmd.AddCommand(brightnessCmd)
	rootCmd.AddCommand(pageCmd)
}

var rootCmd = &cobra.Command{
	Use:   "deckfsd",
	Short: "deckfsd turns a directory tree into a live key-grid display",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
