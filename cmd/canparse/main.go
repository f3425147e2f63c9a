package main

import (
	"fmt"
	"os"

	"CANParse/base"

	"github.com/spf13/cobra"
)

var (
	log = base.Logger

	configPath string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "canparse",
	Short: "DBC parser and CAN signal decoder",
	Long:  "Parse DBC files into a J1939 PGN library and decode CAN payloads, one-shot or as a UDP to MQTT bridge.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", base.ConfigPath, "JSON config file")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
