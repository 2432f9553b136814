package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print graphkeepd's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("graphkeepd version %s\n", Version)
		return nil
	},
}
