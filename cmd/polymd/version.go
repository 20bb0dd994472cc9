// Copyright PolyMD Authors, 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of polymd",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("polymd %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
