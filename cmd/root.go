// Package cmd defines the carebot CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "carebot",
	Short: "Carebot - grounded Q&A backend for IDD caregivers",
	Long: `Carebot answers caregiver questions about Down Syndrome and other
intellectual/developmental disabilities, grounded in a corpus of research
abstracts with citations, crisis-language guardrails and smalltalk handling.

Run "carebot serve" to start the HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
