// Recall is a per-user conversational memory store.
//
// It keeps every user/assistant exchange in an append-only log and, before
// each new prompt, retrieves semantically similar exchanges, exchanges whose
// tags match the prompt, a summary of the whole history and the most recent
// turns.
//
// Usage:
//
//	# Serve the REST API
//	recall serve
//
//	# Work with a local store directly
//	recall append --user alice "I love hiking" "Hiking is great exercise."
//	recall context --user alice "any trail suggestions?"
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	userKey    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recall",
		Short: "Per-user conversational memory store",
		Long: `recall stores conversation exchanges per user and assembles prompt
context from them: semantic matches, tag-triggered exchanges, a global
summary and short-term memory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/recall/config.yaml)")
	root.PersistentFlags().StringVarP(&userKey, "user", "u", "", "user key")

	root.AddCommand(
		newServeCmd(),
		newAppendCmd(),
		newContextCmd(),
		newLatestCmd(),
		newShortTermCmd(),
		newClearCmd(),
		newSummaryCmd(),
		newTagsCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "recall by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}

// requireUser checks the --user flag for commands that operate on a log.
func requireUser() error {
	if userKey == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}
