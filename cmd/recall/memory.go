package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/recall/internal/memlog"
	"github.com/fyrsmithlabs/recall/internal/memory"
)

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(ctx)
	return fn(a)
}

func newAppendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append <user-text> <assistant-text>",
		Short: "Store one exchange",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				rec, err := a.svc.Append(cmd.Context(), userKey, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored (tags: %s)\n", strings.Join(rec.Tags, ", "))
				return nil
			})
		},
	}
}

func newContextCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "context <prompt>",
		Short: "Assemble memory context for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			return withApp(cmd, func(a *app) error {
				c, err := a.svc.BuildContext(cmd.Context(), userKey, prompt)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), c)
				}
				fmt.Fprintln(cmd.OutOrStdout(), memory.FormatPrompt(c, prompt))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the context as JSON")
	return cmd
}

func newLatestCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent exchanges, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				if !cmd.Flags().Changed("count") {
					n = a.cfg.Memory.LatestN
				}
				records, err := a.svc.LatestN(cmd.Context(), userKey, n)
				if err != nil {
					return err
				}
				printRecords(cmd.OutOrStdout(), records)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 10, "number of exchanges")
	return cmd
}

func newShortTermCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "short-term",
		Short: "Print the short-term memory block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				block, err := a.svc.ShortTerm(cmd.Context(), userKey, n)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), block)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "number of exchanges (0 uses the configured default)")
	return cmd
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored exchange for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				if err := a.svc.Clear(cmd.Context(), userKey); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cleared")
				return nil
			})
		},
	}
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Summarize a user's whole history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				s, err := a.svc.SummarizeUserHistory(cmd.Context(), userKey)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s)
				return nil
			})
		},
	}
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags <text>",
		Short: "Extract tags from text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				for _, tag := range a.svc.ExtractTags(strings.Join(args, " ")) {
					fmt.Fprintln(cmd.OutOrStdout(), tag)
				}
				return nil
			})
		},
	}
}

func printRecords(w io.Writer, records []memlog.Record) {
	for i, rec := range records {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, rec.Render())
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
