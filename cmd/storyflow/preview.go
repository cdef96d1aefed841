package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/storyflow/workflow"
)

var previewCmd = &cobra.Command{
	Use:   "preview <topic...>",
	Short: "Generate and preview a story, keeping the run for finalize",
	Args:  cobra.MinimumNArgs(1),
	RunE:  previewStory,
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <run-id> <decision>",
	Short: "Approve or reject a previewed run",
	Long: `Resume a run saved by preview. A decision of "y" or "yes" creates the
issue; anything else rejects it.`,
	Args: cobra.ExactArgs(2),
	RunE: finalizeRun,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List runs waiting for a decision",
	Args:  cobra.NoArgs,
	RunE:  listPending,
}

func init() {
	rootCmd.AddCommand(previewCmd, finalizeCmd, pendingCmd)
}

func previewStory(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" {
		return errEmptyTopic
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.settings.Redis.Addr == "" {
		a.logger.Warn("runs are kept in memory; set redis_addr to finalize from another process")
	}

	previewed, err := a.runner.Preview(a.context(cmd.Context()), topic)
	if err != nil {
		return a.explain(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, previewed.Preview)
	fmt.Fprintf(out, "Run ID: %s\n", previewed.RunID)
	fmt.Fprintf(out, "Finish with: storyflow finalize %s yes\n", previewed.RunID)
	return nil
}

func finalizeRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	final, err := a.runner.Resume(a.context(cmd.Context()), args[0], args[1])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch final.Outcome() {
	case workflow.OutcomeFailed:
		return a.explain(final.Err())
	case workflow.OutcomeRejected:
		fmt.Fprintln(out, "Story creation rejected.")
	default:
		fmt.Fprintf(out, "%s %s\n", final.Key, final.URL)
	}
	return nil
}

func listPending(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.runner.Pending(cmd.Context())
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
