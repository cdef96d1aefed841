package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/storyflow/story"
	"github.com/randalmurphal/storyflow/workflow"
)

// TopicPrompt is asked when no topic is given on the command line.
const TopicPrompt = "Topic for Jira story: "

var errEmptyTopic = errors.New("a topic is required")

var withSubtasks bool

var runCmd = &cobra.Command{
	Use:   "run [topic...]",
	Short: "Generate a story, preview it, and create it on approval",
	Long: `Generate a story for the topic, print a preview and ask for approval.
Only "y" or "yes" creates the issue. With --subtasks the approved story is
split into subtasks that are created under it.`,
	RunE: runStory,
}

func init() {
	runCmd.Flags().BoolVar(&withSubtasks, "subtasks", false, "also generate and create subtasks")
	rootCmd.AddCommand(runCmd)
}

func runStory(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	in := workflow.NewReaderApprover(cmd.InOrStdin(), out)

	topic, err := readTopic(in, out, args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := workflow.WithApprover(a.context(cmd.Context()), previewApprover(in, out))

	final := a.runner.RunMainWorkflow(ctx, topic)
	switch final.Outcome() {
	case workflow.OutcomeFailed:
		return a.explain(final.Err())
	case workflow.OutcomeRejected:
		fmt.Fprintln(out, "Story creation rejected.")
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", final.Key, final.URL)

	if !withSubtasks {
		return nil
	}
	return createSubtasks(ctx, a, out, final.State.Story(), final.Key)
}

// readTopic joins args, or prompts for a topic when there are none.
func readTopic(in *workflow.ReaderApprover, out io.Writer, args []string) (string, error) {
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic != "" {
		return topic, nil
	}

	fmt.Fprint(out, TopicPrompt)
	topic, err := in.ReadLine()
	if err != nil {
		return "", err
	}
	if topic == "" {
		return "", errEmptyTopic
	}
	return topic, nil
}

// previewApprover prints the preview before asking for a decision.
func previewApprover(in *workflow.ReaderApprover, out io.Writer) workflow.Approver {
	return workflow.ApproverFunc(func(ctx context.Context, preview string) (string, error) {
		fmt.Fprintln(out, preview)
		return in.Decide(ctx, preview)
	})
}

func createSubtasks(ctx context.Context, a *app, out io.Writer, parent story.Story, parentKey string) error {
	result, err := a.runner.RunSubtaskWorkflow(ctx, parent, parentKey)
	if err != nil {
		return a.explain(err)
	}

	for _, c := range result.Created {
		fmt.Fprintf(out, "  subtask %s %s\n", c.Key, c.URL)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(out, "  failed  %q: %s\n", f.Title, f.Error)
	}
	if len(result.Created) == 0 && len(result.Failures) > 0 {
		return fmt.Errorf("no subtasks created under %s", parentKey)
	}
	return nil
}
