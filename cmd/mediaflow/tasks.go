package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BaSui01/mediaflow/llm/kling"
	"github.com/BaSui01/mediaflow/types"
)

func (a *App) newTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue a Kling API token and store it",
		Long: `Token issues a signed API token from the configured access and secret key.
A still-valid stored token is reused. The token is saved to the configured
credential store so other processes can pick it up.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.provisioner()
			if err != nil {
				return err
			}
			cred, err := p.Token(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, cred)
			}
			fmt.Fprintln(a.stdout, cred.Token)
			fmt.Fprintf(a.stderr, "expires at %s\n", cred.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}

// parseKind 解析任务类型参数
func parseKind(s string) (kling.TaskKind, error) {
	kind := kling.TaskKind(s)
	if !kind.Valid() {
		return "", types.Errorf(types.ErrInvalidInput, "unknown task kind %q (want image or video)", s)
	}
	return kind, nil
}

func (a *App) newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <image|video> <task-id>",
		Short: "Query the status of a generation task once",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			tokens, err := a.provisioner()
			if err != nil {
				return err
			}
			status, err := a.klingClient(tokens).Query(cmd.Context(), kind, args[1])
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, status)
			}
			fmt.Fprintf(a.stdout, "%s %s %s", status.Kind, status.TaskID, status.State)
			if status.URL != "" {
				fmt.Fprintf(a.stdout, " %s", status.URL)
			}
			if status.Message != "" {
				fmt.Fprintf(a.stdout, " (%s)", status.Message)
			}
			fmt.Fprintln(a.stdout)
			return nil
		},
	}
}

type waitOutput struct {
	TaskID   string          `json:"task_id"`
	Kind     kling.TaskKind  `json:"kind"`
	State    kling.TaskState `json:"state"`
	URL      string          `json:"url"`
	Attempts int             `json:"attempts"`
	Elapsed  string          `json:"elapsed"`
}

func (a *App) newWaitCommand() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait <image|video> <task-id>",
		Short: "Poll a generation task until it finishes",
		Long: `Wait polls the task at the configured interval until it succeeds, fails,
or the time budget runs out. Query errors are retried as if the task were
still pending.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			tokens, err := a.provisioner()
			if err != nil {
				return err
			}
			client := a.klingClient(tokens)

			ctx := types.WithTaskID(cmd.Context(), args[1])
			res, err := a.waiter(timeout).WaitTask(ctx, client, kind, args[1])
			if err != nil {
				return err
			}
			out := waitOutput{
				TaskID:   args[1],
				Kind:     kind,
				State:    kling.TaskSucceeded,
				URL:      res.URL,
				Attempts: res.Attempts,
				Elapsed:  res.Elapsed.Round(time.Millisecond).String(),
			}
			if a.jsonOutput {
				return writeJSON(a.stdout, out)
			}
			fmt.Fprintln(a.stdout, out.URL)
			fmt.Fprintf(a.stderr, "succeeded after %d polls in %s\n", out.Attempts, out.Elapsed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override poll.timeout")
	return cmd
}
