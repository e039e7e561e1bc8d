package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelpipe/internal/ipc"
	"reelpipe/internal/stage"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the production queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var preset string
	var voice string

	cmd := &cobra.Command{
		Use:   "add <script-file>",
		Short: "Queue a script for production (use - to read stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := readScript(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueAdd(ipc.QueueAddRequest{
					ScriptText: script,
					PresetName: preset,
					VoiceID:    voice,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", resp.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Production preset name")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice id override")
	_ = cmd.MarkFlagRequired("preset")
	return cmd
}

func readScript(path string) (string, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	script := strings.TrimSpace(string(raw))
	if script == "" {
		return "", fmt.Errorf("script is empty")
	}
	return script, nil
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueList(ipc.QueueListRequest{Statuses: statuses})
				if err != nil {
					return err
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderItemTable(resp.Items))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (queued, running, completed, failed)")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				wf := resp.Status.Workflow
				fmt.Fprintln(cmd.OutOrStdout(), renderCountTable(wf.Stats, [][2]string{
					{"active", yesNo(wf.QueueActive)},
					{"max concurrent", fmt.Sprintf("%d", wf.MaxConcurrent)},
				}))
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an item from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRemove(args[0])
				if err != nil {
					return err
				}
				if !resp.Removed {
					return fmt.Errorf("no item with id %s", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed")
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var fromStage string

	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Requeue a failed or completed item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromStage != "" {
				if _, ok := stage.Parse(fromStage); !ok {
					return fmt.Errorf("unknown stage %q (known: %s)", fromStage, knownStages())
				}
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueRetry(args[0], fromStage)
				if err != nil {
					return err
				}
				if !resp.Retried {
					return fmt.Errorf("item %s is not in a retryable state", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Requeued")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fromStage, "from", "", "Resume at this stage instead of restarting")
	return cmd
}

func knownStages() string {
	names := stage.All()
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = string(name)
	}
	return strings.Join(parts, ", ")
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove items from the queue (running items are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completedOnly && failedOnly {
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			}
			scope := "all"
			if completedOnly {
				scope = "completed"
			}
			if failedOnly {
				scope = "failed"
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.QueueClear(scope)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", resp.Removed)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only remove completed items")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only remove failed items")
	return cmd
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Stop dispatching new items (running items finish)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Pause(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue paused")
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume dispatching queued items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Resume(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue resumed")
				return nil
			})
		},
	}
}
