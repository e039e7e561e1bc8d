package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reelpipe/internal/daemon"
	"reelpipe/internal/ipc"
	"reelpipe/internal/logging"
	"reelpipe/internal/preflight"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(logging.Paths{
				LogDir: cfg.Paths.LogDir,
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			for _, result := range preflight.RunAll(runCtx, cfg) {
				if !result.Passed {
					logger.Warn("preflight failed",
						logging.String("check", result.Name),
						logging.String("detail", result.Detail))
				}
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			server, err := ipc.NewServer(runCtx, cfg.Paths.SocketPath, d, cancel, logger)
			if err != nil {
				return fmt.Errorf("start IPC server: %w", err)
			}
			defer server.Close()
			server.Serve()

			if err := d.Start(runCtx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			<-runCtx.Done()
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				status := resp.Status
				fmt.Fprintln(cmd.OutOrStdout(), renderFieldTable([][2]string{
					{"Running", yesNo(status.Running)},
					{"PID", fmt.Sprintf("%d", resp.PID)},
					{"Queue active", yesNo(status.Workflow.QueueActive)},
					{"Items running", fmt.Sprintf("%d / %d", status.Workflow.RunningCount, status.Workflow.MaxConcurrent)},
					{"Realtime connected", yesNo(status.RealtimeConnected)},
					{"Backend", status.BackendURL},
					{"Queue database", status.QueueDBPath},
					{"Lock file", status.LockFilePath},
					{"Presets", strings.Join(status.Presets, ", ")},
				}))
				return nil
			})
		},
	}
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Ask the daemon to shut down",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				return nil
			})
		},
	}
}
