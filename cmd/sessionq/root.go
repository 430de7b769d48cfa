package main

import (
	"github.com/spf13/cobra"
)

const (
	groupQueue   = "queue"
	groupWorkers = "workers"
	groupDaemon  = "daemon"
)

func newRootCommand() *cobra.Command {
	var socketFlag, configFlag string
	var jsonFlag bool
	ctx := newCommandContext(&socketFlag, &configFlag, &jsonFlag)

	root := &cobra.Command{
		Use:   "sessionq",
		Short: "Keyed coordination queue with exclusive per-key sessions",
		Long: `sessionq hands queued items to concurrent consumers while guaranteeing that
items sharing a key are never processed by two consumers at once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&socketFlag, "socket", "", "Path to the sessionq daemon socket")
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.BoolVar(&jsonFlag, "json", false, "Emit machine-readable JSON")

	root.AddGroup(
		&cobra.Group{ID: groupQueue, Title: "Queue Commands:"},
		&cobra.Group{ID: groupWorkers, Title: "Worker Commands:"},
		&cobra.Group{ID: groupDaemon, Title: "Daemon Commands:"},
	)
	addGrouped(root, groupQueue, newQueueCommands(ctx)...)
	addGrouped(root, groupQueue, newJournalCommand(ctx))
	addGrouped(root, groupWorkers, newConsumeCommand(ctx), newSimulateCommand(ctx))
	addGrouped(root, groupDaemon, newDaemonCommand(ctx), newStatusCommand(ctx), newConfigCommand(ctx))
	return root
}

func addGrouped(root *cobra.Command, group string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = group
		root.AddCommand(cmd)
	}
}
