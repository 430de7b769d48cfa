package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sessionq/internal/api"
	"sessionq/internal/ipc"
)

func newJournalCommand(ctx *commandContext) *cobra.Command {
	var req api.JournalRequest

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent queue events from the audit journal (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Journal(cmd.Context(), req)
				if errors.Is(err, api.ErrJournalDisabled) {
					return errors.New("journal is disabled; set [journal] enabled = true and restart the daemon")
				}
				if err != nil {
					return err
				}
				return emit(cmd, ctx, resp, func() error {
					out := cmd.OutOrStdout()
					if len(resp.Events) == 0 {
						fmt.Fprintln(out, "No journal events")
						return nil
					}
					fmt.Fprint(out, renderTable(
						[]string{"#", "Time", "Event", "Item", "Key", "Consumer"},
						buildJournalRows(resp.Events),
						0,
					))
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&req.ItemID, "item", "", "Only events for this item id")
	cmd.Flags().StringVar(&req.Key, "key", "", "Only events for this key")
	cmd.Flags().StringVar(&req.ConsumerID, "consumer", "", "Only events recorded for this consumer")
	cmd.Flags().StringVar(&req.Kind, "kind", "", "Only events of this kind (submit, claim, finalize)")
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "Maximum number of events")
	return cmd
}

func buildJournalRows(events []api.JournalEvent) [][]string {
	rows := make([][]string, 0, len(events))
	for _, evt := range events {
		kind := displayLabel(evt.Kind)
		if evt.Overwrote {
			kind += " (overwrite)"
		}
		rows = append(rows, []string{
			strconv.FormatInt(evt.ID, 10),
			evt.At,
			kind,
			evt.ItemID,
			evt.Key,
			dashIfEmpty(evt.ConsumerID),
		})
	}
	return rows
}
