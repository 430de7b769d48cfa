package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"sessionq/internal/api"
	"sessionq/internal/config"
	"sessionq/internal/ipc"
	"sessionq/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, journal, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			status, dialErr := fetchStatus(cmd, ctx)
			if dialErr != nil {
				status = offlineStatus(cmd, cfg, ctx.socketPath())
			}

			return emit(cmd, ctx, status, func() error {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				renderDaemonStatus(stdout, cmd, status, dialErr, colorize)
				return nil
			})
		},
	}
}

func fetchStatus(cmd *cobra.Command, ctx *commandContext) (*api.DaemonStatus, error) {
	var status *api.DaemonStatus
	err := ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Status(cmd.Context())
		if err != nil {
			return err
		}
		status = resp
		return nil
	})
	return status, err
}

func offlineStatus(cmd *cobra.Command, cfg *config.Config, socket string) *api.DaemonStatus {
	status := &api.DaemonStatus{SocketPath: socket}
	if cfg == nil {
		return status
	}
	status.LockFilePath = cfg.LockPath()
	status.Journal = api.JournalStatus{Enabled: cfg.Journal.Enabled, Path: cfg.Journal.Path}
	for _, result := range preflight.RunAll(cmd.Context(), cfg) {
		status.Directories = append(status.Directories, api.DirectoryStatus{
			Name:   result.Name,
			Path:   result.Path,
			Ok:     result.Passed,
			Detail: result.Detail,
		})
	}
	return status
}

func renderDaemonStatus(w io.Writer, cmd *cobra.Command, status *api.DaemonStatus, dialErr error, colorize bool) {
	printSection(w, "Daemon", colorize)
	if status.Running {
		fmt.Fprintln(w, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		fmt.Fprintln(w, renderStatusLine("Run ID", statusInfo, status.RunID, colorize))
		if status.StartedAt != "" {
			fmt.Fprintln(w, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
		}
	} else {
		detail := "Not running"
		if dialErr != nil {
			detail = fmt.Sprintf("Not running (%v)", dialErr)
		}
		fmt.Fprintln(w, renderStatusLine("Daemon", statusError, detail, colorize))
	}
	fmt.Fprintln(w, renderStatusLine("Socket", statusInfo, status.SocketPath, colorize))
	if status.LogPath != "" {
		fmt.Fprintln(w, renderStatusLine("Log", statusInfo, status.LogPath, colorize))
	}
	if status.Running {
		apiCheck := preflight.CheckHTTPAPI(cmd.Context(), status.APIBind)
		kind := statusFromBool(apiCheck.Passed)
		if status.APIBind == "" {
			kind = statusInfo
		}
		fmt.Fprintln(w, renderStatusLine(apiCheck.Name, kind, apiCheck.Detail, colorize))
	}
	fmt.Fprintln(w)

	printSection(w, "Journal", colorize)
	switch {
	case !status.Journal.Enabled:
		fmt.Fprintln(w, renderStatusLine("Journal", statusInfo, "Disabled", colorize))
	case status.Journal.Error != "":
		fmt.Fprintln(w, renderStatusLine("Journal", statusError, status.Journal.Error, colorize))
	default:
		fmt.Fprintln(w, renderStatusLine("Journal", statusOK, status.Journal.Path, colorize))
		if status.Running {
			dropKind := statusOK
			if status.Journal.Dropped > 0 || status.Journal.Failed > 0 {
				dropKind = statusWarn
			}
			fmt.Fprintln(w, renderStatusLine("Records", statusInfo, strconv.FormatInt(status.Journal.Records, 10), colorize))
			fmt.Fprintln(w, renderStatusLine("Dropped/Failed", dropKind,
				fmt.Sprintf("%d/%d", status.Journal.Dropped, status.Journal.Failed), colorize))
		}
	}
	fmt.Fprintln(w)

	printSection(w, "Directories", colorize)
	for _, dir := range status.Directories {
		fmt.Fprintln(w, renderStatusLine(dir.Name, statusFromBool(dir.Ok), dir.Detail, colorize))
	}

	if !status.Running {
		return
	}
	fmt.Fprintln(w)
	printSection(w, "Queue", colorize)
	fmt.Fprint(w, renderKeyValueTable("", queueStatsRows(status.Queue)))
}

func queueStatsRows(stats api.QueueStats) []kvRow {
	return []kvRow{
		{"Pending", strconv.Itoa(stats.Pending)},
		{"In flight (active keys)", strconv.Itoa(stats.InFlight)},
		{"Distinct keys", strconv.Itoa(stats.Keys)},
		{"Submitted", strconv.FormatUint(stats.Submitted, 10)},
		{"Overwritten", strconv.FormatUint(stats.Overwritten, 10)},
		{"Claimed", strconv.FormatUint(stats.Claimed, 10)},
		{"Empty claims", strconv.FormatUint(stats.EmptyClaims, 10)},
		{"Finalized", strconv.FormatUint(stats.Finalized, 10)},
		{"Finalize misses", strconv.FormatUint(stats.FinalizeMisses, 10)},
	}
}
