package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/collect-intel/dtef-app-sub001/internal/server"
)

// defaultStatusAddr matches the daemon's default admin listen address.
const defaultStatusAddr = "http://127.0.0.1:8080"

// statusTimeout bounds the status request.
const statusTimeout = 10 * time.Second

// NewStatusCommand creates the daemon status command.
func NewStatusCommand() *cobra.Command {
	var (
		addr    string
		secret  string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue status of a running daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}

			return runStatus(cmd.Context(), cmd.OutOrStdout(), addr, secret)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultStatusAddr, "daemon admin address")
	cmd.Flags().StringVar(&secret, "secret", "", "admin shared secret")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func runStatus(ctx context.Context, out io.Writer, addr, secret string) error {
	status, err := fetchStatus(ctx, addr, secret)
	if err != nil {
		return err
	}

	renderStatus(out, status)

	return nil
}

func fetchStatus(ctx context.Context, addr, secret string) (server.StatusResponse, error) {
	reqCtx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, addr+"/api/status", http.NoBody)
	if err != nil {
		return server.StatusResponse{}, fmt.Errorf("build status request: %w", err)
	}

	if secret != "" {
		req.Header.Set(server.AuthHeader, secret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return server.StatusResponse{}, fmt.Errorf("fetch status: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)

		return server.StatusResponse{}, fmt.Errorf("status request returned %d: %s", resp.StatusCode, body) //nolint:err113 // CLI-surface error
	}

	var status server.StatusResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&status)
	if decodeErr != nil {
		return server.StatusResponse{}, fmt.Errorf("decode status: %w", decodeErr)
	}

	return status, nil
}

func renderStatus(out io.Writer, status server.StatusResponse) {
	q := status.Queue

	if q.BackfillRunning {
		color.New(color.FgYellow).Fprintf(out, "dtefd %s - backfill running\n", status.Version)
	} else {
		color.New(color.FgGreen).Fprintf(out, "dtefd %s - ok\n", status.Version)
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendRow(table.Row{"Active", q.Active})
	tbl.AppendRow(table.Row{"Queued", q.Queued})
	tbl.AppendRow(table.Row{"Completed", q.TotalCompleted})
	tbl.AppendRow(table.Row{"Failed", q.TotalFailed})
	tbl.AppendRow(table.Row{"Backfills", q.TotalBackfills})

	if !q.LastCompletedAt.IsZero() {
		tbl.AppendRow(table.Row{"Last completed", q.LastCompletedID + " " + humanize.Time(q.LastCompletedAt)})
	}

	if !q.LastFailedAt.IsZero() {
		tbl.AppendRow(table.Row{"Last failed", q.LastFailedID + " " + humanize.Time(q.LastFailedAt)})
	}

	if !q.StartedAt.IsZero() {
		tbl.AppendFooter(table.Row{"Up since", humanize.Time(q.StartedAt)})
	}

	tbl.Render()
}
