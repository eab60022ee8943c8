package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"go.klb.dev/clipkeep/internal/ipc"
	"go.klb.dev/clipkeep/internal/message"
)

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's state and hotkeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := call(&message.Message{Type: message.TypeStatus})
			if err != nil {
				return err
			}
			if resp.Status == nil {
				return fmt.Errorf("daemon returned no status")
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), resp.Status)
			}
			printStatus(cmd.OutOrStdout(), resp.Status, time.Now())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output raw JSON")
	return cmd
}

func printStatus(out io.Writer, st *message.Status, now time.Time) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s (pid %d)\n", st.Version, st.PID)
	fmt.Fprintf(w, "Socket:\t%s\n", ipc.SocketPath())
	fmt.Fprintf(w, "Started:\t%s\n", humanize.RelTime(st.StartedAt, now, "ago", "from now"))
	fmt.Fprintf(w, "Backend:\t%s\n", st.Backend)
	fmt.Fprintf(w, "History:\t%d of %d entries (%s)\n", st.Entries, st.MaxItems, st.HistoryPath)
	if st.LastCapture.IsZero() {
		fmt.Fprintf(w, "Last capture:\t-\n")
	} else {
		fmt.Fprintf(w, "Last capture:\t%s\n", humanize.RelTime(st.LastCapture, now, "ago", "from now"))
	}
	fmt.Fprintf(w, "Poll interval:\t%s\n", time.Duration(st.WatchIntervalMS)*time.Millisecond)
	fmt.Fprintf(w, "Paste keystroke:\t%t\n", st.PasteKeystroke)
	fmt.Fprintf(w, "Window:\t%s\n", visibility(st.Visible))
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(st.Hotkeys) == 0 {
		fmt.Fprintln(out, "No hotkeys configured.")
		return
	}
	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ACTION\tCOMBO\tSTATE\n")
	for _, h := range st.Hotkeys {
		state := h.State
		if !h.Enabled {
			state = "disabled"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", h.Action, h.Combo, state)
	}
	_ = tw.Flush()
}

func visibility(v bool) string {
	if v {
		return "visible"
	}
	return "hidden"
}
