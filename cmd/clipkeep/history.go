package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"go.klb.dev/clipkeep/internal/message"
)

const previewWidth = 60

func newListCmd() *cobra.Command {
	var (
		search  string
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clipboard history, most recent first",
		Long: `Lists the history held by the running daemon. --search keeps text entries
that fuzzily match the query (letters in order, case ignored).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := call(&message.Message{Type: message.TypeList, Query: search, Limit: limit})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), resp.Entries)
			}
			printEntries(cmd.OutOrStdout(), resp.Entries, time.Now())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "fuzzy filter for text entries")
	f.IntVarP(&limit, "limit", "n", 20, "maximum number of entries (0 = all)")
	f.BoolVar(&jsonOut, "json", false, "output raw JSON")
	return cmd
}

func printEntries(w io.Writer, entries []message.Entry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "History is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "#\tKIND\tSIZE\tCOPIED\tPREVIEW\n")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.Index, e.Kind, humanize.Bytes(uint64(e.Size)),
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"), preview(e),
		)
	}
	_ = tw.Flush()
}

// preview renders an entry on one line, cut to previewWidth terminal cells.
func preview(e message.Entry) string {
	if e.Kind != "text" {
		return "[" + e.Kind + "]"
	}
	s := strings.Join(strings.Fields(e.Preview), " ")
	return runewidth.Truncate(s, previewWidth, "…")
}

func indexArg(args []string) (int, error) {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("index must be a non-negative integer, got %q", args[0])
	}
	return n, nil
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get INDEX",
		Short: "Write a history entry to stdout",
		Long: `Writes the raw payload of the entry at INDEX (0 = most recent) to stdout.
Images are written as PNG:

  clipkeep get 3 > screenshot.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := indexArg(args)
			if err != nil {
				return err
			}
			resp, err := call(&message.Message{Type: message.TypeGet, Index: n})
			if err != nil {
				return err
			}
			if len(resp.Entries) != 1 || resp.Entries[0].Item == nil {
				return fmt.Errorf("daemon returned no payload for entry %d", n)
			}
			raw, err := resp.Entries[0].Item.Decode()
			if err != nil {
				return fmt.Errorf("decode payload: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

func newRestoreCmd() *cobra.Command {
	var paste bool
	cmd := &cobra.Command{
		Use:   "restore INDEX",
		Short: "Put a history entry back on the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			n, err := indexArg(args)
			if err != nil {
				return err
			}
			_, err = call(&message.Message{Type: message.TypeRestore, Index: n, Paste: paste})
			return err
		},
	}
	cmd.Flags().BoolVar(&paste, "paste", false, "also send the paste shortcut (if enabled)")
	return cmd
}

func newPasteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paste",
		Short: "Run the paste_last action",
		Long:  `Writes the most recent entry to the clipboard and sends the paste shortcut when paste-keystroke is enabled.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := call(&message.Message{Type: message.TypePaste})
			return err
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the whole history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := call(&message.Message{Type: message.TypeClear}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Run the toggle_window action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := call(&message.Message{Type: message.TypeToggle})
			if err != nil {
				return err
			}
			state := "hidden"
			if resp.Visible != nil && *resp.Visible {
				state = "visible"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Window %s.\n", state)
			return nil
		},
	}
}

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-read the key bindings file and re-register hotkeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reloadBindings(cmd.OutOrStdout())
		},
	}
}

func reloadBindings(w io.Writer) error {
	resp, err := call(&message.Message{Type: message.TypeReload})
	if err != nil {
		return err
	}
	printReport(w, resp.Hotkeys)
	return nil
}

func printReport(w io.Writer, hks []message.Hotkey) {
	for _, h := range hks {
		if h.Error != "" {
			fmt.Fprintf(w, "  %-16s %s: %s\n", h.Action, h.State, h.Error)
			continue
		}
		fmt.Fprintf(w, "  %-16s %s\n", h.Action, h.State)
	}
}
