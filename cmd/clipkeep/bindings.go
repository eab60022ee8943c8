package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipkeep/internal/config"
	"go.klb.dev/clipkeep/internal/fsutil"
	"go.klb.dev/clipkeep/internal/ipc"
	"go.klb.dev/clipkeep/internal/keybind"
	"go.klb.dev/clipkeep/internal/message"
)

// errDaemonSilent is returned when the data directory is locked but nothing
// answers on the control socket.
var errDaemonSilent = errors.New("a clipkeep daemon holds the data directory but is not answering on the control socket")

func newBindingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Show and edit the global hotkey bindings",
		Long: `Shows and edits keybindings.json in the data directory. The file maps
an action to a key combination such as "Ctrl+Alt+V". Built-in actions are
toggle_window, paste_last and clear_history; paste_<n> puts history entry n
back on the clipboard.

While a daemon is running it owns the file: these commands go through its
control socket and "bindings set" re-registers the hotkeys straight away.
Otherwise the file is edited directly under the data directory lock.`,
	}
	cmd.AddCommand(newBindingsShowCmd(), newBindingsSetCmd(), newBindingsCheckCmd())
	return cmd
}

// bindingsCmd builds a bindings sub-command with the shared --data-dir and
// --config handling.
func bindingsCmd(use, short string, args cobra.PositionalArgs, run func(*cobra.Command, *viper.Viper, []string) error) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    args,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, a []string) error { return run(cmd, v, a) },
	}
	addDataDirFlag(cmd)
	addConfigFlag(cmd)
	return cmd
}

// withDataLock runs fn while holding the data directory lock, so no daemon
// can start and write the files underneath it.
func withDataLock(paths config.Paths, fn func() error) error {
	if err := fsutil.EnsureDir(paths.Dir); err != nil {
		return err
	}
	unlock, err := fsutil.Lock(paths.Dir, config.LockFile)
	if errors.Is(err, fsutil.ErrLocked) {
		return errDaemonSilent
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			slog.Warn("releasing data directory lock", "err", err)
		}
	}()
	return fn()
}

// currentBindings returns the bindings table, asking the daemon when one is
// running and reading the file under the lock otherwise.
func currentBindings(v *viper.Viper) (keybind.Table, string, error) {
	if ipc.IsRunning() {
		resp, err := call(&message.Message{Type: message.TypeBindings})
		if err != nil {
			return nil, "", err
		}
		return tableOf(resp.Hotkeys), "daemon", nil
	}

	paths, err := dataPaths(v)
	if err != nil {
		return nil, "", err
	}
	var table keybind.Table
	err = withDataLock(paths, func() error {
		var lerr error
		table, lerr = keybind.Load(paths.Bindings())
		return lerr
	})
	return table, paths.Bindings(), err
}

func tableOf(hks []message.Hotkey) keybind.Table {
	t := make(keybind.Table, len(hks))
	for _, h := range hks {
		t[keybind.Action(h.Action)] = keybind.Binding{Combo: h.Combo, Enabled: h.Enabled}
	}
	return t
}

func newBindingsShowCmd() *cobra.Command {
	cmd := bindingsCmd("show", "Print the configured bindings", cobra.NoArgs,
		func(cmd *cobra.Command, v *viper.Viper, _ []string) error {
			table, _, err := currentBindings(v)
			if err != nil {
				return err
			}
			if v.GetBool("json") {
				return printJSON(cmd.OutOrStdout(), table)
			}
			printBindings(cmd.OutOrStdout(), table)
			return nil
		})
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func printBindings(w io.Writer, t keybind.Table) {
	tw := tabwriter.NewWriter(w, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ACTION\tCOMBO\tENABLED\n")
	for _, a := range t.Actions() {
		b := t[a]
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%t\n", a, b.Combo, b.Enabled)
	}
	_ = tw.Flush()
}

func newBindingsSetCmd() *cobra.Command {
	cmd := bindingsCmd("set ACTION [COMBO]", "Bind an action to a key combination",
		cobra.RangeArgs(1, 2),
		func(cmd *cobra.Command, v *viper.Viper, args []string) error {
			edit := editOf(args, v.GetBool("disable"), v.GetBool("remove"))
			out := cmd.OutOrStdout()

			if ipc.IsRunning() {
				resp, err := call(&message.Message{
					Type:    message.TypeSetBinding,
					Action:  string(edit.Action),
					Combo:   edit.Combo,
					Disable: edit.Disable,
					Remove:  edit.Remove,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Saved by the daemon, hotkeys reloaded:")
				printReport(out, resp.Hotkeys)
				return nil
			}

			paths, err := dataPaths(v)
			if err != nil {
				return err
			}
			err = withDataLock(paths, func() error {
				table, err := keybind.Load(paths.Bindings())
				if err != nil {
					return err
				}
				if err := table.Apply(edit); err != nil {
					return err
				}
				return keybind.Save(paths.Bindings(), table)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s.\n", paths.Bindings())
			return nil
		})
	f := cmd.Flags()
	f.Bool("disable", false, "keep the combination but do not register it")
	f.Bool("remove", false, "delete a user-defined action")
	return cmd
}

// editOf turns the set command's arguments into an edit.
func editOf(args []string, disable, remove bool) keybind.Edit {
	e := keybind.Edit{Action: keybind.Action(args[0]), Disable: disable, Remove: remove}
	if len(args) == 2 {
		e.Combo = args[1]
	}
	return e
}

func newBindingsCheckCmd() *cobra.Command {
	return bindingsCmd("check", "Validate the bindings file without changing it", cobra.NoArgs,
		func(cmd *cobra.Command, v *viper.Viper, _ []string) error {
			table, source, err := currentBindings(v)
			if err != nil {
				return err
			}
			if err := keybind.Validate(table); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bindings, no problems.\n", source, len(table))
			return nil
		})
}
