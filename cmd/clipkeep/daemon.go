package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipkeep/internal/clip/sysclip"
	"go.klb.dev/clipkeep/internal/config"
	"go.klb.dev/clipkeep/internal/controller"
	"go.klb.dev/clipkeep/internal/fsutil"
	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/hotkeys"
	"go.klb.dev/clipkeep/internal/hotkeys/osgrab"
	"go.klb.dev/clipkeep/internal/ipc"
	"go.klb.dev/clipkeep/internal/keybind"
	"go.klb.dev/clipkeep/internal/keystroke"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "clipkeep",
		Short: "Clipboard history with global hotkeys",
		Long: `clipkeep records everything copied to the clipboard and brings it back
with global hotkeys. Run "clipkeep" with no arguments to start the daemon; the
sub-commands talk to the running daemon over a local socket.

Default hotkeys:
  Ctrl+Alt+V    toggle_window
  Ctrl+Shift+V  paste_last
  Ctrl+Alt+C    clear_history

Edit them with "clipkeep bindings set".

Config file search order (first found wins):
  /etc/clipkeep/clipkeep.toml
  $HOME/.config/clipkeep/clipkeep.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPKEEP_* env vars → flags`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE:      func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:         func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	f := cmd.Flags()
	f.Int("max-items", config.DefaultMaxItems, "number of history entries to keep")
	f.Duration("watch-interval", config.DefaultWatchIntervalMS*time.Millisecond, "clipboard poll interval")
	f.Bool("paste-keystroke", true, "send the paste shortcut after paste_last")
	addDataDirFlag(cmd)
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	paths, err := dataPaths(v)
	if err != nil {
		return err
	}
	if err := fsutil.EnsureDir(paths.Dir); err != nil {
		slog.Error("data directory is not writable", "dir", paths.Dir, "err", err)
		return err
	}
	unlock, err := fsutil.Lock(paths.Dir, config.LockFile)
	if errors.Is(err, fsutil.ErrLocked) {
		slog.Error("another clipkeep daemon owns the data directory", "dir", paths.Dir)
		return err
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			slog.Warn("releasing data directory lock", "err", err)
		}
	}()

	backend, err := sysclip.New()
	if err != nil {
		slog.Error("no clipboard available; clipkeep needs a graphical session", "err", err)
		return err
	}
	defer backend.Close()

	store, err := history.Open(paths.History())
	if err != nil {
		return err
	}
	if err := store.SetSettings(overrideSettings(v, store.Settings())); err != nil {
		slog.Warn("could not save settings", "err", err)
	}
	settings := store.Settings()

	slog.Info("clipkeep starting",
		"version", Version,
		"data_dir", paths.Dir,
		"backend", backend.Name(),
		"max_items", settings.MaxItems,
		"watch_interval", settings.WatchInterval(),
		"paste_keystroke", settings.Keystroke(),
	)

	table, resolved := loadBindings(paths.Bindings())
	dispatcher := hotkeys.New(osgrab.New())
	if _, err := dispatcher.Register(resolved); err != nil {
		slog.Warn("no global hotkeys are active; the control socket still works", "err", err)
	}

	ctrl := controller.New(controller.Config{
		Store:        store,
		Backend:      backend,
		Dispatcher:   dispatcher,
		Paster:       keystroke.NewRobot(),
		BindingsPath: paths.Bindings(),
		Bindings:     table,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := ipc.Listen()
	if err != nil {
		slog.Warn("control socket unavailable", "err", err)
	} else {
		slog.Info("control socket listening", "path", ipc.SocketPath())
		srv := newServer(ctrl)
		go srv.serve(ctx, ln)
		defer ln.Close()
	}

	if err := ctrl.Run(ctx); err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	slog.Info("clipkeep stopped")
	return nil
}

// overrideSettings applies settings given explicitly via flag, env var or
// config file on top of those stored in the history file.
func overrideSettings(v *viper.Viper, s config.Settings) config.Settings {
	if v.IsSet("max-items") {
		s.MaxItems = v.GetInt("max-items")
	}
	if v.IsSet("watch-interval") {
		s.WatchIntervalMS = int(v.GetDuration("watch-interval").Milliseconds())
	}
	if v.IsSet("paste-keystroke") {
		s = s.WithKeystroke(v.GetBool("paste-keystroke"))
	}
	return s.Normalize()
}

// loadBindings reads the key bindings file. A file that cannot be parsed or
// validated is left alone and the defaults are used instead.
func loadBindings(path string) (keybind.Table, []keybind.Resolved) {
	table, err := keybind.Load(path)
	if err == nil {
		var resolved []keybind.Resolved
		if resolved, err = table.Resolve(); err == nil {
			return table, resolved
		}
	}
	slog.Warn("key bindings file rejected, using defaults", "path", path, "err", err)
	table = keybind.Defaults()
	resolved, _ := table.Resolve()
	return table, resolved
}
