// clipkeep: clipboard history with global hotkeys.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.design/x/hotkey/mainthread"

	"go.klb.dev/clipkeep/internal/logging"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	code := 0
	// macOS only delivers hotkeys to the main thread's event loop.
	mainthread.Init(func() {
		if err := newRootCmd().Execute(); err != nil {
			code = 1
		}
	})
	os.Exit(code)
}

func newRootCmd() *cobra.Command {
	root := newDaemonCmd()
	root.AddCommand(
		newListCmd(),
		newGetCmd(),
		newRestoreCmd(),
		newPasteCmd(),
		newClearCmd(),
		newToggleCmd(),
		newReloadCmd(),
		newStatusCmd(),
		newBindingsCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clipkeep %s\n", Version)
		},
	}
}

// resolveLogging sets up the global slog logger after flags are parsed.
func resolveLogging(interactive bool, formatStr, levelStr string) {
	format := logging.ParseFormat(formatStr)
	level := logging.ParseLevel(levelStr)
	if levelStr == "" {
		if interactive {
			level = logging.ParseLevel("debug")
		} else {
			level = logging.ParseLevel("info")
		}
	}
	logging.Setup(format, level)
}
