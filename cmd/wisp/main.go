// Command wisp is the interactive client for a running wispd: a REPL
// that reads forms, sends each as a Request over pkg/client, and prints
// the Response. Per SPEC_FULL.md §1, a GUI launcher is named only as a
// stub flag; the GUI itself is out of scope and not built here.
package main

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var socketFlag string
	var gui bool

	cmd := &cobra.Command{
		Use:   "wisp",
		Short: "interactive client for the wisp runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gui {
				fmt.Println("not implemented in this build")
				return nil
			}
			socket := socketFlag
			if socket == "" {
				socket = resolveSocketPath()
			}
			return runREPL(socket)
		},
	}

	cmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "unix socket path (default $XDG_RUNTIME_DIR/wisp.sock or ~/.wisp/wisp.sock)")
	cmd.Flags().BoolVar(&gui, "gui", false, "launch the graphical client (not implemented in this build)")

	cmd.AddCommand(newEvalCmd(&socketFlag))

	return cmd
}

// resolveSocketPath mirrors cmd/wispd's default so a bare `wisp` with no
// daemon configuration connects to the same socket the daemon bound.
func resolveSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/wisp.sock"
	}
	home, err := homedir.Dir()
	if err != nil {
		home = "."
	}
	return home + "/.wisp/wisp.sock"
}
