// Package main is the entry point for mgmtctl, the read-only operator
// TUI: it polls a running mgmtd's HTTP API and renders the
// supervised service table plus the current energy tier.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/interfaces/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	var addr string

	root := &cobra.Command{
		Use:          "mgmtctl",
		Short:        "Operator TUI for the VoiceLearn management daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := tui.NewModel(addr)
			p := tea.NewProgram(m)
			_, err := p.Run()
			return err
		},
	}
	root.Flags().StringVar(&addr, "addr", "localhost:8766", "address of the mgmtd instance to monitor")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
