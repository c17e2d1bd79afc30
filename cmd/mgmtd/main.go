// Package main is the entry point for mgmtd, the VoiceLearn management
// daemon: supervises the voice-tutor fleet's child services, tracks the
// idle energy state machine, monitors host/process resources, and
// serves the HTTP/WS control-plane frontend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/bootstrap"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/interfaces/httpapi"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string

	root := &cobra.Command{
		Use:          "mgmtd",
		Short:        "VoiceLearn management daemon",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "/etc/voicelearn/mgmtd.yaml", "path to the YAML configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the daemon version and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("mgmtd %s\n", version)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func serve(configPath string) error {
	httpapi.SetVersion(version)

	app, err := bootstrap.InitializeApp(configPath)
	if err != nil {
		return fmt.Errorf("mgmtd: initializing: %w", err)
	}

	return app.Run(context.Background())
}
