// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/kchat/internal/config"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds the global flags shared by every command.
type app struct {
	configPath string
	mock       int
	mute       bool

	cfg *config.Config
}

// NewRootCmd builds the kchat command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "kchat",
		Short: "Terminal chat client",
		Long: `kchat is a terminal chat client. Conversations are kept in a sidebar
and long transcripts scroll smoothly: only the messages on screen are
rendered.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ~/.kchat/config.toml)")
	root.Flags().IntVar(&a.mock, "mock", 0, "open a chat seeded with `N` mock messages")
	root.Flags().BoolVar(&a.mute, "mute", false, "start with the assistant muted")

	root.AddCommand(a.sessionsCmd(), a.configCmd())
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	err := NewRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return ExitCode(err)
}

// =============================================================================
// CONFIG LOADING
// =============================================================================

// config loads the configuration once, from --config when given.
func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	a.cfg = cfg
	return cfg, nil
}

// configFile returns the config file commands read and write.
func (a *app) configFile() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPathTOML()
}
