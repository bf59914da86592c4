package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/logging"
	"github.com/omochice/dock-chat/internal/ui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the full-screen messaging dock",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().String("log-file", "", "write logs to this file (logs are discarded otherwise)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The screen belongs to the UI, so logs only go to a file.
	log := zap.NewNop()
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		log, err = logging.New(cfg.Client.Log.Level, cfg.Client.Log.Format, path)
		if err != nil {
			return err
		}
	}
	defer func() { _ = log.Sync() }()

	c, err := newSession(cmd, cfg.Client, log)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("failed to sign in: %w", err)
	}

	p := tea.NewProgram(ui.New(c, c.Directory(), c.Self()), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
