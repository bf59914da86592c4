// Command relay runs a development server for the dock client.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/config"
	"github.com/omochice/dock-chat/internal/logging"
	"github.com/omochice/dock-chat/internal/relay"
)

var rootCmd = &cobra.Command{
	Use:          "relay",
	Short:        "Development relay for direct and group messages",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	f := rootCmd.Flags()
	f.StringP("config", "c", "", "YAML config file")
	f.String("env", ".env", "dotenv file loaded before DOCK_* variables are read")
	f.String("addr", "", "listen address (e.g., :8080)")
	f.String("roster", "", "YAML roster of users, sessions and groups")
	f.Float64("rate", 0, "frames per second allowed per connection")
	f.Int("burst", 0, "burst size of the per-connection limiter")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	envFile, _ := f.GetString("env")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return err
	}
	rc := cfg.Relay
	if f.Changed("addr") {
		rc.Addr, _ = f.GetString("addr")
	}
	if f.Changed("roster") {
		rc.Roster, _ = f.GetString("roster")
	}
	if f.Changed("rate") {
		rc.Rate, _ = f.GetFloat64("rate")
	}
	if f.Changed("burst") {
		rc.Burst, _ = f.GetInt("burst")
	}
	if rc.Roster == "" {
		return fmt.Errorf("a roster is required (--roster or DOCK_RELAY_ROSTER)")
	}

	log, err := logging.New(rc.Log.Level, rc.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	roster, err := relay.LoadRoster(rc.Roster)
	if err != nil {
		return err
	}

	srv := relay.NewServer(rc.Addr, roster,
		relay.WithLogger(log),
		relay.WithRateLimit(rc.Rate, rc.Burst),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info("starting relay", zap.String("addr", rc.Addr), zap.Int("users", len(roster.Users)))
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case sig := <-sigChan:
		log.Info("shutting down", zap.Stringer("signal", sig))
		srv.Stop()
	}

	log.Info("relay stopped")
	return nil
}
