package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/client"
	"github.com/omochice/dock-chat/internal/config"
	"github.com/omochice/dock-chat/internal/directory/rest"
	"github.com/omochice/dock-chat/internal/metrics"
	"github.com/omochice/dock-chat/internal/transport"
	"github.com/omochice/dock-chat/internal/transport/gobwas"
	"github.com/omochice/dock-chat/internal/transport/ws"
	"github.com/omochice/dock-chat/pkg/protocol"
)

var version = "dev"

const startTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:           "dock",
	Short:         "Terminal client for direct and group messages",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	f := rootCmd.PersistentFlags()
	f.StringP("config", "c", "", "YAML config file")
	f.String("env", ".env", "dotenv file loaded before DOCK_* variables are read")
	f.String("api-url", "", "REST API base URL")
	f.String("endpoint", "", "websocket endpoint (default derived from --api-url)")
	f.String("session", "", "session cookie value")
	f.String("transport", "", "websocket implementation: ws or gobwas")
	f.Int("max-surfaces", -1, "maximum open conversations, 0 for no limit")
	f.Bool("dedupe", false, "drop repeated inbound messages")
	f.String("log-level", "", "log level")
	f.String("metrics-addr", "", "serve prometheus metrics on this address")

	rootCmd.AddCommand(tuiCmd, lineCmd)
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	envFile, _ := f.GetString("env")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	c := &cfg.Client
	if f.Changed("api-url") {
		c.APIURL, _ = f.GetString("api-url")
		if !f.Changed("endpoint") {
			c.Endpoint = config.EndpointFromAPI(c.APIURL)
		}
	}
	if f.Changed("endpoint") {
		c.Endpoint, _ = f.GetString("endpoint")
	}
	if f.Changed("session") {
		c.Session, _ = f.GetString("session")
	}
	if f.Changed("transport") {
		c.Transport, _ = f.GetString("transport")
	}
	if f.Changed("max-surfaces") {
		c.MaxSurfaces, _ = f.GetInt("max-surfaces")
	}
	if f.Changed("dedupe") {
		c.Dedupe, _ = f.GetBool("dedupe")
	}
	if f.Changed("log-level") {
		c.Log.Level, _ = f.GetString("log-level")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func dialerFor(c config.Client) (transport.Dialer, error) {
	header := transport.SessionHeader(c.Session)
	switch c.Transport {
	case config.TransportWS:
		return ws.Dialer{Header: header, ReadLimit: protocol.MaxFrameSize}, nil
	case config.TransportGobwas:
		return gobwas.Dialer{Header: header}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}
}

// newSession builds a client from the config. When metrics-addr is set the
// collectors are served there until the process exits.
func newSession(cmd *cobra.Command, c config.Client, log *zap.Logger) (*client.Client, error) {
	dialer, err := dialerFor(c)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		go serveMetrics(addr, reg, log)
	}

	return client.New(c.Endpoint, dialer, rest.New(c.APIURL, c.Session),
		client.WithLogger(log),
		client.WithMetrics(m),
		client.WithMaxSurfaces(c.MaxSurfaces),
		client.WithDedupe(c.Dedupe),
	), nil
}

func serveMetrics(addr string, reg *prometheus.Registry, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}
