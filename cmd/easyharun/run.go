package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/daemon"
	"github.com/easyharun/easyharun/pkg/log"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Run loads the config, connects to the container runtime and runs the
container, health and proxy loops until interrupted. The config file is
watched and reloaded on change; an invalid edit keeps the running config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		runtimeName, _ := cmd.Flags().GetString("runtime")
		apiAddr, _ := cmd.Flags().GetString("api-addr")
		httpAddr, _ := cmd.Flags().GetString("http-addr")
		watch, _ := cmd.Flags().GetBool("watch")
		traceSlow, _ := cmd.Flags().GetDuration("trace-slow")
		otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		logger := log.WithComponent("cli")
		for _, w := range cfg.Warnings() {
			logger.Warn().Msg(w)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{Slow: traceSlow, OTLPEndpoint: otlpEndpoint})
		if err != nil {
			return err
		}
		defer func() { _ = shutdownTracing(context.Background()) }()

		rt, err := newRuntime(ctx, runtimeName)
		if err != nil {
			return err
		}
		defer rt.Close()

		opts := daemon.Options{
			APIAddr:  apiAddr,
			HTTPAddr: httpAddr,
			Version:  Version,
		}
		if watch {
			opts.ConfigPath = path
		}

		logger.Info().
			Str("config", path).
			Str("runtime", runtimeName).
			Str("api_addr", apiAddr).
			Str("http_addr", httpAddr).
			Msg("Starting easyharun")

		if err := daemon.New(cfg, rt, opts).Run(ctx); err != nil {
			return err
		}
		logger.Info().Msg("Shutdown complete")
		return nil
	},
}

func newRuntime(ctx context.Context, name string) (runtime.Runtime, error) {
	switch name {
	case "docker":
		rt, err := runtime.NewDockerRuntime()
		if err != nil {
			return nil, err
		}
		if err := rt.Ping(ctx); err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("docker is not reachable: %w", err)
		}
		return rt, nil
	case "memory":
		return runtime.NewMemoryRuntime(0), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q (want docker or memory)", name)
	}
}

func init() {
	runCmd.Flags().StringP("config", "c", "easyharun.toml", "Path to the config file (.toml, .yaml or .yml)")
	runCmd.Flags().String("runtime", "docker", "Container runtime (docker or memory)")
	runCmd.Flags().String("http-addr", "127.0.0.1:7071", "Address of the HTTP health and metrics server, empty to disable")
	runCmd.Flags().Bool("watch", true, "Reload the config file when it changes")
	runCmd.Flags().String("otlp-endpoint", "", "Export traces over OTLP/HTTP to host:port")
	runCmd.Flags().Duration("trace-slow", time.Second, "Log task and API spans slower than this, 0 logs failed spans only")
}
