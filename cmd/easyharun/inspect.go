package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/easyharun/easyharun/pkg/api"
	"github.com/easyharun/easyharun/pkg/client"
	"github.com/easyharun/easyharun/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, w := range cfg.Warnings() {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		fmt.Fprintf(out, "✓ %s is valid (%d containers, %d health checks, %d proxies)\n",
			path, len(cfg.Containers), len(cfg.HealthChecks), len(cfg.Proxies))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show health, KV state and proxies of a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		state, err := c.GetState(ctx)
		if err != nil {
			return err
		}
		printState(cmd, state)
		return nil
	},
}

var actorsCmd = &cobra.Command{
	Use:   "actors",
	Short: "List the tasks of a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		actors, err := c.ListActors(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tNAME\tALIVE\tFAILURES")
		for _, a := range actors {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%d\n", a.ID, a.Kind, a.Name, a.Alive, a.Failures)
		}
		return w.Flush()
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Stream events from a running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		return c.WatchEvents(ctx, func(ev api.EventView) error {
			fmt.Fprintf(out, "%s  %-28s %s%s\n",
				ev.Timestamp.Format(time.RFC3339), ev.Type, ev.Message, formatMetadata(ev.Metadata))
			return nil
		})
	},
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	addr, _ := cmd.Flags().GetString("api-addr")
	return client.NewClient(addr)
}

func printState(cmd *cobra.Command, state *api.StateView) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status: %s (config version %d, %d KV writes)\n", state.Status, state.ConfigVersion, state.KVWrites)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nCOMPONENT\tSTATE")
	for _, name := range sortedKeys(state.Components) {
		fmt.Fprintf(w, "%s\t%s\n", name, state.Components[name])
	}

	fmt.Fprintln(w, "\nTARGET\tCONTAINER\tHEALTHY")
	for _, h := range state.Health {
		fmt.Fprintf(w, "%s\t%s\t%t\n", h.Target, short(h.ContainerID), h.Healthy)
	}

	fmt.Fprintln(w, "\nLISTEN\tALIVE\tBACKENDS")
	for _, p := range state.Proxies {
		addrs := make([]string, 0, len(p.Backends))
		for _, b := range p.Backends {
			addrs = append(addrs, b.Addr)
		}
		fmt.Fprintf(w, "%s\t%t\t%s\n", p.Listen, p.Alive, strings.Join(addrs, ","))
	}
	_ = w.Flush()

	if len(state.Marked) > 0 {
		fmt.Fprintf(out, "\nMarked for deletion: %s\n", strings.Join(state.Marked, ", "))
	}
}

func formatMetadata(md map[string]string) string {
	if len(md) == 0 {
		return ""
	}
	parts := make([]string, 0, len(md))
	for _, k := range sortedKeys(md) {
		parts = append(parts, k+"="+md[k])
	}
	return "  " + strings.Join(parts, " ")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func init() {
	validateCmd.Flags().StringP("config", "c", "easyharun.toml", "Path to the config file")
}
