// Command kvring runs the routing gateway in front of a set of kvnode servers.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "kvring/internal/http"
	"kvring/pkg/cluster"
	"kvring/pkg/membership"
	"kvring/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "kvring.yaml", "path to YAML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "kvring: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := initConfig(configPath)
	if err != nil {
		return err
	}
	if err := initLogger(&cfg); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := append(cfg.RouterOptions(),
		cluster.WithLogger(slog.Default()),
		cluster.WithMetrics(metrics.NewPrometheus(reg)),
	)

	holder := cluster.NewHolder(nil)
	defer holder.Swap(nil)

	if len(cfg.ZooKeeper.Servers) > 0 {
		// состав кластера берём из ZooKeeper и следим за изменениями
		m, err := membership.NewZKMembership(cfg.ZooKeeper.Servers, cfg.ZooKeeper.Root, cfg.ZooKeeper.SessionTimeout,
			membership.WithNodePassword(cfg.ZooKeeper.NodePassword))
		if err != nil {
			return err
		}
		defer m.Close()
		m.RunWatch(ctx, holder, opts...)
	} else {
		r, err := cluster.New(cfg.Cluster.Servers, opts...)
		if err != nil {
			return err
		}
		holder.Swap(r)
	}

	server := httpapi.NewServer(holder, reg, cfg.HTTP.Port, cfg.HTTP.ReadHeaderTimeout, cfg.HTTP.ShutdownTimeout)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		slog.Error("Error stopping server", "error", err)
	}
	slog.Info("kvring stopped")
	return nil
}
