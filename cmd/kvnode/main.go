// Command kvnode runs one in-memory store server and optionally announces it
// in ZooKeeper so kvring gateways pick it up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"kvring/pkg/cluster"
	"kvring/pkg/kvnode"
	"kvring/pkg/membership"
)

func main() {
	configPath := flag.String("config", "kvnode.yaml", "path to YAML config")
	advertise := flag.String("advertise", "", "host announced in ZooKeeper (default: node.host)")
	alias := flag.String("alias", "", "alias announced in ZooKeeper")
	master := flag.Bool("master", false, "announce this node as the write master")
	flag.Parse()

	if err := run(*configPath, *advertise, *alias, *master); err != nil {
		fmt.Fprintf(os.Stderr, "kvnode: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, advertise, alias string, master bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := initConfig(configPath)
	if err != nil {
		return err
	}
	if err := initLogger(&cfg); err != nil {
		return err
	}

	store := kvnode.NewStore(cfg.Node.Databases)
	server := kvnode.NewServer(store, cfg.Node.Host, strconv.Itoa(cfg.Node.Port), cfg.Node.Password)
	if err := server.Start(); err != nil {
		return err
	}

	if len(cfg.ZooKeeper.Servers) > 0 {
		if advertise == "" {
			advertise = cfg.Node.Host
		}
		m, err := membership.NewZKMembership(cfg.ZooKeeper.Servers, cfg.ZooKeeper.Root, cfg.ZooKeeper.SessionTimeout)
		if err != nil {
			return err
		}
		defer m.Close()

		// пароль в znode не публикуется: гейтвей берёт его из zookeeper.node_password
		self := cluster.ServerDescriptor{
			Host:   advertise,
			Port:   cfg.Node.Port,
			Alias:  alias,
			Master: master,
		}
		if err := m.Register(self); err != nil {
			return fmt.Errorf("register in zookeeper: %w", err)
		}
	}

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		slog.Error("Error stopping server", "error", err)
	}
	slog.Info("kvnode stopped")
	return nil
}
