package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"kvring/pkg/cluster"
	"kvring/pkg/ring"
)

// Config - корневая структура конфигурации (gateway и нода читают один файл)
type Config struct {
	Logger    LoggerConfig    `yaml:"logger"`
	HTTP      HTTPConfig      `yaml:"http"`
	Cluster   ClusterConfig   `yaml:"cluster"`
	ZooKeeper ZooKeeperConfig `yaml:"zookeeper"`
	Node      NodeConfig      `yaml:"node"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type HTTPConfig struct {
	Port              int           `yaml:"port"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type ClusterConfig struct {
	Replicas     int                        `yaml:"replicas"`
	ReadOnMaster bool                       `yaml:"read_on_master"`
	Standalone   bool                       `yaml:"standalone"`
	Servers      []cluster.ServerDescriptor `yaml:"servers"`
}

type ZooKeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	Root           string        `yaml:"root"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	// пароль нод из ZooKeeper; в znode он не пишется
	NodePassword string `yaml:"node_password"`
}

// NodeConfig настраивает процесс kvnode.
type NodeConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	Databases int    `yaml:"databases"`
}

// Default returns a baseline development config.
func Default() Config {
	return Config{
		Logger: LoggerConfig{
			Level: "INFO",
			JSON:  false,
		},
		HTTP: HTTPConfig{
			Port:              8080,
			ReadHeaderTimeout: time.Second,
			ShutdownTimeout:   5 * time.Second,
		},
		Cluster: ClusterConfig{
			Replicas:     ring.DefaultReplicas,
			ReadOnMaster: true,
			Servers: []cluster.ServerDescriptor{
				{Host: "127.0.0.1", Port: 7001},
			},
		},
		ZooKeeper: ZooKeeperConfig{
			Root:           "/kvring",
			SessionTimeout: 5 * time.Second,
		},
		Node: NodeConfig{
			Host:      "0.0.0.0",
			Port:      7001,
			Databases: 16,
		},
	}
}

// Load reads a YAML file over Default(). A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("config file not found, using default config", "path", path)
			return cfg, nil
		}
		return cfg, err
	}

	// servers из файла заменяют дефолтный список, а не дополняют его
	cfg.Cluster.Servers = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the whole configuration. Errors wrap cluster.ErrConfiguration.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Logger.Level); err != nil {
		return err
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port %d out of range", cluster.ErrConfiguration, c.HTTP.Port)
	}
	if c.HTTP.ReadHeaderTimeout < 0 || c.HTTP.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: negative http timeout", cluster.ErrConfiguration)
	}
	if c.Cluster.Replicas < 1 {
		return fmt.Errorf("%w: cluster.replicas must be >= 1, got %d", cluster.ErrConfiguration, c.Cluster.Replicas)
	}
	if len(c.Cluster.Servers) > 0 || len(c.ZooKeeper.Servers) == 0 {
		if err := cluster.ValidateDescriptors(c.Cluster.Servers); err != nil {
			return err
		}
	}
	if err := c.validateZooKeeper(); err != nil {
		return err
	}
	if c.Node.Port < 0 || c.Node.Port > 65535 {
		return fmt.Errorf("%w: node.port %d out of range", cluster.ErrConfiguration, c.Node.Port)
	}
	if c.Node.Databases < 0 {
		return fmt.Errorf("%w: negative node.databases", cluster.ErrConfiguration)
	}
	return nil
}

// ValidateNode checks what a kvnode process reads: logger, node and zookeeper.
// The http and cluster sections belong to the gateway and are not checked.
func (c Config) ValidateNode() error {
	if _, err := ParseLevel(c.Logger.Level); err != nil {
		return err
	}
	if c.Node.Port < 1 || c.Node.Port > 65535 {
		return fmt.Errorf("%w: node.port %d out of range", cluster.ErrConfiguration, c.Node.Port)
	}
	if c.Node.Databases < 0 {
		return fmt.Errorf("%w: negative node.databases", cluster.ErrConfiguration)
	}
	return c.validateZooKeeper()
}

func (c Config) validateZooKeeper() error {
	if c.ZooKeeper.SessionTimeout < 0 {
		return fmt.Errorf("%w: negative zookeeper.session_timeout", cluster.ErrConfiguration)
	}
	if len(c.ZooKeeper.Servers) > 0 && !strings.HasPrefix(c.ZooKeeper.Root, "/") {
		return fmt.Errorf("%w: zookeeper.root must be an absolute path, got %q", cluster.ErrConfiguration, c.ZooKeeper.Root)
	}
	return nil
}

// RouterOptions переводит секцию cluster в опции роутера.
func (c Config) RouterOptions() []cluster.Option {
	return []cluster.Option{
		cluster.WithReplicas(c.Cluster.Replicas),
		cluster.WithReadOnMaster(c.Cluster.ReadOnMaster),
		cluster.WithStandalone(c.Cluster.Standalone),
	}
}

// ParseLevel accepts DEBUG, INFO, WARN and ERROR in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: unknown log level %q", cluster.ErrConfiguration, s)
}
