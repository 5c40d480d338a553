// Package membership discovers cluster servers through ZooKeeper and keeps
// a cluster.Holder pointed at a router built from the live server set.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/goccy/go-yaml"

	"kvring/pkg/cluster"
)

const (
	DefaultRoot           = "/kvring"
	DefaultSessionTimeout = 5 * time.Second
	nodesDir              = "/nodes"
	retryDelay            = 2 * time.Second
)

// conn is the part of *zk.Conn used here.
type conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	State() zk.State
	Close()
}

type ZKMembership struct {
	conn         conn
	rootPath     string
	nodePassword string
}

// Option настраивает ZKMembership.
type Option func(*ZKMembership)

// WithNodePassword sets the password used for every discovered server.
// Passwords are never read from or written to znodes.
func WithNodePassword(password string) Option {
	return func(m *ZKMembership) { m.nodePassword = password }
}

// NewZKMembership connects to servers, e.g. ["zk1:2181", "zk2:2181"].
func NewZKMembership(servers []string, rootPath string, sessionTimeout time.Duration, opts ...Option) (*ZKMembership, error) {
	if sessionTimeout <= 0 {
		sessionTimeout = DefaultSessionTimeout
	}
	c, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return newWithConn(c, rootPath, opts...), nil
}

func newWithConn(c conn, rootPath string, opts ...Option) *ZKMembership {
	if rootPath == "" {
		rootPath = DefaultRoot
	}
	m := &ZKMembership{
		conn:     c,
		rootPath: strings.TrimRight(rootPath, "/"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ZKMembership) Close() error {
	m.conn.Close()
	return nil
}

func (m *ZKMembership) nodesPath() string {
	return m.rootPath + nodesDir
}

func (m *ZKMembership) ensurePath(path string) error {
	parts := strings.Split(path, "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		exists, _, err := m.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = m.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && !errors.Is(err, zk.ErrNodeExists) {
				return err
			}
		}
	}
	return nil
}

// Register publishes d as an ephemeral znode named after its identity.
// The znode disappears with the session, which removes the server from
// every watching router. d.Password is not published.
func (m *ZKMembership) Register(d cluster.ServerDescriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	// ждём, пока клиент реально подключится к ZK
	if err := m.waitConnected(10 * time.Second); err != nil {
		return err
	}
	if err := m.ensurePath(m.nodesPath()); err != nil {
		return fmt.Errorf("ensure nodes path: %w", err)
	}

	data, err := EncodeDescriptor(d)
	if err != nil {
		return err
	}
	nodePath := m.nodesPath() + "/" + d.Identity()
	_, err = m.conn.Create(nodePath, data, zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("create ephemeral node: %w", err)
	}

	slog.Info("registered server in zookeeper", "path", nodePath, "alias", d.Alias, "master", d.Master)
	return nil
}

// Descriptors reads the registered servers, ordered by identity so every
// router watching the same tree assigns the same dense indices.
func (m *ZKMembership) Descriptors() ([]cluster.ServerDescriptor, error) {
	children, _, err := m.conn.Children(m.nodesPath())
	if err != nil {
		return nil, fmt.Errorf("zk children: %w", err)
	}
	return m.read(children)
}

func (m *ZKMembership) read(children []string) ([]cluster.ServerDescriptor, error) {
	names := append([]string(nil), children...)
	sort.Strings(names)

	out := make([]cluster.ServerDescriptor, 0, len(names))
	for _, name := range names {
		data, _, err := m.conn.Get(m.nodesPath() + "/" + name)
		if errors.Is(err, zk.ErrNoNode) {
			// сервер ушёл между Children и Get
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("zk get %s: %w", name, err)
		}
		d, err := DecodeDescriptor(name, data)
		if err != nil {
			return nil, err
		}
		d.Password = m.nodePassword
		out = append(out, d)
	}
	return out, nil
}

// BuildRouter builds a router from the currently registered servers.
func (m *ZKMembership) BuildRouter(opts ...cluster.Option) (*cluster.Router, error) {
	descs, err := m.Descriptors()
	if err != nil {
		return nil, err
	}
	return cluster.New(descs, opts...)
}

// RunWatch следит за изменениями /nodes и подменяет роутер в holder.
// A server set that cannot form a router keeps the previous router in place.
func (m *ZKMembership) RunWatch(ctx context.Context, holder *cluster.Holder, opts ...cluster.Option) {
	if err := m.ensurePath(m.nodesPath()); err != nil {
		slog.Warn("ensure nodes path", "error", err)
	}
	go func() {
		for {
			children, _, ch, err := m.conn.ChildrenW(m.nodesPath())
			if err != nil {
				slog.Warn("zk ChildrenW error", "error", err)
				select {
				case <-time.After(retryDelay):
					continue
				case <-ctx.Done():
					return
				}
			}

			if err := m.rebuild(children, holder, opts); err != nil {
				slog.Warn("router not rebuilt", "error", err, "servers", len(children))
			}

			select {
			case ev := <-ch:
				slog.Debug("zk event", "type", ev.Type.String(), "path", ev.Path)
			case <-ctx.Done():
				slog.Info("zk watch stopped")
				return
			}
		}
	}()
}

func (m *ZKMembership) rebuild(children []string, holder *cluster.Holder, opts []cluster.Option) error {
	descs, err := m.read(children)
	if err != nil {
		return err
	}
	r, err := cluster.New(descs, opts...)
	if err != nil {
		return err
	}
	holder.Swap(r)
	return nil
}

func (m *ZKMembership) waitConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st := m.conn.State()
		if st == zk.StateConnected || st == zk.StateHasSession {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("zk: not connected after %s, state=%v", timeout, st)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// EncodeDescriptor renders d as the YAML payload of its znode, without the password.
func EncodeDescriptor(d cluster.ServerDescriptor) ([]byte, error) {
	d.Password = ""
	data, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode descriptor %s: %w", d.Identity(), err)
	}
	return data, nil
}

// DecodeDescriptor parses a znode payload. An empty payload is allowed: the
// host and port then come from the znode name. A password in the payload is dropped.
func DecodeDescriptor(name string, data []byte) (cluster.ServerDescriptor, error) {
	var d cluster.ServerDescriptor
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, &d); err != nil {
			return d, fmt.Errorf("decode descriptor %s: %w", name, err)
		}
	}
	d.Password = ""
	if d.Host == "" {
		host, port, err := net.SplitHostPort(name)
		if err != nil {
			return d, fmt.Errorf("%w: znode %q: %w", cluster.ErrConfiguration, name, err)
		}
		d.Host = host
		if d.Port, err = strconv.Atoi(port); err != nil {
			return d, fmt.Errorf("%w: znode %q: invalid port", cluster.ErrConfiguration, name)
		}
	}
	return d, d.Validate()
}
