// Package cluster routes commands across a set of independent servers using
// consistent hashing, with optional master/replica read-write splitting.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"kvring/pkg/client"
	"kvring/pkg/metrics"
	"kvring/pkg/ring"
)

// Router is built once from a server list and is read-only afterwards, so
// lookups need no locking. Individual clients are not assumed to be safe for
// concurrent commands.
type Router struct {
	clients []client.Client // по плотному индексу, без write-only мастера
	owned   []client.Client // все созданные клиенты, для Close
	master  client.Client
	aliases map[string]client.Client
	ring    *ring.HashRing

	readOnly func(string) bool
	log      *slog.Logger
	metrics  metrics.RouterMetrics
}

// New creates a client per descriptor and builds the hash ring.
//
// A master descriptor becomes the write target. With read-on-master disabled
// it gets no dense index and no ring points; it stays reachable by alias and
// through Master.
func New(servers []ServerDescriptor, opts ...Option) (*Router, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := ValidateDescriptors(servers); err != nil {
		return nil, err
	}

	r := &Router{
		aliases:  make(map[string]client.Client),
		readOnly: o.readOnly,
		log:      o.logger,
		metrics:  o.metrics,
	}

	var points []ring.Point
	for _, s := range servers {
		c, err := o.factory(s.ClientOptions())
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("%w: server %s: %w", ErrConfiguration, s.Identity(), err)
		}
		r.owned = append(r.owned, c)

		if o.standalone {
			c.ForceStandalone()
		}
		if s.Alias != "" {
			r.aliases[s.Alias] = c
		}
		if s.Master {
			r.master = c
			if !o.readOnMaster {
				continue
			}
		}

		points = append(points, ring.Point{Identity: s.Identity(), Index: len(r.clients)})
		r.clients = append(r.clients, c)
	}

	r.ring = ring.New(points, o.replicas)
	r.metrics.Topology(len(r.clients), r.ring.Len())

	masterAddr := ""
	if r.master != nil {
		masterAddr = r.master.Addr()
	}
	r.log.Info("cluster router built",
		"servers", len(servers),
		"routable", len(r.clients),
		"ring_points", r.ring.Len(),
		"replicas", r.ring.Replicas(),
		"master", masterAddr,
		"read_on_master", o.readOnMaster,
	)
	return r, nil
}

// Client resolves ref as a dense index first, then as an alias.
// Only the canonical decimal form counts as an index: "01" and "+1" are aliases.
func (r *Router) Client(ref string) (client.Client, error) {
	if i, err := strconv.Atoi(ref); err == nil && strconv.Itoa(i) == ref && i >= 0 && i < len(r.clients) {
		return r.clients[i], nil
	}
	if c, ok := r.aliases[ref]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: client %q does not exist", ErrNotFound, ref)
}

// ClientAt returns the client with dense index i. It never consults aliases,
// even one spelled as that number; use Client for the alias fallback.
func (r *Router) ClientAt(i int) (client.Client, error) {
	if i < 0 || i >= len(r.clients) {
		return nil, fmt.Errorf("%w: client %d does not exist", ErrNotFound, i)
	}
	return r.clients[i], nil
}

// Clients returns the routable clients in dense index order.
func (r *Router) Clients() []client.Client {
	out := make([]client.Client, len(r.clients))
	copy(out, r.clients)
	return out
}

// Master returns the write target, if one is configured.
func (r *Router) Master() (client.Client, bool) {
	return r.master, r.master != nil
}

// Hash returns the dense index of the client that owns key.
func (r *Router) Hash(key string) (int, error) {
	idx, err := r.ring.Locate(key)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return idx, nil
}

// ByHash returns the client key hashes to without executing anything.
func (r *Router) ByHash(key string) (client.Client, error) {
	idx, err := r.Hash(key)
	if err != nil {
		return nil, err
	}
	return r.clients[idx], nil
}

// All runs the command on every routable client in index order. It stops at
// the first failure and returns the results collected before it.
func (r *Router) All(ctx context.Context, name string, args ...string) ([]any, error) {
	results := make([]any, 0, len(r.clients))
	for _, c := range r.clients {
		res, err := c.Execute(ctx, name, args...)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Resolve picks the client for a command and reports which rule chose it:
// writes go to the master when there is one; no-hash commands and commands
// without arguments go to index 0; everything else is hashed by its first
// argument.
func (r *Router) Resolve(name string, args ...string) (client.Client, string, error) {
	if r.master != nil && !r.readOnly(name) {
		return r.master, metrics.RouteMaster, nil
	}
	if IsNoHash(name) || len(args) == 0 {
		if len(r.clients) == 0 {
			return nil, metrics.RouteDefault, fmt.Errorf("%w: no routable servers for %s", ErrConfiguration, name)
		}
		return r.clients[0], metrics.RouteDefault, nil
	}
	c, err := r.ByHash(args[0])
	return c, metrics.RouteHash, err
}

// Execute dispatches one command. Errors from the client are returned as is.
func (r *Router) Execute(ctx context.Context, name string, args ...string) (any, error) {
	c, route, err := r.Resolve(name, args...)
	if err != nil {
		return nil, err
	}
	r.log.Debug("route command", "command", name, "route", route, "client", c.Addr())
	r.metrics.CommandRouted(route, commandLabel(name))

	t := r.metrics.CommandDuration(route)
	res, err := c.Execute(ctx, name, args...)
	t.ObserveDuration()
	if err != nil {
		r.metrics.CommandFailed(route)
	}
	return res, err
}

// Len returns the number of routable clients.
func (r *Router) Len() int { return len(r.clients) }

// RingSize returns the number of positions on the ring.
func (r *Router) RingSize() int { return r.ring.Len() }

// Close closes every client the router created, the master included.
func (r *Router) Close() error {
	var errs []error
	for _, c := range r.owned {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.Addr(), err))
		}
	}
	return errors.Join(errs...)
}
