package cluster

import (
	"fmt"
	"strconv"
	"time"

	"kvring/pkg/client"
)

// DefaultTimeout is the per-client timeout in seconds when none is given.
const DefaultTimeout = 2.5

// ServerDescriptor describes one server of the cluster.
type ServerDescriptor struct {
	Host       string  `yaml:"host"`
	Port       int     `yaml:"port"`
	DB         int     `yaml:"db,omitempty"`
	Password   string  `yaml:"password,omitempty"`
	Timeout    float64 `yaml:"timeout,omitempty"` // секунды
	Alias      string  `yaml:"alias,omitempty"`
	Persistent string  `yaml:"persistent,omitempty"`
	Master     bool    `yaml:"master,omitempty"`
}

// Identity is the "host:port" string the ring points are derived from.
func (d ServerDescriptor) Identity() string {
	return d.Host + ":" + strconv.Itoa(d.Port)
}

// Validate checks the fields that have no default.
func (d ServerDescriptor) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("%w: server without host", ErrConfiguration)
	}
	if d.Port < 1 || d.Port > 65535 {
		return fmt.Errorf("%w: server %s: invalid port %d", ErrConfiguration, d.Host, d.Port)
	}
	if d.DB < 0 {
		return fmt.Errorf("%w: server %s: negative db %d", ErrConfiguration, d.Identity(), d.DB)
	}
	if d.Timeout < 0 {
		return fmt.Errorf("%w: server %s: negative timeout %v", ErrConfiguration, d.Identity(), d.Timeout)
	}
	return nil
}

// ClientOptions converts the descriptor into client construction options,
// applying the default timeout.
func (d ServerDescriptor) ClientOptions() client.Options {
	timeout := d.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return client.Options{
		Host:       d.Host,
		Port:       d.Port,
		Timeout:    time.Duration(timeout * float64(time.Second)),
		Persistent: d.Persistent,
		DB:         d.DB,
		Password:   d.Password,
	}
}

// ValidateDescriptors checks every descriptor and the cross-server rules:
// aliases are unique and at most one server is the master.
func ValidateDescriptors(servers []ServerDescriptor) error {
	if len(servers) == 0 {
		return fmt.Errorf("%w: no servers", ErrConfiguration)
	}
	aliases := make(map[string]struct{}, len(servers))
	masters := 0
	for _, s := range servers {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.Alias != "" {
			if _, dup := aliases[s.Alias]; dup {
				return fmt.Errorf("%w: duplicate alias %q", ErrConfiguration, s.Alias)
			}
			aliases[s.Alias] = struct{}{}
		}
		if s.Master {
			masters++
		}
	}
	if masters > 1 {
		return fmt.Errorf("%w: %d servers marked as master", ErrConfiguration, masters)
	}
	return nil
}
