package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	HeaderDB        = "X-Kv-Db"
	commandPath     = "/api/cmd"
	contentTypeJSON = "application/json"
)

// CommandRequest is the body of POST /api/cmd.
type CommandRequest struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

type commandResponse struct {
	Status string `json:"status,omitempty"`
	Value  any    `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// общий транспорт для всех клиентов процесса
var sharedTransport = newTransport()

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
}

// HTTPClient реализует Client поверх HTTP API kvnode.
type HTTPClient struct {
	opts    Options
	baseURL string

	mu         sync.Mutex
	httpClient *http.Client
	dedicated  *http.Transport // только в standalone режиме
}

// NewHTTPClient creates a client for the kvnode at opts.Host:opts.Port.
func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &HTTPClient{
		opts:    opts,
		baseURL: "http://" + opts.Addr(),
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: sharedTransport,
		},
	}
}

// NewHTTP is a Factory.
func NewHTTP(opts Options) (Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("client: empty host")
	}
	return NewHTTPClient(opts), nil
}

func (c *HTTPClient) Addr() string { return c.opts.Addr() }

func (c *HTTPClient) ForceStandalone() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dedicated != nil {
		return
	}
	c.dedicated = newTransport()
	c.httpClient = &http.Client{
		Timeout:   c.opts.Timeout,
		Transport: c.dedicated,
	}
}

// Standalone reports whether ForceStandalone was called.
func (c *HTTPClient) Standalone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dedicated != nil
}

func (c *HTTPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dedicated != nil {
		c.dedicated.CloseIdleConnections()
	}
	return nil
}

func (c *HTTPClient) Execute(ctx context.Context, name string, args ...string) (any, error) {
	body, err := json.Marshal(CommandRequest{Name: name, Args: args})
	if err != nil {
		return nil, c.transportErr(name, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandPath, bytes.NewReader(body))
	if err != nil {
		return nil, c.transportErr(name, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set(HeaderDB, strconv.Itoa(c.opts.DB))
	if c.opts.Password != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Password)
	}
	// без persistent соединение закрывается после каждой команды
	req.Close = c.opts.Persistent == ""

	c.mu.Lock()
	hc := c.httpClient
	c.mu.Unlock()

	resp, err := hc.Do(req)
	if err != nil {
		return nil, c.transportErr(name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportErr(name, fmt.Errorf("read body: %w", err))
	}

	var cr commandResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&cr); err != nil {
		return nil, c.transportErr(name, fmt.Errorf("decode: %w status=%d body=%s", err, resp.StatusCode, string(raw)))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return cr.Value, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && cr.Error != "":
		return nil, &ServerError{Addr: c.Addr(), Command: name, Message: cr.Error}
	default:
		return nil, c.transportErr(name, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(raw)))
	}
}

func (c *HTTPClient) transportErr(name string, err error) error {
	return &TransportError{Addr: c.Addr(), Command: name, Err: err}
}
