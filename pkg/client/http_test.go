package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kvring/pkg/client"
	"kvring/pkg/kvnode"
)

// поднимает kvnode на httptest и возвращает опции клиента для него
func startNode(t *testing.T, password string) (client.Options, *kvnode.Store) {
	t.Helper()
	store := kvnode.NewStore(4)
	ts := httptest.NewServer(kvnode.NewServer(store, "", "", password).Handler())
	t.Cleanup(ts.Close)

	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return client.Options{Host: host, Port: port, Password: password, Persistent: "x"}, store
}

func TestHTTPClient_Execute(t *testing.T) {
	opts, _ := startNode(t, "")
	c := client.NewHTTPClient(opts)
	ctx := context.Background()

	v, err := c.Execute(ctx, "SET", "k", "v")
	require.NoError(t, err)
	assert.Equal(t, "OK", v)

	v, err = c.Execute(ctx, "GET", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	v, err = c.Execute(ctx, "GET", "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = c.Execute(ctx, "INCR", "n")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), v)

	v, err = c.Execute(ctx, "MGET", "k", "missing")
	require.NoError(t, err)
	assert.Equal(t, []any{"v", nil}, v)
}

func TestHTTPClient_SelectsDatabase(t *testing.T) {
	opts, store := startNode(t, "")
	opts.DB = 2
	c := client.NewHTTPClient(opts)

	_, err := c.Execute(context.Background(), "SET", "k", "v")
	require.NoError(t, err)

	db, err := store.DB(2)
	require.NoError(t, err)
	got, ok := db.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	db0, err := store.DB(0)
	require.NoError(t, err)
	assert.Equal(t, 0, db0.Len())
}

func TestHTTPClient_ServerError(t *testing.T) {
	opts, _ := startNode(t, "secret")

	noAuth := opts
	noAuth.Password = ""
	_, err := client.NewHTTPClient(noAuth).Execute(context.Background(), "PING")
	var serr *client.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "NOAUTH")
	assert.Equal(t, "PING", serr.Command)

	c := client.NewHTTPClient(opts)
	v, err := c.Execute(context.Background(), "PING")
	require.NoError(t, err)
	assert.Equal(t, "PONG", v)

	_, err = c.Execute(context.Background(), "NOPE")
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Message, "unknown command")
}

func TestHTTPClient_TransportError(t *testing.T) {
	// закрытый порт
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	c := client.NewHTTPClient(client.Options{Host: "127.0.0.1", Port: port, Timeout: 500 * time.Millisecond})
	_, err = c.Execute(context.Background(), "GET", "k")

	var terr *client.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "127.0.0.1:"+strconv.Itoa(port), terr.Addr)
	assert.Equal(t, "GET", terr.Command)
	assert.NotNil(t, errors.Unwrap(terr))
}

func TestHTTPClient_NonJSONFailureIsTransport(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)

	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)

	_, err = client.NewHTTPClient(client.Options{Host: host, Port: port}).Execute(context.Background(), "PING")
	var terr *client.TransportError
	require.ErrorAs(t, err, &terr)
}

func TestHTTPClient_Standalone(t *testing.T) {
	opts, _ := startNode(t, "")
	c := client.NewHTTPClient(opts)
	assert.False(t, c.Standalone())

	c.ForceStandalone()
	c.ForceStandalone()
	assert.True(t, c.Standalone())

	v, err := c.Execute(context.Background(), "PING")
	require.NoError(t, err)
	assert.Equal(t, "PONG", v)
	require.NoError(t, c.Close())
}

func TestNewHTTP_Factory(t *testing.T) {
	_, err := client.NewHTTP(client.Options{})
	require.Error(t, err)

	c, err := client.NewHTTP(client.Options{Host: "10.0.0.1", Port: 6379})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:6379", c.Addr())
}
