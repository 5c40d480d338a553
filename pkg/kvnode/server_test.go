package kvnode

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doCommand(t *testing.T, h http.Handler, db, token, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/cmd", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentTypeJSON)
	if db != "" {
		req.Header.Set("X-Kv-Db", db)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), "body=%s", rr.Body.String())
	return rr, resp
}

func TestHealthHandler(t *testing.T) {
	srv := NewServer(NewStore(1), "", "", "")
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, StatusOK, resp.Status)
}

func TestCommandHandler_SetGet(t *testing.T) {
	h := NewServer(NewStore(2), "", "", "").Handler()

	rr, resp := doCommand(t, h, "1", "", `{"name":"SET","args":["k","v"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", resp.Value)

	_, resp = doCommand(t, h, "1", "", `{"name":"GET","args":["k"]}`)
	assert.Equal(t, "v", resp.Value)

	// другая база: ключа нет
	rr, resp = doCommand(t, h, "", "", `{"name":"GET","args":["k"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, resp.Value)
}

func TestCommandHandler_Errors(t *testing.T) {
	h := NewServer(NewStore(1), "", "", "").Handler()

	rr, resp := doCommand(t, h, "", "", `{"name":"NOPE"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "unknown command")

	rr, _ = doCommand(t, h, "", "", `{"args":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = doCommand(t, h, "", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = doCommand(t, h, "abc", "", `{"name":"PING"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, resp = doCommand(t, h, "7", "", `{"name":"PING"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, resp.Error, "out of range")
}

func TestCommandHandler_Auth(t *testing.T) {
	h := NewServer(NewStore(1), "", "", "secret").Handler()

	rr, resp := doCommand(t, h, "", "", `{"name":"PING"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, resp.Error, "NOAUTH")

	rr, _ = doCommand(t, h, "", "wrong", `{"name":"PING"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, resp = doCommand(t, h, "", "secret", `{"name":"PING"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "PONG", resp.Value)
}
