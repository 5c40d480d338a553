package kvnode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exec(t *testing.T, s *Store, db int, name string, args ...string) any {
	t.Helper()
	v, err := s.Execute(db, name, args)
	require.NoError(t, err, "%s %v", name, args)
	return v
}

func TestExecute_StringCommands(t *testing.T) {
	s := NewStore(2)

	assert.Equal(t, "OK", exec(t, s, 0, "SET", "k", "v"))
	assert.Equal(t, "v", exec(t, s, 0, "get", "k"))
	assert.Nil(t, exec(t, s, 0, "GET", "missing"))
	assert.Equal(t, int64(1), exec(t, s, 0, "STRLEN", "k"))
	assert.Equal(t, int64(3), exec(t, s, 0, "APPEND", "k", "xy"))
	assert.Equal(t, "vxy", exec(t, s, 0, "GET", "k"))
	assert.Equal(t, []any{"vxy", nil}, exec(t, s, 0, "MGET", "k", "nope"))
	assert.Equal(t, int64(1), exec(t, s, 0, "EXISTS", "k", "nope"))
	assert.Equal(t, int64(1), exec(t, s, 0, "DEL", "k", "nope"))
	assert.Equal(t, int64(0), exec(t, s, 0, "EXISTS", "k"))
}

func TestExecute_Counters(t *testing.T) {
	s := NewStore(1)

	assert.Equal(t, int64(1), exec(t, s, 0, "INCR", "c"))
	assert.Equal(t, int64(11), exec(t, s, 0, "INCRBY", "c", "10"))
	assert.Equal(t, int64(10), exec(t, s, 0, "DECR", "c"))

	exec(t, s, 0, "SET", "s", "abc")
	_, err := s.Execute(0, "INCR", []string{"s"})
	require.ErrorIs(t, err, ErrNotInteger)
	_, err = s.Execute(0, "INCRBY", []string{"c", "x"})
	require.ErrorIs(t, err, ErrNotInteger)
}

func TestExecute_DatabasesAreIsolated(t *testing.T) {
	s := NewStore(2)

	exec(t, s, 0, "SET", "a", "0")
	exec(t, s, 1, "SET", "a", "1")
	exec(t, s, 1, "SET", "b", "1")

	assert.Equal(t, int64(1), exec(t, s, 0, "DBSIZE"))
	assert.Equal(t, int64(2), exec(t, s, 1, "DBSIZE"))

	exec(t, s, 1, "FLUSHDB")
	assert.Equal(t, int64(0), exec(t, s, 1, "DBSIZE"))
	assert.Equal(t, "0", exec(t, s, 0, "GET", "a"))

	exec(t, s, 1, "SET", "c", "1")
	exec(t, s, 0, "FLUSHALL")
	assert.Equal(t, int64(0), exec(t, s, 0, "DBSIZE"))
	assert.Equal(t, int64(0), exec(t, s, 1, "DBSIZE"))

	assert.Equal(t, "OK", exec(t, s, 0, "SELECT", "1"))
	_, err := s.Execute(0, "SELECT", []string{"2"})
	require.ErrorIs(t, err, ErrNoSuchDB)
	_, err = s.Execute(5, "GET", []string{"a"})
	require.ErrorIs(t, err, ErrNoSuchDB)
}

func TestExecute_KeysAndRandomKey(t *testing.T) {
	s := NewStore(1)

	assert.Nil(t, exec(t, s, 0, "RANDOMKEY"))

	for _, k := range []string{"user:2", "user:1", "order:1"} {
		exec(t, s, 0, "SET", k, "x")
	}
	assert.Equal(t, []string{"user:1", "user:2"}, exec(t, s, 0, "KEYS", "user:*"))
	assert.Equal(t, []string{"order:1", "user:1", "user:2"}, exec(t, s, 0, "KEYS", "*"))

	k := exec(t, s, 0, "RANDOMKEY")
	assert.Contains(t, []any{"user:1", "user:2", "order:1"}, k)

	_, err := s.Execute(0, "KEYS", []string{"["})
	require.ErrorIs(t, err, ErrSyntax)
}

func TestExecute_KeysMatchAcrossSlashes(t *testing.T) {
	s := NewStore(1)

	exec(t, s, 0, "SET", "user/1", "x")
	exec(t, s, 0, "SET", "user/1/profile", "x")
	exec(t, s, 0, "SET", "plain", "x")

	assert.ElementsMatch(t, []string{"plain", "user/1", "user/1/profile"}, exec(t, s, 0, "KEYS", "*"))
	assert.ElementsMatch(t, []string{"user/1", "user/1/profile"}, exec(t, s, 0, "KEYS", "user/*"))
	assert.Equal(t, []string{"user/1"}, exec(t, s, 0, "KEYS", "user?1"))
	assert.Equal(t, []string{"plain"}, exec(t, s, 0, "KEYS", "p[a-z]ain"))
}

func TestExecute_ServerCommands(t *testing.T) {
	s := NewStore(1)

	assert.Equal(t, "PONG", exec(t, s, 0, "PING"))
	assert.Equal(t, "hi", exec(t, s, 0, "PING", "hi"))
	assert.Equal(t, "hi", exec(t, s, 0, "ECHO", "hi"))

	exec(t, s, 0, "SET", "k", "v")
	info, ok := exec(t, s, 0, "INFO").(string)
	require.True(t, ok)
	assert.Contains(t, info, "kvnode_version:")
	assert.Contains(t, info, "run_id:"+s.RunID())
	assert.Len(t, s.RunID(), 36)
	assert.Contains(t, info, "db0:keys=1")

	before := exec(t, s, 0, "LASTSAVE").(int64)
	assert.Equal(t, "OK", exec(t, s, 0, "SAVE"))
	assert.GreaterOrEqual(t, exec(t, s, 0, "LASTSAVE").(int64), before)
	assert.Equal(t, "Background saving started", exec(t, s, 0, "BGSAVE"))

	tm, ok := exec(t, s, 0, "TIME").([]string)
	require.True(t, ok)
	assert.Len(t, tm, 2)
}

func TestExecute_Errors(t *testing.T) {
	s := NewStore(1)

	_, err := s.Execute(0, "MONITOR", nil)
	require.ErrorIs(t, err, ErrUnknownCommand)

	_, err = s.Execute(0, "GET", nil)
	require.ErrorIs(t, err, ErrWrongArgs)

	_, err = s.Execute(0, "SET", []string{"a", "b", "c"})
	require.ErrorIs(t, err, ErrWrongArgs)

	_, err = s.Execute(0, "PING", []string{"a", "b"})
	require.ErrorIs(t, err, ErrWrongArgs)
}
