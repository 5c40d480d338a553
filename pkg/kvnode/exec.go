package kvnode

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const version = "1.0.0"

type handler func(s *Store, db *DB, args []string) (any, error)

type command struct {
	min, max int // max < 0: без ограничения
	fn       handler
}

var commands = map[string]command{
	"PING":      {0, 1, cmdPing},
	"ECHO":      {1, 1, func(_ *Store, _ *DB, a []string) (any, error) { return a[0], nil }},
	"GET":       {1, 1, cmdGet},
	"SET":       {2, 2, cmdSet},
	"DEL":       {1, -1, cmdDel},
	"EXISTS":    {1, -1, cmdExists},
	"INCR":      {1, 1, func(_ *Store, db *DB, a []string) (any, error) { return incrBy(db, a[0], 1) }},
	"DECR":      {1, 1, func(_ *Store, db *DB, a []string) (any, error) { return incrBy(db, a[0], -1) }},
	"INCRBY":    {2, 2, cmdIncrBy},
	"APPEND":    {2, 2, cmdAppend},
	"STRLEN":    {1, 1, cmdStrlen},
	"MGET":      {1, -1, cmdMget},
	"KEYS":      {1, 1, cmdKeys},
	"RANDOMKEY": {0, 0, cmdRandomKey},
	"DBSIZE":    {0, 0, func(_ *Store, db *DB, _ []string) (any, error) { return int64(db.Len()), nil }},
	"FLUSHDB":   {0, 0, cmdFlushDB},
	"FLUSHALL":  {0, 0, cmdFlushAll},
	"SELECT":    {1, 1, cmdSelect},
	"INFO":      {0, 1, cmdInfo},
	"SAVE":      {0, 0, cmdSave},
	"BGSAVE":    {0, 0, cmdBgSave},
	"LASTSAVE":  {0, 0, func(s *Store, _ *DB, _ []string) (any, error) { return s.lastSave.Load(), nil }},
	"TIME":      {0, 0, cmdTime},
}

// Execute runs one command against database dbIndex.
func (s *Store) Execute(dbIndex int, name string, args []string) (any, error) {
	cmd, ok := commands[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownCommand, name)
	}
	if len(args) < cmd.min || (cmd.max >= 0 && len(args) > cmd.max) {
		return nil, fmt.Errorf("%w for '%s' command", ErrWrongArgs, strings.ToLower(name))
	}
	db, err := s.DB(dbIndex)
	if err != nil {
		return nil, err
	}
	return cmd.fn(s, db, args)
}

func cmdPing(_ *Store, _ *DB, args []string) (any, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	return "PONG", nil
}

func cmdGet(_ *Store, db *DB, args []string) (any, error) {
	v, ok := db.Get(args[0])
	if !ok {
		return nil, nil
	}
	return v, nil
}

func cmdSet(_ *Store, db *DB, args []string) (any, error) {
	db.Set(args[0], args[1])
	return "OK", nil
}

func cmdDel(_ *Store, db *DB, args []string) (any, error) {
	var n int64
	for _, k := range args {
		if db.Delete(k) {
			n++
		}
	}
	return n, nil
}

func cmdExists(_ *Store, db *DB, args []string) (any, error) {
	var n int64
	for _, k := range args {
		if _, ok := db.Get(k); ok {
			n++
		}
	}
	return n, nil
}

func cmdIncrBy(_ *Store, db *DB, args []string) (any, error) {
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return nil, ErrNotInteger
	}
	return incrBy(db, args[0], delta)
}

func incrBy(db *DB, key string, delta int64) (any, error) {
	v, err := db.Update(key, func(cur string, ok bool) (string, error) {
		var n int64
		if ok {
			parsed, err := strconv.ParseInt(cur, 10, 64)
			if err != nil {
				return "", ErrNotInteger
			}
			n = parsed
		}
		return strconv.FormatInt(n+delta, 10), nil
	})
	if err != nil {
		return nil, err
	}
	// значение только что отформатировано из int64
	n, _ := strconv.ParseInt(v, 10, 64)
	return n, nil
}

func cmdAppend(_ *Store, db *DB, args []string) (any, error) {
	v, err := db.Update(args[0], func(cur string, _ bool) (string, error) {
		return cur + args[1], nil
	})
	if err != nil {
		return nil, err
	}
	return int64(len(v)), nil
}

func cmdStrlen(_ *Store, db *DB, args []string) (any, error) {
	v, _ := db.Get(args[0])
	return int64(len(v)), nil
}

func cmdMget(_ *Store, db *DB, args []string) (any, error) {
	out := make([]any, len(args))
	for i, k := range args {
		if v, ok := db.Get(k); ok {
			out[i] = v
		}
	}
	return out, nil
}

func cmdKeys(_ *Store, db *DB, args []string) (any, error) {
	return db.Keys(args[0])
}

func cmdRandomKey(_ *Store, db *DB, _ []string) (any, error) {
	k, ok := db.RandomKey()
	if !ok {
		return nil, nil
	}
	return k, nil
}

func cmdFlushDB(_ *Store, db *DB, _ []string) (any, error) {
	db.Flush()
	return "OK", nil
}

func cmdFlushAll(s *Store, _ *DB, _ []string) (any, error) {
	for _, db := range s.dbs {
		db.Flush()
	}
	return "OK", nil
}

// SELECT только проверяет индекс: база выбирается на каждый запрос заголовком.
func cmdSelect(s *Store, _ *DB, args []string) (any, error) {
	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, ErrNotInteger
	}
	if _, err := s.DB(idx); err != nil {
		return nil, err
	}
	return "OK", nil
}

func cmdSave(s *Store, _ *DB, _ []string) (any, error) {
	s.lastSave.Store(time.Now().Unix())
	return "OK", nil
}

func cmdBgSave(s *Store, _ *DB, _ []string) (any, error) {
	s.lastSave.Store(time.Now().Unix())
	return "Background saving started", nil
}

func cmdTime(_ *Store, _ *DB, _ []string) (any, error) {
	now := time.Now()
	return []string{
		strconv.FormatInt(now.Unix(), 10),
		strconv.Itoa(now.Nanosecond() / 1000),
	}, nil
}

func cmdInfo(s *Store, _ *DB, _ []string) (any, error) {
	var b strings.Builder
	b.WriteString("# Server\r\n")
	fmt.Fprintf(&b, "kvnode_version:%s\r\n", version)
	fmt.Fprintf(&b, "run_id:%s\r\n", s.runID)
	fmt.Fprintf(&b, "uptime_in_seconds:%d\r\n", int64(time.Since(s.started).Seconds()))
	b.WriteString("# Keyspace\r\n")
	for i, db := range s.dbs {
		if n := db.Len(); n > 0 {
			fmt.Fprintf(&b, "db%d:keys=%d\r\n", i, n)
		}
	}
	return b.String(), nil
}
