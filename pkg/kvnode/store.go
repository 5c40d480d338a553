// Package kvnode is a single in-memory key-value server speaking the command
// API that pkg/client uses. Data lives in memory only; SAVE and BGSAVE just
// record the save timestamp.
package kvnode

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/zhangyunhao116/skipmap"
)

const DefaultDatabases = 16

var (
	ErrNoSuchDB       = errors.New("ERR DB index is out of range")
	ErrUnknownCommand = errors.New("ERR unknown command")
	ErrWrongArgs      = errors.New("ERR wrong number of arguments")
	ErrNotInteger     = errors.New("ERR value is not an integer or out of range")
	ErrSyntax         = errors.New("ERR syntax error")
)

type keyspace = skipmap.OrderedMap[string, string]

func newKeyspace() *keyspace {
	return skipmap.New[string, string]()
}

// DB is one numbered keyspace.
type DB struct {
	// сериализует все записи; чтения идут без блокировки
	mu   sync.Mutex
	data atomic.Pointer[keyspace]
}

func newDB() *DB {
	db := &DB{}
	db.data.Store(newKeyspace())
	return db
}

func (db *DB) Get(key string) (string, bool) {
	return db.data.Load().Load(key)
}

func (db *DB) Set(key, value string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.Load().Store(key, value)
}

func (db *DB) Delete(key string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.data.Load().LoadAndDelete(key)
	return ok
}

// Update runs a read-modify-write of one key under the write lock.
// fn gets the current value and whether the key exists; an error leaves the key untouched.
func (db *DB) Update(key string, fn func(cur string, ok bool) (string, error)) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	ks := db.data.Load()
	cur, ok := ks.Load(key)
	next, err := fn(cur, ok)
	if err != nil {
		return "", err
	}
	ks.Store(key, next)
	return next, nil
}

func (db *DB) Len() int {
	return db.data.Load().Len()
}

// Flush swaps in an empty keyspace.
func (db *DB) Flush() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data.Store(newKeyspace())
}

// Keys returns keys matching a Redis glob pattern in ascending order.
// '*' and '?' match any character, '/' included.
func (db *DB) Keys(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, ErrSyntax
	}
	keys := make([]string, 0)
	db.data.Load().Range(func(k, _ string) bool {
		if g.Match(k) {
			keys = append(keys, k)
		}
		return true
	})
	return keys, nil
}

// RandomKey returns a uniformly chosen key, or false if the keyspace is empty.
func (db *DB) RandomKey() (string, bool) {
	ks := db.data.Load()
	n := ks.Len()
	if n == 0 {
		return "", false
	}
	target := rand.Intn(n)
	var (
		key   string
		found bool
		i     int
	)
	ks.Range(func(k, _ string) bool {
		if i == target {
			key, found = k, true
			return false
		}
		i++
		return true
	})
	return key, found
}

// Store holds all numbered databases of a node.
type Store struct {
	dbs      []*DB
	runID    string
	started  time.Time
	lastSave atomic.Int64
}

func NewStore(databases int) *Store {
	if databases <= 0 {
		databases = DefaultDatabases
	}
	s := &Store{
		dbs:     make([]*DB, databases),
		runID:   uuid.NewString(),
		started: time.Now(),
	}
	for i := range s.dbs {
		s.dbs[i] = newDB()
	}
	s.lastSave.Store(s.started.Unix())
	return s
}

// RunID identifies this process; it changes on every restart.
func (s *Store) RunID() string { return s.runID }

func (s *Store) DB(index int) (*DB, error) {
	if index < 0 || index >= len(s.dbs) {
		return nil, ErrNoSuchDB
	}
	return s.dbs[index], nil
}

func (s *Store) Databases() int { return len(s.dbs) }
