package cluster

import "errors"

var (
	// ErrConfiguration reports an unusable server list or an empty ring.
	ErrConfiguration = errors.New("cluster: configuration error")
	// ErrNotFound reports an unknown alias or an out-of-range client index.
	ErrNotFound = errors.New("cluster: client not found")
)
