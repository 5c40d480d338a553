// Package metrics defines the instrumentation hooks of the cluster router.
package metrics

// Routes reported in metric labels.
const (
	RouteMaster  = "master"
	RouteDefault = "default"
	RouteHash    = "hash"
)

// OtherCommand is the command label for names outside the known command sets.
const OtherCommand = "other"

// RouterMetrics captures routing decisions and command latency.
type RouterMetrics interface {
	// CommandRouted counts one dispatched command.
	CommandRouted(route, command string)
	// CommandFailed counts a command whose execution returned an error.
	CommandFailed(route string)
	// CommandDuration starts timing one command.
	CommandDuration(route string) Timer
	// Topology reports the routable server count and ring size.
	Topology(servers, ringPoints int)
}

// Timer measures the duration of an operation.
type Timer interface {
	ObserveDuration()
}

type nop struct{}

type nopTimer struct{}

func (nopTimer) ObserveDuration() {}

func (nop) CommandRouted(string, string) {}
func (nop) CommandFailed(string)         {}
func (nop) CommandDuration(string) Timer { return nopTimer{} }
func (nop) Topology(int, int)            {}

// Nop returns RouterMetrics that discards everything.
func Nop() RouterMetrics { return nop{} }
