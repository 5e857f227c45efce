package hub

import "fmt"

// Scope orders hubs by the breadth of the namespace they federate. A parent
// must always sit at a strictly greater scope than its children — it is
// what lets escalation terminate after at most three hops, one fewer than
// the four scope levels.
type Scope int

const (
	// ScopeThread is the narrowest scope: a single goroutine/thread-local hub.
	ScopeThread Scope = iota
	// ScopeProcess federates the thread hubs of one OS process.
	ScopeProcess
	// ScopeMachine federates the process hubs of one host.
	ScopeMachine
	// ScopeNetwork federates machine hubs across a network.
	ScopeNetwork
)

func (s Scope) String() string {
	switch s {
	case ScopeThread:
		return "thread"
	case ScopeProcess:
		return "process"
	case ScopeMachine:
		return "machine"
	case ScopeNetwork:
		return "network"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseScope converts a CLI/config scope name into a Scope, as used by the
// "start --scope" entry point.
func ParseScope(name string) (Scope, error) {
	switch name {
	case "thread":
		return ScopeThread, nil
	case "process":
		return ScopeProcess, nil
	case "machine":
		return ScopeMachine, nil
	case "network":
		return ScopeNetwork, nil
	default:
		return 0, fmt.Errorf("hub: unknown scope %q", name)
	}
}
