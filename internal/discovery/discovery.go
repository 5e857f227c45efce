// Package discovery implements the peer-discovery collaborators named in
// §6 as external to the core: a UDP broadcast announcer/listener, and a
// Kubernetes Endpoints-based alternative for clustered deployments. Neither
// backend touches hub.Hub directly — they only produce Peer records for
// whatever wires up transport.Dial.
package discovery

import (
	"fmt"

	"github.com/corvuslab/meshbus/internal/hub"
)

// BroadcastPort is the well-known UDP port peers broadcast presence on.
const BroadcastPort = 8765

// Peer is one hub process discovered on the network.
type Peer struct {
	ID    string
	Addr  string
	Scope hub.Scope
}

// EncodeAnnouncement renders p as the broadcast payload: "HUB<id>,<addr>,<scope>".
func EncodeAnnouncement(p Peer) string {
	return fmt.Sprintf("HUB%s,%s,%s", p.ID, p.Addr, p.Scope)
}

// DecodeAnnouncement parses a broadcast payload produced by EncodeAnnouncement.
func DecodeAnnouncement(line string) (Peer, error) {
	const prefix = "HUB"
	if len(line) < len(prefix) || line[:len(prefix)] != prefix {
		return Peer{}, fmt.Errorf("discovery: malformed announcement %q", line)
	}
	rest := line[len(prefix):]

	fields := splitThree(rest)
	if fields == nil {
		return Peer{}, fmt.Errorf("discovery: malformed announcement %q", line)
	}
	scope, err := hub.ParseScope(fields[2])
	if err != nil {
		return Peer{}, fmt.Errorf("discovery: malformed announcement %q: %w", line, err)
	}
	return Peer{ID: fields[0], Addr: fields[1], Scope: scope}, nil
}

// splitThree splits s on exactly two commas, returning nil if the field
// count doesn't match ("HUBid,addr,scope" has exactly three fields; an
// address containing a comma is not a supported input).
func splitThree(s string) []string {
	var fields []string
	start := 0
	commas := 0
	for i, r := range s {
		if r == ',' {
			fields = append(fields, s[start:i])
			start = i + 1
			commas++
		}
	}
	if commas != 2 {
		return nil
	}
	fields = append(fields, s[start:])
	return fields
}
