// Package homenet implements the home-network policy that decides which
// profile(s) a flow belongs to, per direction/membership rules. It keeps
// the configured home network(s) in a radix-CIDR tree (asergeyev/nradix)
// rather than a single net.IPNet comparison: a single configured CIDR
// today doesn't need a tree, but the policy's shape doesn't change if the
// config later grows to a list of home networks.
package homenet

import (
	"fmt"
	"net/netip"

	"github.com/asergeyev/nradix"
)

// Direction selects which analysis_direction mode the policy runs under.
type Direction int

const (
	DirectionOut Direction = iota
	DirectionAll
)

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "all":
		return DirectionAll, nil
	case "out":
		return DirectionOut, nil
	default:
		return DirectionAll, fmt.Errorf("homenet: unknown analysis_direction %q", s)
	}
}

// Policy resolves a flow's (fwd, rev) profiling targets given the
// configured home network(s) and analysis direction.
type Policy struct {
	tree      *nradix.Tree
	configured bool
	direction Direction
}

// New builds a Policy. cidrs may be empty, meaning "no home network
// filter" (§4.3's "home_net unset" rows).
func New(direction Direction, cidrs ...string) (*Policy, error) {
	p := &Policy{tree: nradix.NewTree(0), direction: direction}
	for _, cidr := range cidrs {
		if cidr == "" {
			continue
		}
		if err := p.tree.AddCIDR(cidr, true); err != nil {
			return nil, fmt.Errorf("homenet: add CIDR %q: %w", cidr, err)
		}
		p.configured = true
	}
	return p, nil
}

// Contains reports whether addr falls inside the configured home
// network(s). It is always false when no home network is configured.
func (p *Policy) Contains(addr netip.Addr) bool {
	if !p.configured || !addr.IsValid() {
		return false
	}
	cidr := addr.String() + "/32"
	if addr.Is6() {
		cidr = addr.String() + "/128"
	}
	v, err := p.tree.FindCIDR(cidr)
	return err == nil && v != nil
}

// Targets are the two possible profile keys a flow can resolve to: the
// source's profile (forward direction) and the destination's profile
// (reverse direction). Either may be the zero value, meaning "no target
// for this direction" (the flow is dropped on that side).
type Targets struct {
	Fwd netip.Addr
	Rev netip.Addr
}

// Resolve implements the §4.3 decision table.
func (p *Policy) Resolve(saddr, daddr netip.Addr) Targets {
	if !p.configured {
		if p.direction == DirectionOut {
			return Targets{Fwd: saddr}
		}
		return Targets{Fwd: saddr, Rev: daddr}
	}

	sIn := p.Contains(saddr)
	dIn := p.Contains(daddr)

	if p.direction == DirectionOut {
		if sIn {
			return Targets{Fwd: saddr}
		}
		return Targets{}
	}

	// analysis_direction == all, home network configured.
	switch {
	case sIn:
		return Targets{Fwd: saddr}
	case dIn:
		return Targets{Rev: daddr}
	default:
		return Targets{}
	}
}
