package domain

import (
	"encoding/hex"
	"fmt"
	"net"
	"sort"
	"strings"
)

// Peer is a spentbook node as known by wallets and sibling nodes. Its ID is
// the hex encoded compressed public key the node signs attestations with.
type Peer struct {
	ID      string
	Address string
}

// ParsePeer parses a peer in the form <pubkey>@<host:port>.
func ParsePeer(str string) (Peer, error) {
	parts := strings.Split(strings.TrimSpace(str), "@")
	if len(parts) != 2 {
		return Peer{}, ErrInvalidPeer
	}
	p := Peer{ID: strings.ToLower(parts[0]), Address: parts[1]}
	if err := p.Validate(); err != nil {
		return Peer{}, err
	}
	return p, nil
}

// Validate ...
func (p Peer) Validate() error {
	id, err := hex.DecodeString(p.ID)
	if err != nil || len(id) != 33 {
		return fmt.Errorf("%w: bad id %q", ErrInvalidPeer, p.ID)
	}
	if _, _, err := net.SplitHostPort(p.Address); err != nil {
		return fmt.Errorf("%w: bad address %q", ErrInvalidPeer, p.Address)
	}
	return nil
}

func (p Peer) String() string {
	return fmt.Sprintf("%s@%s", p.ID, p.Address)
}

// Membership is the set of spentbook nodes and the number of distinct
// attestations required for a spend to be final.
type Membership struct {
	Peers      []Peer
	QuorumSize int
}

// NewMembership parses the given peers and validates the resulting
// membership.
func NewMembership(peers []string, quorumSize int) (*Membership, error) {
	m := &Membership{QuorumSize: quorumSize}
	for _, str := range peers {
		p, err := ParsePeer(str)
		if err != nil {
			return nil, err
		}
		m.Peers = append(m.Peers, p)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that peers are unique and that the quorum size is
// reachable.
func (m *Membership) Validate() error {
	seen := make(map[string]struct{})
	for _, p := range m.Peers {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := seen[p.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatedPeer, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if m.QuorumSize < 1 || m.QuorumSize > len(m.Peers) {
		return fmt.Errorf(
			"%w: got %d for %d peers", ErrInvalidQuorumSize, m.QuorumSize, len(m.Peers),
		)
	}
	return nil
}

// SortedPeers returns the peers ordered by id.
func (m *Membership) SortedPeers() []Peer {
	peers := append([]Peer(nil), m.Peers...)
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
	return peers
}

// Peer returns the member with the given id, if any.
func (m *Membership) Peer(id string) (Peer, bool) {
	for _, p := range m.Peers {
		if p.ID == id {
			return p, true
		}
	}
	return Peer{}, false
}

// IsMember ...
func (m *Membership) IsMember(id string) bool {
	_, ok := m.Peer(id)
	return ok
}
