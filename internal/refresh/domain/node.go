package domain

import "time"

// State is the lifecycle state of one family node.
// issued → (rotated | expired | revoked); rotated, expired, and revoked are terminal.
type State string

const (
	StateIssued  State = "issued"
	StateRotated State = "rotated"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

// Node is one refresh-token identifier in a session's token family. Nodes
// form a singly-linked lineage through ParentJTI/RotatedTo, stored as plain
// identifiers rather than live references. RotatedTo is set exactly once, the
// instant the token is used; a second attempt to set it is the reuse signal.
type Node struct {
	JTI       string
	ParentJTI string // empty at the family root
	RotatedTo string // empty until the node is used
	SessionID string
	UserID    string
	State     State
	IssuedAt  time.Time
}
