// Package chat holds the messaging state of one signed-in user: the
// conversation store, the surface registry, and the router that applies
// inbound frames to both.
package chat

import "fmt"

// Kind distinguishes direct conversations from group threads.
type Kind uint8

const (
	KindDirect Kind = iota + 1
	KindGroup
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Key identifies a conversation: a counterpart id for direct messages or a
// group id for group threads. The kind keeps the two id spaces apart.
type Key struct {
	Kind Kind
	ID   int64
}

// DirectKey returns the key of the direct conversation with a counterpart.
func DirectKey(counterpartID int64) Key {
	return Key{Kind: KindDirect, ID: counterpartID}
}

// GroupKey returns the key of a group thread.
func GroupKey(groupID int64) Key {
	return Key{Kind: KindGroup, ID: groupID}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}
