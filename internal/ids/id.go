package ids

import (
	"time"

	"github.com/google/uuid"
)

// Prefixes used when minting opaque entity ids. The prefix is a readability
// aid only; callers must never parse it for meaning.
const (
	PrefixComponent = "cmp"
	PrefixRel       = "rel"
	PrefixTask      = "tsk"
	PrefixComment   = "cmt"
	PrefixChange    = "chg"
	PrefixSnapshot  = "snp"
	PrefixCommand   = "cmd"
)

// New mints an opaque, content-derived id for an entity. title/description
// need not be meaningful; they only widen the hash input so near-identical
// entities created in the same instant still get distinct ids. nonce should
// be incremented by the caller on a collision.
func New(prefix, title, description, creator string, now time.Time, nonce int) string {
	return GenerateHashID(prefix, title, description, creator, now, 6, nonce)
}

// NewRandom mints an opaque id with no semantic or content derivation, for
// entities (PendingCommand, Snapshot) where content hashing adds no value.
func NewRandom(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
