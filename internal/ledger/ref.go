package ledger

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Ref is a tagged ledger transaction or token reference. A reference is
// either Confirmed (a real on-ledger signature or mint address) or Degraded
// (a synthetic placeholder minted while the ledger was unreachable), and
// downstream code must not mistake one for the other.
type Ref struct {
	value     string
	confirmed bool
}

// Confirmed wraps a real on-ledger reference.
func Confirmed(value string) Ref {
	return Ref{value: value, confirmed: true}
}

// Degraded mints a placeholder reference for a record operation that could
// not reach the ledger.
func Degraded() Ref {
	buf := make([]byte, 5)
	_, _ = rand.Read(buf)
	return Ref{value: fmt.Sprintf("dev-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))}
}

// FromStored rebuilds a Ref from its persisted value/state pair.
func FromStored(value string, confirmed bool) Ref {
	return Ref{value: value, confirmed: confirmed}
}

// Value returns the reference string regardless of provenance.
func (r Ref) Value() string { return r.value }

// IsConfirmed reports whether the reference points at a real ledger entry.
func (r Ref) IsConfirmed() bool { return r.confirmed }

// IsZero reports an absent reference (e.g. no token minted).
func (r Ref) IsZero() bool { return r.value == "" }

func (r Ref) String() string { return r.value }
