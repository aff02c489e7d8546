package signaling

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionIDs allocates server-assigned session identifiers.
//
// An id is a fixed-width hex counter joined to a uuid: the counter makes
// plain string comparison a stable total order (used by clients for
// initiator election), the uuid suffix keeps ids collision-free across
// server restarts. Ids are never reused.
type SessionIDs struct {
	ctr atomic.Uint64
}

// Next returns a fresh session id, greater than every id handed out
// before it by this process.
func (s *SessionIDs) Next() string {
	return fmt.Sprintf("%016x-%s", s.ctr.Add(1), uuid.NewString())
}
