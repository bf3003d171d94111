package orchestrator

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewRequestID returns a time-prefixed, collision-resistant correlation id:
// base36(unixNano) + 6 random bytes in hex.
func NewRequestID() string {
	prefix := strconv.FormatInt(time.Now().UTC().UnixNano(), 36)
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return prefix + hex.EncodeToString(buf)
}

// NewTraceID returns a v4 UUID. StartRun calls it for every admitted
// request; a caller-supplied traceId is not accepted.
func NewTraceID() string {
	return uuid.NewString()
}

// NewOrderID returns an id in the same time-prefixed shape as NewRequestID,
// distinguished by an "ord-" prefix so the two id spaces never collide in
// logs or admin listings.
func NewOrderID() string {
	return "ord-" + NewRequestID()
}
