package seats

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PCG-XSH-RR constants.
const (
	pcgMultiplier = 6364136223846793005
	pcgIncrement  = 1442695040888963407
)

const streamBlobPrefix = "pcg32"

// Stream is a seeded, position-addressable source of uniform draws in [0,1).
// It is owned by a Game and shared by every State of that game. The full
// generator position can be exported as an opaque blob and re-imported later,
// which is how serialized states restore their exact future randomness.
//
// Stream is not safe for concurrent use.
type Stream struct {
	state uint64
	count uint64
}

// NewStream creates a stream from seed. A zero seed uses the wall clock.
func NewStream(seed int64) *Stream {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Stream{state: uint64(seed)*2 + 1}
}

func (s *Stream) next32() uint32 {
	oldstate := s.state
	s.state = oldstate*pcgMultiplier + pcgIncrement
	xorshifted := uint32(((oldstate >> 18) ^ oldstate) >> 27)
	rot := uint32(oldstate >> 59)
	return (xorshifted >> rot) | (xorshifted << ((-rot) & 31))
}

// Float64 returns the next uniform draw in [0,1). Each call consumes exactly
// one generator step, so draw counts line up across reimplementations.
func (s *Stream) Float64() float64 {
	s.count++
	return float64(s.next32()) / (1 << 32)
}

// Position returns the number of draws consumed so far.
func (s *Stream) Position() uint64 {
	return s.count
}

// Export returns the stream position as an opaque blob suitable for embedding
// in a serialized state.
func (s *Stream) Export() string {
	return fmt.Sprintf("%s:%016x:%d", streamBlobPrefix, s.state, s.count)
}

// Import restores the stream to a previously exported position.
func (s *Stream) Import(blob string) error {
	parts := strings.Split(blob, ":")
	if len(parts) != 3 || parts[0] != streamBlobPrefix {
		return fmt.Errorf("unrecognized stream blob %q", blob)
	}
	state, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return fmt.Errorf("stream blob state: %w", err)
	}
	count, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("stream blob count: %w", err)
	}
	s.state = state
	s.count = count
	return nil
}
