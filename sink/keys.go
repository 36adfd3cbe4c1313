package sink

import "fmt"

// ObjectKey derives the storage key for a frame: {prefix}/frame{seq}.{ext},
// with the sequence zero-padded to a minimum of two digits. For a fixed
// session the key is a total, injective function of the sequence number.
// Lexical order only matches numeric order below sequence 10 (frame09,
// frame10, ... frame100); do not widen the padding without coordinating
// with consumers of existing buckets.
func ObjectKey(prefix string, sequence uint64, extension string) string {
	return fmt.Sprintf("%s/frame%02d.%s", prefix, sequence, extension)
}
