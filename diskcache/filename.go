package diskcache

import (
	"hash/fnv"
	"io"
	"strconv"
)

// filenameForKey renders the filename for key as the concatenation of a
// hash of its first half and a hash of its second half, each as decimal
// digits (§4.4). Collisions are tolerated: the header stored inside the
// file carries the full key, and a mismatch on read is treated as
// corruption (ErrCorrupt), which naturally prunes the colliding entry.
func filenameForKey(key string) string {
	mid := len(key) / 2
	first, second := key[:mid], key[mid:]
	return strconv.FormatUint(uint64(hashPart(first)), 10) + strconv.FormatUint(uint64(hashPart(second)), 10)
}

func hashPart(s string) uint32 {
	h := fnv.New32a()
	_, _ = io.WriteString(h, s)
	return h.Sum32()
}
