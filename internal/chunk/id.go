package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// idPrefixLen bounds how much chunk text feeds the hash. The prefix is
// enough to distinguish chunks at the same position whose content changed,
// while keeping hashing cost flat for large chunks.
const idPrefixLen = 100

// ID derives a deterministic chunk identifier from the source ID, the
// chunk's position within the source, and a prefix of its text. Identical
// inputs always produce the same ID, so re-indexing unchanged content
// overwrites rather than duplicates.
func ID(sourceID string, index int, text string) string {
	prefix := text
	if len(prefix) > idPrefixLen {
		prefix = prefix[:idPrefixLen]
	}

	h := sha256.New()
	h.Write([]byte(sourceID))
	h.Write([]byte(":"))
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte(":"))
	h.Write([]byte(prefix))

	return hex.EncodeToString(h.Sum(nil))[:32]
}
