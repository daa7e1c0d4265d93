package tree

import (
	"hash/crc32"
	"strconv"

	"github.com/google/uuid"
)

// maxUIDAttempts bounds the collision loop of NewUID.
const maxUIDAttempts = 1 << 16

// newRandomUID folds a random UUID into 32 bits.
func newRandomUID() UID {
	u := uuid.New()
	return UID(crc32.ChecksumIEEE(u[:]))
}

// ParseUID reads a decimal uid. Zero and malformed text report false.
func ParseUID(s string) (UID, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return UID(n), true
}

func (u UID) String() string { return strconv.FormatUint(uint64(u), 10) }
