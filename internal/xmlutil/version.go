package xmlutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a "major.minor[.patch]" file format version.
type Version struct {
	Major int
	Minor int
	Patch int
}

// Well-known format thresholds.
var (
	// VersionUID is the first tree format that stores node uids.
	VersionUID = Version{1, 2, 0}
	// VersionSplitHeaders is the first alphabet format with separate headerTree/headerLibrary.
	VersionSplitHeaders = Version{1, 2, 4}
	// Current is the version written by this module.
	Current = Version{1, 2, 4}
)

// ParseVersion parses "1", "1.2" or "1.2.4". Missing components are zero.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		nums[i] = n
	}
	return Version{nums[0], nums[1], nums[2]}, nil
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	switch {
	case v.Major != o.Major:
		return cmpInt(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpInt(v.Minor, o.Minor)
	default:
		return cmpInt(v.Patch, o.Patch)
	}
}

// AtLeast reports whether v >= o.
func (v Version) AtLeast(o Version) bool { return v.Compare(o) >= 0 }

// Less reports whether v < o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
