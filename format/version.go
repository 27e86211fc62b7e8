package format

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a semver triple. Two distinct versions govern an ASDF file
// (spec §3): the file-format version (binary layout of blocks/index) and
// the standard version (YAML tag vocabulary, mapping-key restrictions).
type Version struct {
	Major, Minor, Patch int
}

// Standard versions named explicitly by spec §4.E/§9 ("mapping keys
// restricted to string/int/bool under standard ≥1.6").
var (
	StandardVersionEarliest = Version{1, 0, 0}
	StandardVersion1_6      = Version{1, 6, 0}
	StandardVersionLatest   = Version{1, 6, 0}
)

// DefaultFileFormatVersion is the file-format version this module emits
// when the caller doesn't request a specific one.
var DefaultFileFormatVersion = Version{1, 1, 0}

// ParseVersion parses a "M.m.p" string.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("format: invalid version %q: want M.m.p", s)
	}

	nums := make([]int, 3)

	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("format: invalid version %q: %w", s, err)
		}

		nums[i] = n
	}

	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater
// than other.
func (v Version) Compare(other Version) int {
	for _, pair := range [][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	} {
		if pair[0] != pair[1] {
			if pair[0] < pair[1] {
				return -1
			}

			return 1
		}
	}

	return 0
}

// LessThan reports whether v precedes other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// AtLeast reports whether v is other or newer.
func (v Version) AtLeast(other Version) bool { return v.Compare(other) >= 0 }

// SameMajor reports whether v and other share a major version component,
// the threshold spec §4.F uses to decide between "fall back to an older
// minor" (same major) and "emit UnknownTagWarning" (major differs).
func (v Version) SameMajor(other Version) bool { return v.Major == other.Major }
