// Package version parses MAJOR.MINOR.PATCH release versions and decides
// which releases are newer than the running one.
package version

import (
	"github.com/Masterminds/semver/v3"
)

// Version is an immutable, strictly parsed semantic version
type Version struct {
	v *semver.Version
}

// Parse parses a strict MAJOR.MINOR.PATCH version (optionally with
// prerelease and build metadata). Malformed input is reported through the
// boolean rather than an error; it never panics.
func Parse(text string) (*Version, bool) {
	v, err := semver.StrictNewVersion(text)
	if err != nil {
		return nil, false
	}
	return &Version{v: v}, true
}

// MustParse is like Parse but panics on malformed input. Intended for tests
// and constants.
func MustParse(text string) *Version {
	v, ok := Parse(text)
	if !ok {
		panic("version: invalid semantic version " + text)
	}
	return v
}

// IsNewerThan reports whether v is strictly greater than other. A nil
// version is never newer, and nothing is newer than a nil version.
func (v *Version) IsNewerThan(other *Version) bool {
	if v == nil || other == nil {
		return false
	}
	return v.v.GreaterThan(other.v)
}

// Equal reports whether both versions have the same precedence
func (v *Version) Equal(other *Version) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.v.Equal(other.v)
}

// Major returns the major component
func (v *Version) Major() uint64 { return v.v.Major() }

// Minor returns the minor component
func (v *Version) Minor() uint64 { return v.v.Minor() }

// Patch returns the patch component
func (v *Version) Patch() uint64 { return v.v.Patch() }

func (v *Version) String() string {
	if v == nil {
		return ""
	}
	return v.v.String()
}
