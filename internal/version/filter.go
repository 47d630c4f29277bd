package version

// IsNewerThan reports whether candidate parses and is strictly greater than
// reference. Unparsable input on either side yields false.
func IsNewerThan(candidate, reference string) bool {
	ref, ok := Parse(reference)
	if !ok {
		return false
	}
	cand, ok := Parse(candidate)
	if !ok {
		return false
	}
	return cand.IsNewerThan(ref)
}

// Filter keeps release tags newer than a fixed reference version
type Filter struct {
	reference *Version
}

// NewFilter creates a filter for the running version. It returns false when
// the running version cannot be parsed; callers should then report no
// releases at all rather than fail.
func NewFilter(current string) (*Filter, bool) {
	ref, ok := Parse(current)
	if !ok {
		return nil, false
	}
	return &Filter{reference: ref}, true
}

// Reference returns the version releases are compared against
func (f *Filter) Reference() *Version {
	return f.reference
}

// Keep reports whether the release tag is strictly newer than the reference.
// Malformed tags are dropped.
func (f *Filter) Keep(tag string) bool {
	candidate, ok := Parse(tag)
	if !ok {
		return false
	}
	return candidate.IsNewerThan(f.reference)
}
