package curriculum

import (
	"strconv"
	"strings"
)

const versionSep = ".v"

// BaseID strips a trailing ".v{N}" version suffix from a template id.
// Ids without a version suffix are returned unchanged.
func BaseID(id string) string {
	idx := strings.LastIndex(id, versionSep)
	if idx < 0 {
		return id
	}
	if _, err := strconv.Atoi(id[idx+len(versionSep):]); err != nil {
		return id
	}
	return id[:idx]
}

// VersionOf returns the version number of a template id, or 0 for an
// unversioned base id.
func VersionOf(id string) int {
	idx := strings.LastIndex(id, versionSep)
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[idx+len(versionSep):])
	if err != nil {
		return 0
	}
	return n
}

// NextVersionID computes the id for the next saved version of a template.
// The id's base is derived by stripping any ".v{N}" suffix; the result is
// "base.v{max+1}" where max is the highest version among existing ids
// sharing that base (the bare base counts as version 0). Prior versions
// are never reused, so lineages are append-only.
func NextVersionID(id string, existing []string) string {
	base := BaseID(id)

	max := 0
	for _, e := range existing {
		if BaseID(e) != base {
			continue
		}
		if v := VersionOf(e); v > max {
			max = v
		}
	}
	return base + versionSep + strconv.Itoa(max+1)
}
