package manifest

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// CompareVersion returns -1, 0, or 1. Well-formed semantic versions (with or
// without a leading "v") are compared by semver rules. Anything else falls
// back to a segment-wise comparison where numeric segments compare
// numerically and missing segments count as zero.
func CompareVersion(a, b string) int {
	ca, cb := canonical(a), canonical(b)
	if semver.IsValid(ca) && semver.IsValid(cb) {
		return semver.Compare(ca, cb)
	}
	return compareSegments(strings.TrimPrefix(strings.TrimSpace(a), "v"), strings.TrimPrefix(strings.TrimSpace(b), "v"))
}

// NeedsUpdate reports whether the remote version is newer than the installed one.
func NeedsUpdate(installed, remote string) bool {
	return CompareVersion(installed, remote) < 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func compareSegments(a, b string) int {
	sa := splitVersion(a)
	sb := splitVersion(b)
	n := max(len(sa), len(sb))
	for i := range n {
		x, y := segment(sa, i), segment(sb, i)
		xn, xerr := strconv.Atoi(x)
		yn, yerr := strconv.Atoi(y)
		switch {
		case xerr == nil && yerr == nil:
			if xn != yn {
				return cmp(xn, yn)
			}
		case x != y:
			return strings.Compare(x, y)
		}
	}
	return 0
}

func splitVersion(v string) []string {
	if v == "" {
		return nil
	}
	return strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '-' || r == '+' })
}

func segment(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return "0"
}

func cmp(a, b int) int {
	if a < b {
		return -1
	}
	return 1
}
