// Package version orders dotted module version strings.
//
// Marketplace versions are plain dotted numbers ("1.4.0", "2.10.0") without
// the "v" prefix Go's semver package expects. [Compare] normalizes them and
// delegates to golang.org/x/mod/semver. Strings that are not valid semver
// (four components, "1.0-beta" without a patch) fall back to a numeric
// component-wise comparison so "2.10.0.1" still sorts after "2.9.9".
package version

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// Compare returns -1, 0, or +1 depending on whether a < b, a == b, or a > b.
func Compare(a, b string) int {
	na, okA := normalize(a)
	nb, okB := normalize(b)
	if okA && okB {
		return semver.Compare(na, nb)
	}
	return compareComponents(a, b)
}

// Newer reports whether candidate is strictly greater than current.
func Newer(candidate, current string) bool {
	return Compare(candidate, current) > 0
}

// Valid reports whether v can be interpreted as a semantic version.
func Valid(v string) bool {
	_, ok := normalize(v)
	return ok
}

// normalize ensures the "v" prefix required by the semver package.
func normalize(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v, semver.IsValid(v)
}

// compareComponents compares dot-separated numeric components. Missing
// components count as zero and a non-numeric suffix ("0-beta") compares
// lower than the same number without one.
func compareComponents(a, b string) int {
	pa := strings.Split(strings.TrimPrefix(strings.TrimSpace(a), "v"), ".")
	pb := strings.Split(strings.TrimPrefix(strings.TrimSpace(b), "v"), ".")

	for i, n := 0, max(len(pa), len(pb)); i < n; i++ {
		na, sa := component(pa, i)
		nb, sb := component(pb, i)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		case sa == "" && sb != "":
			return 1
		case sa != "" && sb == "":
			return -1
		case sa != sb:
			return strings.Compare(sa, sb)
		}
	}
	return 0
}

func component(parts []string, i int) (int, string) {
	if i >= len(parts) {
		return 0, ""
	}
	p := parts[i]
	end := 0
	for end < len(p) && p[end] >= '0' && p[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(p[:end])
	return n, p[end:]
}
