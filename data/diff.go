package data

import (
	"fmt"
	"strings"
)

// Origin tags the side a differing entry was found on.
type Origin string

const (
	OriginExpected Origin = "expected"
	OriginActual   Origin = "actual"
)

// Difference is an entry present on one side only.
type Difference struct {
	Origin  Origin
	Default bool
	Entry   AclEntry
}

func (d Difference) String() string {
	return fmt.Sprintf("%s: %s", d.Origin, d.Entry)
}

// Differences holds the differing entries of both the effective and default list.
type Differences []Difference

// Effective returns the differences of the effective list.
func (ds Differences) Effective() Differences {
	return ds.filter(false)
}

// Defaults returns the differences of the default list.
func (ds Differences) Defaults() Differences {
	return ds.filter(true)
}

func (ds Differences) filter(isDefault bool) Differences {
	filtered := make(Differences, 0, len(ds))
	for _, d := range ds {
		if d.Default == isDefault {
			filtered = append(filtered, d)
		}
	}

	return filtered
}

func (ds Differences) String() string {
	parts := make([]string, 0, len(ds))
	for _, d := range ds {
		parts = append(parts, d.String())
	}

	return strings.Join(parts, ",")
}

// Diff returns the symmetric difference between expected and actual.
// Entries are compared structurally; order and duplicates are irrelevant.
// Expected-only entries come first in expected order, followed by
// actual-only entries in actual order.
func Diff(expected, actual []AclEntry, isDefault bool) Differences {
	differences := make(Differences, 0)
	differences = appendMissing(differences, expected, actual, OriginExpected, isDefault)
	differences = appendMissing(differences, actual, expected, OriginActual, isDefault)

	return differences
}

// DiffAccessControl compares the expected lists against the actual state,
// independently for the effective and the default list.
func DiffAccessControl(acl, defaultAcl []AclEntry, actual *AccessControl) Differences {
	differences := Diff(acl, actual.Acl, false)
	return append(differences, Diff(defaultAcl, actual.DefaultAcl, true)...)
}

func appendMissing(differences Differences, from, other []AclEntry, origin Origin, isDefault bool) Differences {
	present := make(map[AclEntry]struct{}, len(other))
	for _, entry := range other {
		present[entry] = struct{}{}
	}

	seen := make(map[AclEntry]struct{}, len(from))
	for _, entry := range from {
		if _, ok := present[entry]; ok {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}

		seen[entry] = struct{}{}
		differences = append(differences, Difference{
			Origin:  origin,
			Default: isDefault,
			Entry:   entry,
		})
	}

	return differences
}
