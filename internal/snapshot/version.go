package snapshot

import semver "github.com/Masterminds/semver/v3"

// FormatVersion stamps every emitted Document so a host embedding
// multiple snapshot-reading tools can gate on format compatibility.
// Grounded on the teacher's internal/packagemanager/resolver.go,
// which resolves dependency version constraints with
// Masterminds/semver — repurposed here from package-manager
// constraints to snapshot-format constraints.
const FormatVersion = "1.0.0"

// CheckCompatible reports whether constraint (a semver range
// expression such as ">=1.0.0, <2.0.0") admits this package's
// FormatVersion, the same NewVersion/NewConstraint pairing
// resolver.go's parseConstraint/mustSemver use for dependency
// resolution.
func CheckCompatible(constraint string) (bool, error) {
	v, err := semver.NewVersion(FormatVersion)
	if err != nil {
		return false, err
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, err
	}

	return c.Check(v), nil
}
