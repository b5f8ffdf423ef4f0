// Package version provides semantic version validation and ordering for published versions
package version

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// String constants for operations (used in ErrVersionParseFailed)
const (
	OpValidateVersion = "validate_version"
	OpParseVersion1   = "parse_version1"
	OpParseVersion2   = "parse_version2"
)

// ErrEmptyVersion is returned for blank version strings.
var ErrEmptyVersion = errors.New("version cannot be empty")

// ErrVersionParseFailed represents a version parsing error
type ErrVersionParseFailed struct {
	Version string
	Op      string
	Cause   error
}

func (e ErrVersionParseFailed) Error() string {
	return fmt.Sprintf("failed to parse version %s in operation %s: %v", e.Version, e.Op, e.Cause)
}

func (e ErrVersionParseFailed) Unwrap() error {
	return e.Cause
}

func (e ErrVersionParseFailed) Is(target error) bool {
	var parseErr ErrVersionParseFailed
	return errors.As(target, &parseErr)
}

// Validator provides version validation using semver
type Validator interface {
	// ValidateVersion validates that a version string is valid semver
	ValidateVersion(version string) error

	// CompareVersions compares two versions (-1, 0, 1)
	CompareVersions(v1, v2 string) (int, error)
}

// semverValidator implements Validator using Masterminds/semver
type semverValidator struct{}

// New creates a new version validator
func New() Validator {
	return &semverValidator{}
}

// ValidateVersion validates that a version string is valid semver
func (v *semverValidator) ValidateVersion(version string) error {
	if version == "" {
		return ErrEmptyVersion
	}
	_, err := semver.NewVersion(version)
	if err != nil {
		return ErrVersionParseFailed{
			Version: version,
			Op:      OpValidateVersion,
			Cause:   err,
		}
	}
	return nil
}

// CompareVersions compares two versions (-1 if v1 < v2, 0 if equal, 1 if v1 > v2)
func (v *semverValidator) CompareVersions(v1, v2 string) (int, error) {
	ver1, err := semver.NewVersion(v1)
	if err != nil {
		return 0, ErrVersionParseFailed{
			Version: v1,
			Op:      OpParseVersion1,
			Cause:   err,
		}
	}

	ver2, err := semver.NewVersion(v2)
	if err != nil {
		return 0, ErrVersionParseFailed{
			Version: v2,
			Op:      OpParseVersion2,
			Cause:   err,
		}
	}

	return ver1.Compare(ver2), nil
}

// SortDescending orders items newest version first. Items whose version is
// not semver keep their relative order and go last.
func SortDescending[T any](items []T, versionOf func(T) string) {
	parsed := make(map[int]*semver.Version, len(items))
	idx := make([]int, len(items))
	for i := range items {
		idx[i] = i
		if sv, err := semver.NewVersion(versionOf(items[i])); err == nil {
			parsed[i] = sv
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := parsed[idx[a]], parsed[idx[b]]
		switch {
		case va != nil && vb != nil:
			return va.GreaterThan(vb)
		case va != nil:
			return true
		default:
			return false
		}
	})

	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}
