// Package platform lists the server platforms Hangar accepts uploads for.
package platform

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownPlatform is returned for identifiers Hangar does not know.
var ErrUnknownPlatform = errors.New("unknown platform")

// Platform is a Hangar server platform.
type Platform struct {
	ID          string // wire identifier, e.g. PAPER
	DisplayName string
	Proxy       bool
}

// PredefinedPlatforms returns the platforms Hangar supports, in its own order.
func PredefinedPlatforms() []Platform {
	return []Platform{
		{ID: "PAPER", DisplayName: "Paper"},
		{ID: "WATERFALL", DisplayName: "Waterfall", Proxy: true},
		{ID: "VELOCITY", DisplayName: "Velocity", Proxy: true},
	}
}

// Normalize upper-cases an identifier and trims surrounding space.
func Normalize(id string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(id))
}

// FindPlatform finds a platform by identifier, ignoring case.
func FindPlatform(id string) (Platform, error) {
	normalized := Normalize(id)
	for _, p := range PredefinedPlatforms() {
		if p.ID == normalized {
			return p, nil
		}
	}
	return Platform{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPlatform, id, strings.Join(IDs(), ", "))
}

// ResolvePlatforms converts identifiers to platforms, preserving order.
func ResolvePlatforms(ids []string) ([]Platform, error) {
	result := make([]Platform, 0, len(ids))
	for _, id := range ids {
		p, err := FindPlatform(id)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

// IDs returns the wire identifiers of all known platforms.
func IDs() []string {
	platforms := PredefinedPlatforms()
	ids := make([]string, len(platforms))
	for i, p := range platforms {
		ids[i] = p.ID
	}
	return ids
}
