// Package tz resolves IANA zone names. The zone database is embedded so
// lookups do not depend on the host's zoneinfo.
package tz

import (
	"strings"
	"time"
	_ "time/tzdata"

	"school-secretary/internal/domain"
)

// Load resolves name, returning a *domain.ValidationError for empty or unknown zones.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ValidationError{Field: "timezone", Msg: "required"}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &domain.ValidationError{Field: "timezone", Msg: "unknown zone " + name}
	}
	return loc, nil
}
