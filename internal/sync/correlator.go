package sync

import (
	"context"

	"go.uber.org/zap"

	"school-secretary/internal/logging"
	"school-secretary/internal/providers"
)

// Correlator finds the calendar event previously created for an assignment.
type Correlator struct {
	Backend providers.CalendarBackend
	Logger  *zap.Logger
}

// FindExisting returns the tagged event id. Lookup failures are reported as
// not found so the record falls through to a create.
func (c Correlator) FindExisting(ctx context.Context, accessToken string, assignmentID int64) (string, bool) {
	id, found, err := c.Backend.FindByExternalID(ctx, accessToken, assignmentID)
	if err != nil {
		logging.OrNop(c.Logger).Debug("event lookup failed, treating as not found",
			zap.Int64("assignment_id", assignmentID), zap.Error(err))
		return "", false
	}
	if !found || id == "" {
		return "", false
	}
	return id, true
}
