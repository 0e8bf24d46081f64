package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"school-secretary/internal/domain"
	"school-secretary/internal/logging"
	"school-secretary/internal/providers"
)

// Credentials yields a usable access token for a user.
type Credentials interface {
	GetValidAccessToken(ctx context.Context, u *domain.DigestUser) (string, error)
}

// Service syncs one course for one enrolled user.
type Service struct {
	Source providers.AssignmentSource
	Creds  Credentials
	Engine *Engine
	Logger *zap.Logger
}

func (s *Service) SyncCourse(ctx context.Context, u *domain.DigestUser, courseID int64) (Result, error) {
	if courseID <= 0 {
		return Result{Errors: []string{}}, &domain.ValidationError{Field: "course_id", Msg: "must be positive"}
	}

	token, err := s.Creds.GetValidAccessToken(ctx, u)
	if err != nil {
		return Result{Errors: []string{}}, err
	}

	records, err := s.Source.ListAssignments(ctx, courseID)
	if err != nil {
		return Result{Errors: []string{}}, fmt.Errorf("sync: list assignments from %s: %w", s.Source.Name(), err)
	}
	logging.OrNop(s.Logger).Info("syncing course",
		zap.String("user", u.ID),
		zap.Int64("course_id", courseID),
		zap.Int("records", len(records)),
	)

	return s.Engine.SyncAssignments(ctx, token, records, u.TimeZone)
}
