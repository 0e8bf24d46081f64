package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"school-secretary/internal/domain"
	"school-secretary/internal/logging"
	"school-secretary/internal/mappers"
	"school-secretary/internal/providers"
	"school-secretary/internal/tz"
)

// DefaultDelay is the pause between records that touched the calendar.
const DefaultDelay = 100 * time.Millisecond

// Result is the outcome of one batch. Skipped records appear in no field.
type Result struct {
	SuccessCount int      `json:"successCount"`
	FailedCount  int      `json:"failedCount"`
	Errors       []string `json:"errors"`
}

// Engine upserts assignment events one record at a time.
type Engine struct {
	Calendar providers.CalendarBackend
	Delay    time.Duration

	// Sleep waits between records; nil uses a context-aware timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *zap.Logger
}

func NewEngine(cal providers.CalendarBackend, delay time.Duration, logger *zap.Logger) *Engine {
	return &Engine{Calendar: cal, Delay: delay, Logger: logger}
}

// SyncAssignments creates or updates one event per dated record, in input
// order. Record failures are counted and collected; only invalid input and
// context cancellation are returned as errors.
func (e *Engine) SyncAssignments(ctx context.Context, accessToken string, records []domain.Assignment, timeZone string) (Result, error) {
	res := Result{Errors: []string{}}

	loc, err := validate(accessToken, records, timeZone)
	if err != nil {
		return res, err
	}

	log := logging.OrNop(e.Logger)
	corr := Correlator{Backend: e.Calendar, Logger: e.Logger}

	touched := false
	for i, a := range records {
		if !a.HasDueDate() {
			log.Debug("skip assignment without due date", zap.Int64("assignment_id", a.ID), zap.String("title", a.Title))
			continue
		}

		if touched {
			if err := e.sleep(ctx); err != nil {
				return res, err
			}
		}
		touched = true

		if err := e.upsert(ctx, corr, accessToken, a, loc); err != nil {
			res.FailedCount++
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", a.Title, err.Error()))
			log.Warn("assignment sync failed",
				zap.Int("index", i+1),
				zap.Int("total", len(records)),
				zap.Int64("assignment_id", a.ID),
				zap.String("title", a.Title),
				zap.Error(err),
			)
			continue
		}
		res.SuccessCount++
		log.Debug("assignment synced", zap.Int("index", i+1), zap.Int("total", len(records)), zap.Int64("assignment_id", a.ID))
	}

	log.Info("sync finished",
		zap.Int("success", res.SuccessCount),
		zap.Int("failed", res.FailedCount),
		zap.Int("records", len(records)),
	)
	return res, nil
}

func (e *Engine) upsert(ctx context.Context, corr Correlator, accessToken string, a domain.Assignment, loc *time.Location) error {
	ev := mappers.AssignmentToEvent(a, loc)

	if id, ok := corr.FindExisting(ctx, accessToken, a.ID); ok {
		return e.Calendar.Update(ctx, accessToken, id, ev)
	}
	_, err := e.Calendar.Create(ctx, accessToken, ev)
	return err
}

func (e *Engine) sleep(ctx context.Context) error {
	if e.Delay <= 0 {
		return ctx.Err()
	}
	if e.Sleep != nil {
		return e.Sleep(ctx, e.Delay)
	}
	t := time.NewTimer(e.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validate(accessToken string, records []domain.Assignment, timeZone string) (*time.Location, error) {
	if accessToken == "" {
		return nil, &domain.ValidationError{Field: "access_token", Msg: "required"}
	}
	loc, err := tz.Load(timeZone)
	if err != nil {
		return nil, err
	}
	for i, a := range records {
		if a.HasDueDate() && a.ID <= 0 {
			return nil, &domain.ValidationError{Field: "assignment id", Msg: fmt.Sprintf("record %d (%q) has no id", i+1, a.Title)}
		}
	}
	return loc, nil
}
