package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"school-secretary/internal/app"
	"school-secretary/internal/config"
	"school-secretary/internal/domain"
	"school-secretary/internal/export"
	"school-secretary/internal/httpx"
	"school-secretary/internal/logging"
	"school-secretary/internal/providers/canvas"
	"school-secretary/internal/tz"
)

type options struct {
	userID  string
	courses []int64
	dryRun  bool
	csvPath string
	tz      string
}

func parseOptions(args []string, defaultTZ string) (options, error) {
	fs := flag.NewFlagSet("syncassignments", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		o       options
		courses string
	)
	fs.StringVar(&o.userID, "user", "", "enrolled user id whose calendar receives the events")
	fs.StringVar(&courses, "course", "", "comma separated Canvas course ids")
	fs.BoolVar(&o.dryRun, "dry-run", false, "fetch and export only, no calendar writes")
	fs.StringVar(&o.csvPath, "csv", "", "dry-run csv output path, - for stdout")
	fs.StringVar(&o.tz, "tz", defaultTZ, "IANA zone for csv and dry-run output")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	ids, err := parseCourseIDs(courses)
	if err != nil {
		return options{}, err
	}
	o.courses = ids

	if !o.dryRun && o.userID == "" {
		return options{}, errors.New("-user is required unless -dry-run is set")
	}
	if !o.dryRun && o.csvPath != "" {
		return options{}, errors.New("-csv only applies with -dry-run")
	}
	if o.dryRun && o.csvPath == "" {
		o.csvPath = "-"
	}
	return o, nil
}

func parseCourseIDs(s string) ([]int64, error) {
	var out []int64
	seen := map[int64]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid course id %q", part)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, errors.New("-course is required")
	}
	return out, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	opts, err := parseOptions(os.Args[1:], cfg.DefaultTimezone)
	if err != nil {
		logger.Fatal("flags", zap.Error(err))
	}
	loc, err := tz.Load(opts.tz)
	if err != nil {
		logger.Fatal("timezone", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if opts.dryRun {
		if err := dryRun(ctx, cfg, opts, loc, logger); err != nil {
			logger.Fatal("dry run", zap.Error(err))
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	u, err := a.Users.Get(ctx, opts.userID)
	if err != nil {
		logger.Fatal("load user", zap.String("user_id", opts.userID), zap.Error(err))
	}

	failed := 0
	results := map[int64]any{}
	for _, courseID := range opts.courses {
		res, err := a.Sync.SyncCourse(ctx, &u, courseID)
		if err != nil {
			logger.Error("sync course", zap.Int64("course_id", courseID), zap.Error(err))
			failed++
			continue
		}
		failed += res.FailedCount
		results[courseID] = res
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(results)

	if failed > 0 {
		os.Exit(1)
	}
}

func dryRun(ctx context.Context, cfg config.Config, opts options, loc *time.Location, logger *zap.Logger) error {
	cv := canvas.New(cfg.CanvasBaseURL, cfg.CanvasToken)
	cv.HTTP = httpx.NewClient(cfg.HTTPTimeout)
	cv.Policy = httpx.DefaultPolicy().WithAttempts(cfg.HTTPMaxAttempts)
	src := canvas.Provider{C: cv}

	var all []domain.Assignment
	for _, courseID := range opts.courses {
		recs, err := src.ListAssignments(ctx, courseID)
		if err != nil {
			return fmt.Errorf("course %d: %w", courseID, err)
		}
		logger.Info("fetched", zap.Int64("course_id", courseID), zap.Int("assignments", len(recs)))
		all = append(all, recs...)
	}

	if opts.csvPath == "-" {
		return export.WriteAssignmentsCSV(os.Stdout, all, loc)
	}
	if dir := filepath.Dir(opts.csvPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(opts.csvPath)
	if err != nil {
		return err
	}
	if err := export.WriteAssignmentsCSV(f, all, loc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("wrote csv", zap.String("path", opts.csvPath), zap.Int("rows", len(all)))
	return nil
}
