package workflow

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/docgen_backend/models"
	"github.com/sirupsen/logrus"
)

// StaleJobSweeper reconciles jobs left Running by a crashed or killed
// process. A Running job untouched past the staleness threshold is marked
// Failed so callers polling it are never stuck forever.
type StaleJobSweeper struct {
	Jobs   models.JobStore
	Logger *logrus.Logger

	Interval  time.Duration
	Staleness time.Duration
	// Cooldown is the shorter re-arm delay after a sweep error.
	Cooldown time.Duration
}

func NewStaleJobSweeper(jobs models.JobStore, logger *logrus.Logger) *StaleJobSweeper {
	return &StaleJobSweeper{
		Jobs:      jobs,
		Logger:    logger,
		Interval:  time.Duration(intEnv("JOB_SWEEP_INTERVAL_MINUTES", 5)) * time.Minute,
		Staleness: time.Duration(intEnv("JOB_STALE_AFTER_MINUTES", 30)) * time.Minute,
		Cooldown:  time.Duration(intEnv("JOB_SWEEP_COOLDOWN_SECONDS", 30)) * time.Second,
	}
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Run loops until ctx is cancelled, re-arming after Cooldown when a sweep
// fails transiently.
func (s *StaleJobSweeper) Run(ctx context.Context) {
	for {
		delay := s.Interval
		if err := s.SweepOnce(ctx); err != nil {
			if s.Logger != nil {
				s.Logger.WithField("module", "StaleJobSweeper").Error("sweep failed: " + err.Error())
			}
			delay = s.Cooldown
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// SweepOnce fails every stale Running job. Jobs that complete concurrently
// lose the Fail race harmlessly (the conditional transition rejects it).
func (s *StaleJobSweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.Staleness)
	stale, err := s.Jobs.FindStaleRunning(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, job := range stale {
		if err := s.Jobs.Fail(ctx, job.ID, "generation did not finish in time; reclaimed by reconciliation sweep"); err != nil {
			if s.Logger != nil {
				s.Logger.WithFields(logrus.Fields{
					"module": "StaleJobSweeper",
					"job_id": job.ID,
				}).Warn("could not reclaim stale job: " + err.Error())
			}
			continue
		}
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{
				"module":        "StaleJobSweeper",
				"job_id":        job.ID,
				"document_type": job.DocumentType,
				"stale_since":   job.UpdatedAt,
			}).Info("reclaimed stale running job")
		}
	}
	return nil
}
