// Package scheduler runs the unattended morning forecast: when nobody has
// prepared a forecast by hand, a daily job builds the upcoming business
// days with the configured default capacity, predicts and persists.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/kitchencopilot/backend/internal/forecast"
	"github.com/kitchencopilot/backend/internal/predict"
	"github.com/kitchencopilot/backend/internal/store"
)

// Scheduler triggers the daily auto-forecast job.
type Scheduler struct {
	scheduler *gocron.Scheduler
	builder   *forecast.Builder
	engine    *predict.Engine
	store     store.Store

	days            int
	defaultCapacity int
}

func New(builder *forecast.Builder, engine *predict.Engine, st store.Store, days, defaultCapacity int) *Scheduler {
	return &Scheduler{
		scheduler:       gocron.NewScheduler(time.UTC),
		builder:         builder,
		engine:          engine,
		store:           st,
		days:            days,
		defaultCapacity: defaultCapacity,
	}
}

// Start schedules the job for early weekday mornings and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(1).Day().At("06:00").Do(func() {
		now := time.Now().UTC()
		switch now.Weekday() {
		case time.Saturday, time.Sunday:
			return
		}

		log.Println("scheduler: running auto-forecast job")
		if err := s.RunOnce(context.Background(), now); err != nil {
			log.Printf("scheduler: auto-forecast failed: %v", err)
			return
		}
		log.Println("scheduler: auto-forecast completed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce builds, predicts and persists a forecast starting at start.
func (s *Scheduler) RunOnce(ctx context.Context, start time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	rows, err := s.builder.Build(ctx, start, s.days)
	if err != nil {
		return err
	}

	for i := range rows {
		capacity := s.defaultCapacity
		rows[i].ExpectedCapacity = &capacity
	}

	predicted, err := s.engine.Predict(ctx, rows)
	if err != nil {
		return err
	}

	res := s.store.AppendPredictions(ctx, predicted)
	if !res.OK {
		log.Printf("scheduler: persist failed: %s", res.Message)
		return nil
	}
	log.Printf("scheduler: persisted %d prediction rows", res.Rows)
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
