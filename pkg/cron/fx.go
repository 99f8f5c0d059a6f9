package cron

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"axiombot/pkg/logger"
)

// Module is the fx module for cron. Other modules contribute jobs to the
// "jobs" value group.
var Module = fx.Module("cron",
	fx.Provide(NewScheduler),
	fx.Invoke(func(*Scheduler) {}),
)

type schedulerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Log       *logger.Logger
	Jobs      []Job `group:"jobs"`
}

// NewScheduler creates the scheduler with every contributed job.
func NewScheduler(p schedulerParams) *Scheduler {
	s := New(p.Log)
	for _, job := range p.Jobs {
		if job.Spec == "" {
			continue
		}
		if err := s.Add(job); err != nil {
			p.Log.Error("Failed to schedule job", zap.String("name", job.Name), zap.Error(err))
		}
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
	return s
}

// AsJob annotates a constructor so its Job joins the "jobs" group.
func AsJob(f any) any {
	return fx.Annotate(f, fx.ResultTags(`group:"jobs"`))
}
