package tournament

import (
	"context"
	"time"

	"rewardsplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// pruneEnqueuer is the slice of *asynq.Client the scheduler needs; tests
// substitute a recorder.
type pruneEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler enqueues the weekly prune task. Entries older than the retention
// window only ever get deleted through this loop.
type Scheduler struct {
	client pruneEnqueuer
}

type SchedulerParams struct {
	fx.In
	Client *asynq.Client
}

func NewScheduler(p SchedulerParams) *Scheduler {
	return &Scheduler{client: p.Client}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	var cancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go s.run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started tournament prune scheduler")

	for {
		now := time.Now()
		next := nextPruneTime(now)

		zap.L().Info("[Scheduler] next prune scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", next.Sub(now)),
		)

		select {
		case <-time.After(next.Sub(now)):
			s.enqueuePrune(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) enqueuePrune(ctx context.Context) {
	task := asynq.NewTask(taskname.TournamentPrune, nil)
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue("low")); err != nil {
		zap.L().Error("[Scheduler] failed to enqueue prune task", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] enqueued prune task")
}

// nextPruneTime is the next Monday 03:00 local time strictly after now, just
// past the ISO week rollover.
func nextPruneTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
	next = next.AddDate(0, 0, (int(time.Monday)-int(now.Weekday())+7)%7)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
