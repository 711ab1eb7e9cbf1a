package tournament

import (
	"context"
	"testing"
	"time"

	"rewardsplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestSchedulerEnqueuesPruneTask(t *testing.T) {
	rec := &recordingEnqueuer{}
	s := &Scheduler{client: rec}

	s.enqueuePrune(context.Background())

	require.Len(t, rec.tasks, 1)
	require.Equal(t, taskname.TournamentPrune, rec.tasks[0].Type())
}

func TestNextPruneTime(t *testing.T) {
	loc := time.UTC

	// Wednesday rolls forward to the following Monday 03:00.
	wed := time.Date(2026, 8, 26, 12, 0, 0, 0, loc)
	require.Equal(t, time.Date(2026, 8, 31, 3, 0, 0, 0, loc), nextPruneTime(wed))

	// Monday before 03:00 runs the same day.
	monEarly := time.Date(2026, 8, 31, 2, 59, 0, 0, loc)
	require.Equal(t, time.Date(2026, 8, 31, 3, 0, 0, 0, loc), nextPruneTime(monEarly))

	// Monday at or after 03:00 waits a full week.
	monLate := time.Date(2026, 8, 31, 3, 0, 0, 0, loc)
	require.Equal(t, time.Date(2026, 9, 7, 3, 0, 0, 0, loc), nextPruneTime(monLate))
}
