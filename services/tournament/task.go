package tournament

import (
	"context"
	"encoding/json"
	"fmt"

	"rewardsplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Notifier is how the credit paths feed the tournament score without
// blocking on it. The asynq implementation is the production wiring; tests
// substitute a fake.
type Notifier interface {
	NotifyPoints(ctx context.Context, userID, sourceKind string) error
}

type AddPointsPayload struct {
	UserID string `json:"user_id"`
	Source string `json:"source"`
}

type AsynqNotifier struct {
	client *asynq.Client
}

type NotifierParams struct {
	fx.In
	Client *asynq.Client
}

func NewAsynqNotifier(p NotifierParams) Notifier {
	return &AsynqNotifier{client: p.Client}
}

func (n *AsynqNotifier) NotifyPoints(ctx context.Context, userID, sourceKind string) error {
	payload, err := json.Marshal(AddPointsPayload{UserID: userID, Source: sourceKind})
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskname.TournamentAddPoints, payload)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
		return fmt.Errorf("enqueue tournament points: %w", err)
	}

	return nil
}

type Task struct {
	svc *Service
}

type TaskParams struct {
	fx.In
	Service *Service
}

func NewTask(p TaskParams) *Task {
	return &Task{svc: p.Service}
}

func (t *Task) HandleAddPoints(ctx context.Context, task *asynq.Task) error {
	var payload AddPointsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	zap.L().Info("processing tournament points task",
		zap.String("user_id", payload.UserID),
		zap.String("source", payload.Source),
	)

	return t.svc.AddPoints(ctx, payload.UserID, payload.Source)
}

func (t *Task) HandlePrune(ctx context.Context, task *asynq.Task) error {
	deleted, err := t.svc.Prune(ctx, 0)
	if err != nil {
		return err
	}

	zap.L().Info("pruned tournament entries", zap.Int64("deleted", deleted))
	return nil
}

func RegisterHandlers(mux *asynq.ServeMux, task *Task) {
	mux.HandleFunc(taskname.TournamentAddPoints, task.HandleAddPoints)
	mux.HandleFunc(taskname.TournamentPrune, task.HandlePrune)
}
