package offerwall

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rewardsplane/pkg/errutil"
	"rewardsplane/services/ledger"
	"rewardsplane/services/provider"
	"rewardsplane/services/tournament"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	normalizer *provider.Normalizer
	validator  *provider.Validator
	ledger     *ledger.Service
	notifier   tournament.Notifier
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Normalizer *provider.Normalizer
	Validator  *provider.Validator
	Ledger     *ledger.Service
	Notifier   tournament.Notifier `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		normalizer: p.Normalizer,
		validator:  p.Validator,
		ledger:     p.Ledger,
		notifier:   p.Notifier,
	}
}

// CreateCompletionInput is the collaborator contract for starting an offer:
// the caller supplies the click ID it hands to the network, which becomes
// the completion's identity and the postback tracking key.
type CreateCompletionInput struct {
	ClickID  string
	UserID   string
	OfferID  string
	Provider string
	Payout   int64
	Title    string
}

func (s *Service) CreateCompletion(ctx context.Context, input CreateCompletionInput) (*ledger.OfferCompletion, error) {
	if input.ClickID == "" || input.UserID == "" || input.OfferID == "" {
		return nil, errutil.ValidationFailed("clickId, userId and offerId are required", nil)
	}
	if input.Payout < 0 {
		return nil, errutil.ValidationFailed("payout must not be negative", nil)
	}

	meta, _ := json.Marshal(map[string]string{"title": input.Title})
	completion := &ledger.OfferCompletion{
		ID:        input.ClickID,
		UserID:    input.UserID,
		OfferID:   input.OfferID,
		Provider:  input.Provider,
		Payout:    input.Payout,
		Status:    ledger.CompletionPending,
		Metadata:  datatypes.JSON(meta),
		CreatedAt: time.Now(),
	}

	var existing ledger.OfferCompletion
	err := s.db.WithContext(ctx).Where("id = ?", input.ClickID).First(&existing).Error
	if err == nil {
		return nil, errutil.Conflict("completion with this clickId already exists", nil)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(completion).Error; err != nil {
		return nil, err
	}

	return completion, nil
}

// Resolve locates the completion a callback refers to: exact tracking-key
// lookup first, then the (user, offer, pending) fallback for networks that
// drop the click ID. The fallback is deterministic oldest-first.
func (s *Service) Resolve(ctx context.Context, event *provider.Event) (*ledger.OfferCompletion, error) {
	if event.TrackingID != "" {
		var completion ledger.OfferCompletion
		err := s.db.WithContext(ctx).Where("id = ?", event.TrackingID).First(&completion).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("no completion for tracking id", err)
		}
		if err != nil {
			return nil, err
		}
		return &completion, nil
	}

	if event.UserID == "" || event.OfferID == "" {
		return nil, errutil.BadRequest("callback carries neither tracking id nor user/offer pair", nil)
	}

	var completion ledger.OfferCompletion
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND offer_id = ? AND status = ?", event.UserID, event.OfferID, ledger.CompletionPending).
		Order("created_at ASC").
		First(&completion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("no pending completion for user and offer", err)
	}
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

type CallbackResult struct {
	Status     provider.EventStatus
	Completion string
	Applied    bool
	NewPoints  int64
}

// HandleCallback runs the full postback pipeline: normalize, authenticate,
// resolve, then credit or reverse. Idempotent replays come back as
// Applied=false with a nil error so the HTTP layer can still answer 200 and
// stop the network's retries.
func (s *Service) HandleCallback(ctx context.Context, providerName string, payload map[string]string) (*CallbackResult, error) {
	event, err := s.normalizer.Normalize(providerName, payload)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(event.Provider, payload); err != nil {
		return nil, err
	}

	completion, err := s.Resolve(ctx, event)
	if err != nil {
		return nil, err
	}

	zapLog := zap.L().With(
		zap.String("provider", event.Provider),
		zap.String("completion_id", completion.ID),
		zap.String("user_id", completion.UserID),
		zap.String("status", string(event.Status)),
	)

	result := &CallbackResult{Status: event.Status, Completion: completion.ID}

	if event.Status == provider.StatusReversed {
		rev, err := s.ledger.ReverseCompletion(ctx, completion.ID, ledger.ReverseInput{
			Provider: event.Provider,
		})
		if err != nil {
			return nil, err
		}
		result.Applied = rev.DebitApplied
		result.NewPoints = rev.NewPoints
		return result, nil
	}

	credit, err := s.ledger.CreditCompletion(ctx, completion.ID, ledger.CreditInput{
		Payout:                event.Payout,
		Provider:              event.Provider,
		ExternalTransactionID: event.TransactionID,
	})
	if err != nil {
		return nil, err
	}

	result.Applied = credit.Applied
	result.NewPoints = credit.NewPoints

	if credit.Applied && s.notifier != nil {
		if err := s.notifier.NotifyPoints(ctx, completion.UserID, "offerwall"); err != nil {
			// The competitive score is secondary; never bounce a credited
			// postback over it.
			zapLog.Error("failed to enqueue tournament points", zap.Error(err))
		}
	}

	return result, nil
}

// ListCompletions is the admin read surface.
func (s *Service) ListCompletions(ctx context.Context, status string, limit int) ([]ledger.OfferCompletion, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var completions []ledger.OfferCompletion
	if err := query.Find(&completions).Error; err != nil {
		return nil, err
	}
	return completions, nil
}
