package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rewardsplane/pkg/errutil"
	"rewardsplane/pkg/sequence"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const genesisHash = "GENESIS"

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		seq:  p.Seq,
	}
}

// CreditInput carries what a validated completed-callback contributes to the
// credit. Payout 0 means the network did not supply an amount and the
// completion's original payout is authoritative.
type CreditInput struct {
	Payout                int64
	Provider              string
	ExternalTransactionID string
}

type CreditResult struct {
	// Applied is false when the call was an idempotent replay (already
	// credited) or the completion was already reversed; either way the
	// caller reports success to the network so retries stop.
	Applied   bool
	Payout    int64
	NewPoints int64
}

type ReverseInput struct {
	Provider string
}

type ReverseResult struct {
	// DebitApplied is true only for the credited→reversed path where the
	// balance was actually debited.
	DebitApplied bool
	Amount       int64
	NewPoints    int64
}

// CreditCompletion applies a completed event to a pending completion: the
// guarded pending→credited transition, the balance increment and the ledger
// append happen inside one transaction under a row lock, so a replayed or
// interleaved postback can never double-credit.
func (s *Service) CreditCompletion(ctx context.Context, completionID string, input CreditInput) (*CreditResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("completion_id", completionID),
		zap.String("provider", input.Provider),
	)

	result := &CreditResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completion, err := s.lockCompletion(tx, completionID)
		if err != nil {
			return err
		}

		switch completion.Status {
		case CompletionCredited:
			zapLog.Info("completion already credited, treating replay as no-op")
			return s.fillCurrentPoints(tx, completion.UserID, result)
		case CompletionReversed:
			zapLog.Warn("completed event for reversed completion, ignoring")
			return s.fillCurrentPoints(tx, completion.UserID, result)
		}

		payout := input.Payout
		if payout <= 0 {
			payout = completion.Payout
		}

		now := time.Now()
		if err := tx.Model(&OfferCompletion{}).
			Where("id = ?", completion.ID).
			Updates(map[string]any{
				"status":                  CompletionCredited,
				"external_transaction_id": input.ExternalTransactionID,
				"completed_at":            now,
				"credited_at":             now,
			}).Error; err != nil {
			return err
		}

		newPoints, err := s.adjustBalance(tx, completion.UserID, payout, payout)
		if err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]string{
			"provider":                input.Provider,
			"external_transaction_id": input.ExternalTransactionID,
			"offer_id":                completion.OfferID,
		})
		if err := s.appendEntry(ctx, tx, &Transaction{
			UserID:   completion.UserID,
			Type:     TypeCredit,
			Amount:   payout,
			Source:   SourceOfferwall,
			SourceID: completion.ID,
			Metadata: datatypes.JSON(meta),
		}); err != nil {
			return err
		}

		result.Applied = true
		result.Payout = payout
		result.NewPoints = newPoints
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied {
		zapLog.Info("completion credited", zap.Int64("payout", result.Payout), zap.Int64("new_points", result.NewPoints))
	}

	return result, nil
}

// ReverseCompletion applies a reversed event. pending→reversed only records
// the status; credited→reversed also debits the user, flooring the balance
// at zero while the ledger keeps the full payout amount.
func (s *Service) ReverseCompletion(ctx context.Context, completionID string, input ReverseInput) (*ReverseResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("completion_id", completionID),
		zap.String("provider", input.Provider),
	)

	result := &ReverseResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completion, err := s.lockCompletion(tx, completionID)
		if err != nil {
			return err
		}

		if completion.Status == CompletionReversed {
			zapLog.Info("completion already reversed, treating replay as no-op")
			return nil
		}

		wasCredited := completion.Status == CompletionCredited

		now := time.Now()
		if err := tx.Model(&OfferCompletion{}).
			Where("id = ?", completion.ID).
			Updates(map[string]any{
				"status":      CompletionReversed,
				"reversed_at": now,
			}).Error; err != nil {
			return err
		}

		if !wasCredited {
			zapLog.Info("reversal of never-credited completion, status only")
			return nil
		}

		balance, err := s.lockBalance(tx, completion.UserID)
		if err != nil {
			return err
		}

		newPoints := balance.Points - completion.Payout
		if newPoints < 0 {
			newPoints = 0
		}

		if err := tx.Model(&Balance{}).
			Where("id = ?", balance.ID).
			Updates(map[string]any{
				"points":     newPoints,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]string{
			"reason":   "reversal",
			"provider": input.Provider,
		})
		if err := s.appendEntry(ctx, tx, &Transaction{
			UserID:   completion.UserID,
			Type:     TypeDebit,
			Amount:   completion.Payout,
			Source:   SourceOfferwall,
			SourceID: completion.ID,
			Metadata: datatypes.JSON(meta),
		}); err != nil {
			return err
		}

		result.DebitApplied = true
		result.Amount = completion.Payout
		result.NewPoints = newPoints
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.DebitApplied {
		zapLog.Info("credited completion reversed", zap.Int64("amount", result.Amount), zap.Int64("new_points", result.NewPoints))
	}

	return result, nil
}

// AdCreditInput credits a first-party ad reward. The ad view ID is the
// idempotency key: one credit per watched session.
type AdCreditInput struct {
	UserID   string
	Points   int64
	AdViewID string
	Metadata map[string]any
}

func (s *Service) AddAdCredit(ctx context.Context, input AdCreditInput) (*CreditResult, error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	if input.Points <= 0 {
		return nil, errutil.BadRequest("ad credit amount must be > 0", nil)
	}

	result := &CreditResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		newPoints, err := s.adjustBalance(tx, input.UserID, input.Points, input.Points)
		if err != nil {
			return err
		}

		meta, _ := json.Marshal(input.Metadata)
		if err := s.appendEntry(ctx, tx, &Transaction{
			UserID:   input.UserID,
			Type:     TypeCredit,
			Amount:   input.Points,
			Source:   SourceAdWatch,
			SourceID: input.AdViewID,
			Metadata: datatypes.JSON(meta),
		}); err != nil {
			return err
		}

		result.Applied = true
		result.Payout = input.Points
		result.NewPoints = newPoints
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Service) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	var balance Balance
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Balance{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var entries []Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var entries []Transaction
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// VerifyChain walks a user's ledger oldest-first and recomputes the hash
// chain.
func (s *Service) VerifyChain(ctx context.Context, userID string) (bool, error) {
	var entries []Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return false, err
	}

	lastHash := genesisHash
	for i := range entries {
		entry := &entries[i]
		if entry.Hash != entry.GenerateHash() || entry.PreviousHash != lastHash {
			return false, nil
		}
		lastHash = entry.Hash
	}

	return true, nil
}

func (s *Service) lockCompletion(tx *gorm.DB, completionID string) (*OfferCompletion, error) {
	var completion OfferCompletion
	err := lockForUpdate(tx).Where("id = ?", completionID).First(&completion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("completion not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

func (s *Service) lockBalance(tx *gorm.DB, userID string) (*Balance, error) {
	var balance Balance
	err := lockForUpdate(tx).Where("user_id = ?", userID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("balance not found", err)
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// adjustBalance upserts the user's balance row and applies the deltas under
// the transaction's row lock, returning the resulting points total.
func (s *Service) adjustBalance(tx *gorm.DB, userID string, pointsDelta, earningsDelta int64) (int64, error) {
	var balance Balance
	err := lockForUpdate(tx).Where("user_id = ?", userID).First(&balance).Error
	now := time.Now()

	if errors.Is(err, gorm.ErrRecordNotFound) {
		balance = Balance{
			ID:            s.node.Generate().String(),
			UserID:        userID,
			Points:        pointsDelta,
			TotalEarnings: earningsDelta,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.Create(&balance).Error; err != nil {
			return 0, err
		}
		return balance.Points, nil
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Model(&Balance{}).
		Where("id = ?", balance.ID).
		Updates(map[string]any{
			"points":         gorm.Expr("points + ?", pointsDelta),
			"total_earnings": gorm.Expr("total_earnings + ?", earningsDelta),
			"updated_at":     now,
		}).Error; err != nil {
		return 0, err
	}

	return balance.Points + pointsDelta, nil
}

// appendEntry chains the new entry to the user's latest one and writes it.
// ID, code, timestamps and hashes are filled here.
func (s *Service) appendEntry(ctx context.Context, tx *gorm.DB, entry *Transaction) error {
	entry.ID = s.node.Generate().String()
	entry.Status = "completed"
	entry.CreatedAt = time.Now()

	if s.seq != nil {
		code, err := s.seq.NextTransactionCode(ctx)
		if err != nil {
			// The display code is cosmetic; a sequence outage must not
			// fail the credit.
			zap.L().Warn("failed to generate transaction code", zap.Error(err))
		} else {
			entry.TransactionCode = code
		}
	}

	var last Transaction
	err := lockForUpdate(tx).
		Where("user_id = ?", entry.UserID).
		Order("created_at DESC").
		First(&last).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry.PreviousHash = genesisHash
	case err != nil:
		return err
	default:
		entry.PreviousHash = last.Hash
	}

	entry.Hash = entry.GenerateHash()

	return tx.Create(entry).Error
}

// lockForUpdate requests a row-level lock on dialects that support it.
// SQLite (tests) serializes writers on its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// fillCurrentPoints populates the replay result with the user's current
// total so a duplicate postback still gets a truthful response body.
func (s *Service) fillCurrentPoints(tx *gorm.DB, userID string, result *CreditResult) error {
	var balance Balance
	err := tx.Where("user_id = ?", userID).First(&balance).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	result.NewPoints = balance.Points
	return nil
}
