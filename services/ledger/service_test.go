package ledger

import (
	"context"
	"testing"
	"time"

	"rewardsplane/pkg/errutil"
	"rewardsplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &OfferCompletion{}, &Transaction{}, &Balance{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node}), db
}

func seedPending(t *testing.T, db *gorm.DB, id, userID, offerID string, payout int64) {
	t.Helper()

	require.NoError(t, db.Create(&OfferCompletion{
		ID:        id,
		UserID:    userID,
		OfferID:   offerID,
		Provider:  "kiwiwall",
		Payout:    payout,
		Status:    CompletionPending,
		CreatedAt: time.Now(),
	}).Error)
}

func countTransactions(t *testing.T, db *gorm.DB, userID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&Transaction{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func TestCreditCompletion(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	res, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{
		Provider:              "kiwiwall",
		ExternalTransactionID: "T1",
	})
	require.NoError(t, err)

	require.True(t, res.Applied)
	require.Equal(t, int64(100), res.Payout)
	require.Equal(t, int64(100), res.NewPoints)

	var completion OfferCompletion
	require.NoError(t, db.First(&completion, "id = ?", "clk-1").Error)
	require.Equal(t, CompletionCredited, completion.Status)
	require.Equal(t, "T1", completion.ExternalTransactionID)
	require.NotNil(t, completion.CreditedAt)
	require.NotNil(t, completion.CompletedAt)

	balance, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance.Points)
	require.Equal(t, int64(100), balance.TotalEarnings)

	require.Equal(t, int64(1), countTransactions(t, db, "u1"))
}

func TestCreditCompletionIdempotentReplay(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	first, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{Provider: "kiwiwall"})
	require.NoError(t, err)
	require.True(t, first.Applied)

	// The replayed postback succeeds but changes nothing.
	second, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{Provider: "kiwiwall"})
	require.NoError(t, err)
	require.False(t, second.Applied)
	require.Equal(t, int64(100), second.NewPoints)

	balance, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(100), balance.Points)
	require.Equal(t, int64(1), countTransactions(t, db, "u1"))
}

func TestCreditCompletionCallbackPayoutWins(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	res, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{Payout: 120, Provider: "kiwiwall"})
	require.NoError(t, err)
	require.Equal(t, int64(120), res.Payout)
	require.Equal(t, int64(120), res.NewPoints)
}

func TestCreditCompletionNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreditCompletion(context.Background(), "missing", CreditInput{})
	require.Error(t, err)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusNotFound, be.Code)
}

func TestCreditAfterReversedIsNoOp(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	_, err := svc.ReverseCompletion(ctx, "clk-1", ReverseInput{Provider: "kiwiwall"})
	require.NoError(t, err)

	// A late completed event must never resurrect a reversed completion.
	res, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{Provider: "kiwiwall"})
	require.NoError(t, err)
	require.False(t, res.Applied)

	var completion OfferCompletion
	require.NoError(t, db.First(&completion, "id = ?", "clk-1").Error)
	require.Equal(t, CompletionReversed, completion.Status)
	require.Equal(t, int64(0), countTransactions(t, db, "u1"))
}

func TestReversePendingIsStatusOnly(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	res, err := svc.ReverseCompletion(ctx, "clk-1", ReverseInput{Provider: "kiwiwall"})
	require.NoError(t, err)
	require.False(t, res.DebitApplied)

	var completion OfferCompletion
	require.NoError(t, db.First(&completion, "id = ?", "clk-1").Error)
	require.Equal(t, CompletionReversed, completion.Status)
	require.NotNil(t, completion.ReversedAt)

	balance, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance.Points)
	require.Equal(t, int64(0), countTransactions(t, db, "u1"))
}

func TestReverseCreditedFloorsBalanceAtZero(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	_, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{Provider: "kiwiwall"})
	require.NoError(t, err)

	// The user spent 40 points before the chargeback arrived.
	require.NoError(t, db.Model(&Balance{}).Where("user_id = ?", "u1").Update("points", 60).Error)

	res, err := svc.ReverseCompletion(ctx, "clk-1", ReverseInput{Provider: "kiwiwall"})
	require.NoError(t, err)

	require.True(t, res.DebitApplied)
	require.Equal(t, int64(100), res.Amount)
	require.Equal(t, int64(0), res.NewPoints)

	balance, err := svc.GetBalance(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(0), balance.Points)

	// The ledger records the full payout even though the balance only
	// absorbed part of it.
	var debit Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", "u1", TypeDebit).First(&debit).Error)
	require.Equal(t, int64(100), debit.Amount)
	require.Equal(t, SourceOfferwall, debit.Source)
	require.Equal(t, "clk-1", debit.SourceID)
}

func TestReverseCompletionIdempotentReplay(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	_, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{Provider: "kiwiwall"})
	require.NoError(t, err)

	first, err := svc.ReverseCompletion(ctx, "clk-1", ReverseInput{Provider: "kiwiwall"})
	require.NoError(t, err)
	require.True(t, first.DebitApplied)

	second, err := svc.ReverseCompletion(ctx, "clk-1", ReverseInput{Provider: "kiwiwall"})
	require.NoError(t, err)
	require.False(t, second.DebitApplied)

	// One credit, one debit, no matter how often the chargeback replays.
	require.Equal(t, int64(2), countTransactions(t, db, "u1"))
}

func TestAddAdCredit(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	res, err := svc.AddAdCredit(ctx, AdCreditInput{
		UserID:   "u1",
		Points:   7,
		AdViewID: "view-1",
		Metadata: map[string]any{"base": 5},
	})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, int64(7), res.NewPoints)

	var entry Transaction
	require.NoError(t, db.Where("user_id = ?", "u1").First(&entry).Error)
	require.Equal(t, TypeCredit, entry.Type)
	require.Equal(t, SourceAdWatch, entry.Source)
	require.Equal(t, "view-1", entry.SourceID)

	_, err = svc.AddAdCredit(ctx, AdCreditInput{UserID: "u1", Points: 0, AdViewID: "view-2"})
	require.Error(t, err)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusBadRequest, be.Code)
}

func TestVerifyChain(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	seedPending(t, db, "clk-1", "u1", "O1", 100)

	_, err := svc.CreditCompletion(ctx, "clk-1", CreditInput{Provider: "kiwiwall"})
	require.NoError(t, err)

	_, err = svc.AddAdCredit(ctx, AdCreditInput{UserID: "u1", Points: 5, AdViewID: "view-1"})
	require.NoError(t, err)

	valid, err := svc.VerifyChain(ctx, "u1")
	require.NoError(t, err)
	require.True(t, valid)

	// Tampering with an amount breaks the recomputed hash.
	require.NoError(t, db.Model(&Transaction{}).
		Where("user_id = ? AND source = ?", "u1", SourceAdWatch).
		Update("amount", 500).Error)

	valid, err = svc.VerifyChain(ctx, "u1")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestVerifyChainEmptyLedger(t *testing.T) {
	svc, _ := newTestService(t)

	valid, err := svc.VerifyChain(context.Background(), "nobody")
	require.NoError(t, err)
	require.True(t, valid)
}

func TestGetBalanceUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	balance, err := svc.GetBalance(context.Background(), "nobody")
	require.NoError(t, err)
	require.Equal(t, "nobody", balance.UserID)
	require.Equal(t, int64(0), balance.Points)
}
