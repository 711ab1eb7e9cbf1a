package provider

import (
	"math"
	"strconv"
	"strings"

	"rewardsplane/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Normalizer struct {
	node *snowflake.Node
}

type NormalizerParams struct {
	fx.In
	Node *snowflake.Node
}

func NewNormalizer(p NormalizerParams) *Normalizer {
	return &Normalizer{node: p.Node}
}

// Normalize maps an arbitrary provider payload onto the canonical Event
// shape using the provider's adapter table. It fails with a BadRequest when
// neither a tracking ID nor the (user, offer) pair can be resolved.
func (n *Normalizer) Normalize(providerName string, payload map[string]string) (*Event, error) {
	adapter := AdapterFor(providerName)

	event := &Event{
		Provider:      adapter.Name,
		TrackingID:    firstValue(payload, adapter.Fields.TrackingID),
		UserID:        firstValue(payload, adapter.Fields.UserID),
		OfferID:       firstValue(payload, adapter.Fields.OfferID),
		TransactionID: firstValue(payload, adapter.Fields.TransactionID),
	}

	if event.TrackingID == "" && (event.UserID == "" || event.OfferID == "") {
		return nil, errutil.BadRequest("callback missing tracking id and user/offer pair", nil)
	}

	payout, err := parsePayout(firstValue(payload, adapter.Fields.Payout))
	if err != nil {
		return nil, errutil.BadRequest("callback payout is not a number", err)
	}
	event.Payout = payout

	event.Status = resolveStatus(adapter.Status, payload)

	// Only mint a transaction ID when the network genuinely omits one; a
	// generated value must never become the idempotency key for retries.
	if event.TransactionID == "" {
		event.TransactionID = n.node.Generate().String()
		zap.L().Warn("provider payload omitted transaction id, generated one",
			zap.String("provider", adapter.Name),
			zap.String("transaction_id", event.TransactionID),
		)
	}

	return event, nil
}

func firstValue(payload map[string]string, aliases []string) string {
	for _, alias := range aliases {
		if v, ok := payload[alias]; ok && v != "" {
			return v
		}
	}
	return ""
}

func resolveStatus(rule StatusRule, payload map[string]string) EventStatus {
	raw := strings.ToLower(strings.TrimSpace(firstValue(payload, rule.Params)))
	for _, reversed := range rule.Reversed {
		if raw == reversed {
			return StatusReversed
		}
	}
	return StatusCompleted
}

// parsePayout accepts integer or decimal encodings and truncates toward
// zero. Chargeback payloads sometimes encode the amount as negative; the
// sign is dropped because direction comes from the status, not the amount.
func parsePayout(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}

	return int64(math.Floor(math.Abs(f))), nil
}
