package provider

import "strings"

// EventStatus is the two-state outcome every provider payload collapses to.
type EventStatus string

const (
	StatusCompleted EventStatus = "completed"
	StatusReversed  EventStatus = "reversed"
)

// Event is the canonical callback shape produced by Normalize. TrackingID is
// the completion's click ID when the provider echoes it back; UserID+OfferID
// are the fallback resolution pair.
type Event struct {
	Provider      string
	TrackingID    string
	UserID        string
	OfferID       string
	TransactionID string
	Payout        int64
	Status        EventStatus
}

// FieldMap lists, per canonical field, the payload keys a provider is known
// to use, in priority order.
type FieldMap struct {
	TrackingID    []string
	UserID        []string
	OfferID       []string
	Payout        []string
	TransactionID []string
}

// StatusRule maps a provider's own status encoding onto the two-state enum:
// any of Params carrying any of Reversed (case-insensitive) means reversed,
// everything else means completed. An empty Reversed list models networks
// that only ever report success.
type StatusRule struct {
	Params   []string
	Reversed []string
}

// SignatureRule describes how a provider signs its postbacks: the payload
// param carrying the signature, the payload fields (in order) that are
// concatenated with the shared secret, and the hash algorithm.
type SignatureRule struct {
	Param  string
	Fields []string
	Sep    string
	Algo   string // "md5", "sha256", "hmac-sha256"
}

// Adapter is one provider's complete postback schema. New providers are
// added by extending the registry table, not by new code branches.
type Adapter struct {
	Name      string
	Fields    FieldMap
	Status    StatusRule
	Signature SignatureRule
}

var genericAdapter = Adapter{
	Name: "generic",
	Fields: FieldMap{
		TrackingID:    []string{"tracking_id", "click_id", "trans_id", "transaction_id", "txid"},
		UserID:        []string{"user_id", "uid", "sub_id", "subid", "userid", "s1"},
		OfferID:       []string{"offer_id", "oid", "campaign_id"},
		Payout:        []string{"payout", "amount", "points", "reward", "revenue"},
		TransactionID: []string{"trans_id", "transaction_id", "transactionID", "txid", "tx_id"},
	},
	Status: StatusRule{
		Params:   []string{"status", "type", "action"},
		Reversed: []string{"2", "chargeback", "reversed", "refund"},
	},
	Signature: SignatureRule{
		Param: "signature",
		Algo:  "hmac-sha256",
	},
}

var registry = map[string]Adapter{
	"kiwiwall": {
		Name: "kiwiwall",
		Fields: FieldMap{
			TrackingID:    []string{"trans_id"},
			UserID:        []string{"sub_id"},
			OfferID:       []string{"offer_id"},
			Payout:        []string{"amount"},
			TransactionID: []string{"trans_id"},
		},
		Status: StatusRule{
			Params:   []string{"status"},
			Reversed: []string{"2", "chargeback"},
		},
		Signature: SignatureRule{
			Param:  "signature",
			Fields: []string{"sub_id", "trans_id", "amount"},
			Algo:   "md5",
		},
	},
	"timewall": {
		Name: "timewall",
		Fields: FieldMap{
			TrackingID:    []string{"trans_id", "transactionID"},
			UserID:        []string{"uid"},
			OfferID:       []string{"offer_id"},
			Payout:        []string{"amount", "revenue"},
			TransactionID: []string{"trans_id", "transactionID"},
		},
		Status: StatusRule{
			Params:   []string{"type"},
			Reversed: []string{"chargeback"},
		},
		Signature: SignatureRule{
			Param:  "hash",
			Fields: []string{"uid", "trans_id", "amount"},
			Algo:   "sha256",
		},
	},
	"cpx": {
		Name: "cpx",
		Fields: FieldMap{
			TrackingID:    []string{"trans_id"},
			UserID:        []string{"uid", "user_id"},
			OfferID:       []string{"offer_id"},
			Payout:        []string{"amount", "amount_local"},
			TransactionID: []string{"trans_id"},
		},
		Status: StatusRule{
			Params:   []string{"status"},
			Reversed: []string{"2"},
		},
		Signature: SignatureRule{
			Param:  "hash",
			Fields: []string{"trans_id", "uid"},
			Sep:    "-",
			Algo:   "md5",
		},
	},
}

// AdapterFor returns the registered adapter for a provider, falling back to
// the generic alias resolver for networks we have no dedicated schema for.
func AdapterFor(name string) Adapter {
	if a, ok := registry[strings.ToLower(name)]; ok {
		return a
	}

	a := genericAdapter
	if name != "" {
		a.Name = strings.ToLower(name)
	}
	return a
}
