package provider

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"rewardsplane/pkg/config"
	"rewardsplane/pkg/errutil"

	"github.com/stretchr/testify/require"
)

func newTestValidator(providers map[string]config.Provider) *Validator {
	return NewValidator(ValidatorParams{Cfg: &config.Config{Providers: providers}})
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestValidateKiwiwallSignature(t *testing.T) {
	v := newTestValidator(map[string]config.Provider{
		"kiwiwall": {Secret: "s3cret"},
	})

	payload := map[string]string{
		"sub_id":   "u42",
		"trans_id": "T1",
		"amount":   "100",
		"status":   "1",
	}
	payload["signature"] = md5Hex("u42" + "T1" + "100" + "s3cret")

	require.NoError(t, v.Validate("kiwiwall", payload))

	payload["amount"] = "999"
	err := v.Validate("kiwiwall", payload)
	require.Error(t, err)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusUnauthorized, be.Code)
}

func TestValidateTimewallSHA256(t *testing.T) {
	v := newTestValidator(map[string]config.Provider{
		"timewall": {Secret: "tw-secret"},
	})

	payload := map[string]string{
		"uid":      "u7",
		"trans_id": "TW-7",
		"amount":   "42",
	}
	payload["hash"] = sha256Hex("u7" + "TW-7" + "42" + "tw-secret")

	require.NoError(t, v.Validate("timewall", payload))
}

func TestValidateCPXDashSeparator(t *testing.T) {
	v := newTestValidator(map[string]config.Provider{
		"cpx": {Secret: "cpx-secret"},
	})

	payload := map[string]string{
		"trans_id": "T9",
		"uid":      "u1",
		"amount":   "30",
	}
	payload["hash"] = md5Hex("T9-u1-cpx-secret")

	require.NoError(t, v.Validate("cpx", payload))
}

func TestValidateSkipsWhenNoSecretConfigured(t *testing.T) {
	v := newTestValidator(nil)

	// No secret means skip: development setups accept unsigned callbacks.
	require.NoError(t, v.Validate("kiwiwall", map[string]string{
		"trans_id":  "T1",
		"signature": "garbage",
	}))
}

func TestValidateMissingSignatureParam(t *testing.T) {
	v := newTestValidator(map[string]config.Provider{
		"kiwiwall": {Secret: "s3cret"},
	})

	err := v.Validate("kiwiwall", map[string]string{
		"sub_id":   "u42",
		"trans_id": "T1",
		"amount":   "100",
	})
	require.Error(t, err)

	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, errutil.StatusUnauthorized, be.Code)
}

func TestValidateUnknownProviderHMACOverSortedPayload(t *testing.T) {
	v := newTestValidator(map[string]config.Provider{
		"newnet": {Secret: "nn-secret"},
	})

	payload := map[string]string{
		"click_id": "clk-1",
		"uid":      "u1",
		"payout":   "10",
	}

	mac := hmac.New(sha256.New, []byte("nn-secret"))
	fmt.Fprint(mac, "click_id=clk-1&payout=10&uid=u1")
	payload["signature"] = hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, v.Validate("newnet", payload))
}

func TestValidateConfigOverridesAdapterRule(t *testing.T) {
	v := newTestValidator(map[string]config.Provider{
		"kiwiwall": {
			Secret:          "s3cret",
			SignatureParam:  "sig",
			SignatureFields: []string{"trans_id"},
			SignatureAlgo:   "sha256",
		},
	})

	payload := map[string]string{
		"sub_id":   "u42",
		"trans_id": "T1",
		"amount":   "100",
	}
	payload["sig"] = sha256Hex("T1" + "s3cret")

	require.NoError(t, v.Validate("kiwiwall", payload))
}
