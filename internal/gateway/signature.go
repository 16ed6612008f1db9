package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/bookshop-fulfillment/payment-service/internal/domain"
)

// signatureTolerance bounds how old a signed timestamp may be before the
// payload is treated as a replay.
const signatureTolerance = 5 * time.Minute

// VerifySignature checks the gateway's signature header against the exact raw
// payload bytes. Header format: "t=<unix>,v1=<hex hmac>", where the MAC is
// HMAC-SHA256 over "<unix>.<payload>" keyed with the webhook secret.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return &domain.SignatureError{Reason: "missing signature header"}
	}

	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return &domain.SignatureError{Reason: "malformed signature header"}
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return &domain.SignatureError{Reason: "invalid signature timestamp"}
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return &domain.SignatureError{Reason: "signature timestamp outside tolerance"}
	}

	expected := ComputeSignature(payload, timestamp, secret)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return &domain.SignatureError{Reason: "signature mismatch"}
}

// ComputeSignature produces the hex MAC for a payload at a given timestamp.
// Exported so webhook tests can sign their own payloads.
func ComputeSignature(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
