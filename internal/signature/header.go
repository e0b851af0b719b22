package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeaderName is the request header carrying the processor signature.
const HeaderName = "Stripe-Signature"

const (
	keyTimestamp = "t"
	schemeV1     = "v1"
)

type parsedHeader struct {
	timestamp  time.Time
	signatures [][]byte
}

// parseHeader reads "t=<unix>,v1=<hex>[,v1=<hex>...][,v0=<hex>]".
// Unknown schemes are ignored, and so are v1 values that are not valid hex.
func parseHeader(raw string) (*parsedHeader, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMissingHeader
	}

	h := &parsedHeader{}
	haveTimestamp := false

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, ErrInvalidHeader
		}

		switch key {
		case keyTimestamp:
			secs, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, ErrInvalidHeader
			}
			h.timestamp = time.Unix(secs, 0)
			haveTimestamp = true
		case schemeV1:
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			h.signatures = append(h.signatures, sig)
		}
	}

	if !haveTimestamp {
		return nil, ErrInvalidHeader
	}
	if len(h.signatures) == 0 {
		return nil, ErrNoSignatures
	}
	return h, nil
}

// ComputeSignature returns HMAC-SHA256(secret, "{t}.{payload}").
func ComputeSignature(t time.Time, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(t.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// Sign produces a header value in the processor's format for payload signed at t.
func Sign(payload []byte, secret string, t time.Time) string {
	return fmt.Sprintf("%s=%d,%s=%s", keyTimestamp, t.Unix(), schemeV1, hex.EncodeToString(ComputeSignature(t, payload, secret)))
}
