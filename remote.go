package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// signatureWindow is how far a signed request's timestamp may drift.
const signatureWindow = 5 * time.Minute

// ResetRequest is the payload of a remote session reset.
type ResetRequest struct {
	Operator  string `json:"operator"`
	Kiosk     string `json:"kiosk"`
	Timestamp uint64 `json:"timestamp"`
	Signature string `json:"signature"`
}

func signRequest(base64Secret, operator, kiosk string, ts uint64) (string, string, error) {
	secret, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return "", "", fmt.Errorf("invalid base64 secret: %w", err)
	}
	if len(secret) == 0 {
		return "", "", fmt.Errorf("secret cannot be empty")
	}

	msg := make([]byte, 0, len(operator)+len(kiosk)+8)
	msg = append(msg, []byte(operator)...)
	msg = append(msg, []byte(kiosk)...)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], ts)
	msg = append(msg, tsBuf[:]...)

	mac := hmac.New(sha256.New, secret)
	mac.Write(msg)
	sum := mac.Sum(nil)

	return hex.EncodeToString(sum), base64.StdEncoding.EncodeToString(sum), nil
}

func verifySignature(base64Secret, operator, kiosk string, ts uint64, providedSig string) error {
	sigHex, sigBase64, err := signRequest(base64Secret, operator, kiosk, ts)
	if err != nil {
		return err
	}

	// Try hex
	if decoded, err := hex.DecodeString(providedSig); err == nil {
		expected, _ := hex.DecodeString(sigHex)
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}

	// Try base64
	if decoded, err := base64.StdEncoding.DecodeString(providedSig); err == nil {
		expected, _ := base64.StdEncoding.DecodeString(sigBase64)
		if subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}

	return fmt.Errorf("signature verification failed")
}

// verifyReset checks a reset payload addressed to clientID. With no
// secret configured, remote resets are refused.
func verifyReset(secret, clientID string, payload []byte, now time.Time) (*ResetRequest, error) {
	if secret == "" {
		return nil, fmt.Errorf("remote reset disabled (no control secret configured)")
	}

	var req ResetRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("decode reset request: %w", err)
	}
	if req.Kiosk != clientID {
		return nil, fmt.Errorf("reset addressed to %q, this kiosk is %q", req.Kiosk, clientID)
	}
	if err := verifySignature(secret, req.Operator, req.Kiosk, req.Timestamp, req.Signature); err != nil {
		return nil, err
	}

	ts := time.Unix(int64(req.Timestamp), 0)
	if now.Before(ts.Add(-signatureWindow)) || now.After(ts.Add(signatureWindow)) {
		return nil, fmt.Errorf("reset request timestamp out of range")
	}
	return &req, nil
}
