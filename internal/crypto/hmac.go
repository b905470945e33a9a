// Package crypto provides request signing for the venue REST APIs and the
// sealed credential vault.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// HMACAuth holds the credentials required for HMAC-authenticated venue
// requests. Passphrase is only used by KuCoin.
type HMACAuth struct {
	Key        string
	Secret     string
	Passphrase string
}

// Empty reports whether no usable key pair is configured.
func (h *HMACAuth) Empty() bool {
	return h == nil || h.Key == "" || h.Secret == ""
}

// BinanceSignature signs a Binance query string (including timestamp) and
// returns the hex digest to append as the "signature" parameter.
func (h *HMACAuth) BinanceSignature(query string) string {
	return hmacSHA256Hex([]byte(h.Secret), query)
}

// BybitHeaders returns the v5 auth headers for a request whose payload is
// the raw query string (GET) or JSON body (POST).
//
// Returned header keys:
//   - X-BAPI-API-KEY
//   - X-BAPI-TIMESTAMP
//   - X-BAPI-RECV-WINDOW
//   - X-BAPI-SIGN
func (h *HMACAuth) BybitHeaders(payload, recvWindow string) map[string]string {
	return h.BybitHeadersAt(payload, recvWindow, time.Now().UnixMilli())
}

// BybitHeadersAt is like BybitHeaders but lets the caller supply the Unix
// millisecond timestamp.
func (h *HMACAuth) BybitHeadersAt(payload, recvWindow string, unixMS int64) map[string]string {
	ts := strconv.FormatInt(unixMS, 10)
	sig := hmacSHA256Hex([]byte(h.Secret), ts+h.Key+recvWindow+payload)
	return map[string]string{
		"X-BAPI-API-KEY":     h.Key,
		"X-BAPI-TIMESTAMP":   ts,
		"X-BAPI-RECV-WINDOW": recvWindow,
		"X-BAPI-SIGN":        sig,
	}
}

// KucoinHeaders returns the key-version-2 auth headers. The signature is
// HMAC-SHA256(secret, timestamp+method+path+body) encoded as base64 and the
// passphrase is itself HMAC-signed with the secret.
//
// Returned header keys:
//   - KC-API-KEY
//   - KC-API-SIGN
//   - KC-API-TIMESTAMP
//   - KC-API-PASSPHRASE
//   - KC-API-KEY-VERSION
func (h *HMACAuth) KucoinHeaders(method, path, body string) map[string]string {
	return h.KucoinHeadersAt(method, path, body, time.Now().UnixMilli())
}

// KucoinHeadersAt is like KucoinHeaders but lets the caller supply the Unix
// millisecond timestamp.
func (h *HMACAuth) KucoinHeadersAt(method, path, body string, unixMS int64) map[string]string {
	ts := strconv.FormatInt(unixMS, 10)
	secret := []byte(h.Secret)
	return map[string]string{
		"KC-API-KEY":         h.Key,
		"KC-API-SIGN":        hmacSHA256Base64(secret, ts+method+path+body),
		"KC-API-TIMESTAMP":   ts,
		"KC-API-PASSPHRASE":  hmacSHA256Base64(secret, h.Passphrase),
		"KC-API-KEY-VERSION": "2",
	}
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as a base64 standard-encoded string.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// lower-case hex digest.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
