// Package platform holds the exchange gateways and the helpers they share.
package platform

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// NewHTTPClient returns the client every gateway uses. Per-call deadlines
// come from the context; the client timeout is only a backstop.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// Do sends req and returns the body of a 2xx response. Transport failures are
// wrapped with domain.ErrVenueUnreachable; non-2xx statuses go through
// CheckStatus with msgOf extracting the venue's error text from the body.
func Do(client *http.Client, req *http.Request, venue string, msgOf func([]byte) string) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w: %w", venue, domain.ErrVenueUnreachable, ctxErr)
		}
		return nil, fmt.Errorf("%s: %w: %w", venue, domain.ErrVenueUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: read response: %w", venue, domain.ErrVenueUnreachable, err)
	}

	msg := ""
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msgOf != nil {
			msg = msgOf(body)
		}
		if msg == "" {
			msg = string(truncate(body, 200))
		}
	}
	if err := CheckStatus(venue, resp.StatusCode, msg); err != nil {
		return nil, err
	}
	return body, nil
}

// CheckStatus maps non-2xx HTTP status codes to domain errors.
func CheckStatus(venue string, statusCode int, msg string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s: %w: %s", venue, domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests, http.StatusTeapot:
		// Binance answers 418 once an IP has been banned for ignoring 429s.
		return fmt.Errorf("%s: %w: %s", venue, domain.ErrRateLimited, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w: %s", venue, domain.ErrVenueUnreachable, domain.ErrNotFound, msg)
	default:
		return fmt.Errorf("%s: %w: HTTP %d: %s", venue, domain.ErrVenueUnreachable, statusCode, msg)
	}
}

// ErrMissingCredentials is returned by signed calls on a gateway built
// without an API key pair.
func ErrMissingCredentials(venue string) error {
	return fmt.Errorf("%s: %w: api credentials not configured", venue, domain.ErrUnauthorized)
}

// ParseDecimal parses a venue price or size string. An empty string is 0.
func ParseDecimal(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}

// FormatQty renders a quantity without exponent notation, as venues require.
func FormatQty(qty float64) string {
	return decimal.NewFromFloat(qty).String()
}

// ParseLevels converts [["price","size"], ...] arrays into price levels,
// keeping at most depth entries when depth > 0.
func ParseLevels(raw [][]string, depth int) ([]domain.PriceLevel, error) {
	if depth > 0 && len(raw) > depth {
		raw = raw[:depth]
	}
	out := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("malformed level %v", lvl)
		}
		p, err := ParseDecimal(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", lvl[0], err)
		}
		s, err := ParseDecimal(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", lvl[1], err)
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
