package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramAPI is the Bot API root.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID. It uses a default HTTP client with a 40-second timeout, long enough for
// the bot's long polls.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiURL: DefaultTelegramAPI,
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 40 * time.Second},
	}
}

// WithAPIURL points the sender at another Bot API root.
func (t *TelegramSender) WithAPIURL(u string) *TelegramSender {
	t.apiURL = strings.TrimRight(u, "/")
	return t
}

// Send posts a message to the configured chat. The title is rendered in bold
// using Markdown.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat id not configured")
	}
	return t.SendText(ctx, t.chatID, fmt.Sprintf("*%s*\n%s", title, message), "Markdown")
}

// SendText posts text to chatID. parseMode may be empty for plain text.
func (t *TelegramSender) SendText(ctx context.Context, chatID, text, parseMode string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	_, err := t.call(ctx, "sendMessage", payload)
	return err
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}

// call invokes a Bot API method and returns the "result" field.
func (t *TelegramSender) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.apiURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read %s response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram: %s: unexpected status %d: %s", method, resp.StatusCode, truncate(respBody, 1024))
	}

	var env struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("telegram: decode %s response: %w", method, err)
	}
	if !env.OK {
		return nil, fmt.Errorf("telegram: %s: %s", method, env.Description)
	}
	return env.Result, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
