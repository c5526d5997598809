package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	telegramAPI = "https://api.telegram.org"

	// Telegram rejects sendMessage bodies longer than this many characters.
	maxMessageRunes = 4096
	notifyAttempts  = 4
)

// TelegramNotifier delivers alerts and command replies to a single operator chat.
type TelegramNotifier struct {
	token   string
	chatID  string
	client  *http.Client
	apiBase string
}

// apiError is a non-OK Bot API response.
type apiError struct {
	Method      string
	StatusCode  int
	Description string
	RetryAfter  time.Duration
}

func (e *apiError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// permanent reports whether resending the same request cannot succeed.
func (e *apiError) permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// NewTelegramNotifier builds a notifier for the given bot and chat. proxyURL
// is optional and applies to both sending and polling.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			log.Printf("[WARN] ignoring invalid telegram proxy %q: %v", proxyURL, err)
		} else {
			tr.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		token:   botToken,
		chatID:  chatID,
		client:  &http.Client{Transport: tr},
		apiBase: telegramAPI,
	}
}

// Send posts text to the operator chat once, splitting it when it exceeds
// the Bot API message limit.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, maxMessageRunes) {
		req := sendMessageRequest{ChatID: t.chatID, Text: part, ParseMode: "HTML", DisableWebPagePreview: true}
		if err := t.call(ctx, 30*time.Second, "sendMessage", req, nil); err != nil {
			return err
		}
	}
	return nil
}

// Notify sends text, retrying transient failures with exponential backoff
// or the server's retry_after hint.
func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	var err error
	for attempt := 1; attempt <= notifyAttempts; attempt++ {
		if err = t.Send(ctx, text); err == nil {
			return nil
		}
		wait := time.Duration(1<<(attempt-1)) * time.Second
		var ae *apiError
		if errors.As(err, &ae) {
			if ae.permanent() {
				return err
			}
			if ae.RetryAfter > 0 {
				wait = ae.RetryAfter
			}
		}
		if attempt == notifyAttempts {
			break
		}
		log.Printf("[WARN] telegram notify attempt %d/%d failed: %v, retrying in %v", attempt, notifyAttempts, err, wait)
		if !sleepCtx(ctx, wait) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("telegram notify gave up after %d attempts: %w", notifyAttempts, err)
}

// call invokes a Bot API method. A nil body issues a GET with no payload.
// out, when non-nil, receives the decoded result field.
func (t *TelegramNotifier) call(ctx context.Context, timeout time.Duration, method string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	} else {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode %s: %w", method, err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var ar apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&ar)
	if resp.StatusCode != http.StatusOK || (decodeErr == nil && !ar.OK) {
		ae := &apiError{Method: method, StatusCode: resp.StatusCode, Description: ar.Description}
		if ae.Description == "" {
			ae.Description = http.StatusText(resp.StatusCode)
		}
		if ar.Parameters != nil && ar.Parameters.RetryAfter > 0 {
			ae.RetryAfter = time.Duration(ar.Parameters.RetryAfter) * time.Second
		}
		return ae
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", method, decodeErr)
	}
	if out != nil && len(ar.Result) > 0 {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// splitMessage breaks text into chunks of at most limit runes, preferring
// to cut at a newline.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > 0; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
