package gcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the Cloud Translation v2 endpoint.
const DefaultBaseURL = "https://translation.googleapis.com/language/translate/v2"

// Request is one translation batch for a single target language. Items is
// ordered; position is the only channel correlating request items with
// response items, the API returns no identifiers.
type Request struct {
	// Q is the ordered list of (tokenized) texts to translate.
	Q []string `json:"q"`
	// Source is the master language code.
	Source string `json:"source"`
	// Target is the target language code.
	Target string `json:"target"`
	// Format is always "text"; HTML entity handling is not wanted.
	Format string `json:"format"`
}

// Response carries the translated texts in request order.
type Response struct {
	// Items[i] is the translation of Request.Q[i].
	Items []string
}

// TransportError wraps a network or HTTP-level failure. It aborts only the
// affected call's scope.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("translation transport failure (HTTP %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("translation transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a response that does not match the
// documented data.translations[].translatedText shape. Raw carries the
// payload for diagnostics.
type MalformedResponseError struct {
	Reason string
	Raw    []byte
}

func (e *MalformedResponseError) Error() string {
	raw := string(e.Raw)
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("malformed translation response: %s: %s", e.Reason, raw)
}

// CountMismatchError reports that the service returned a different number
// of translations than requested. Fatal for the affected language only.
type CountMismatchError struct {
	Target string
	Want   int
	Got    int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("translation count mismatch for %s: sent %d items, received %d",
		e.Target, e.Want, e.Got)
}

// apiEnvelope is the documented response shape, plus the error object the
// API uses for in-band failures (sometimes under a 200-level status).
type apiEnvelope struct {
	Data *struct {
		Translations []struct {
			TranslatedText *string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Client submits translation batches to the Cloud Translation API.
type Client struct {
	// Session owns the bearer token.
	Session *Session
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
	// HTTPClient overrides the HTTP client. Default: 60s timeout.
	HTTPClient *http.Client
}

// NewClient creates a client around an auth session.
func NewClient(session *Session) *Client {
	return &Client{Session: session}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// Translate submits one request batch and returns the validated response.
//
// An absent token triggers a synchronous refresh and ErrTokenRefreshed;
// so does an authentication failure reported by the service, whether as a
// transport status or in the response body. The caller aborts the current
// action for an operator retry in both cases.
func (c *Client) Translate(ctx context.Context, req *Request) (*Response, error) {
	token := c.Session.Token()
	if token == "" {
		if err := c.Session.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("no access token and refresh failed: %w", err)
		}
		return nil, ErrTokenRefreshed
	}

	if req.Format == "" {
		req.Format = "text"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding translation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, c.refreshAfterAuthFailure(ctx, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &MalformedResponseError{Reason: "response is not JSON", Raw: body}
	}

	// The API reports some auth failures in-band, occasionally under a
	// 200-level transport status. Treat them like a transport-level 401.
	if envelope.Error != nil {
		if envelope.Error.Status == "UNAUTHENTICATED" ||
			envelope.Error.Code == http.StatusUnauthorized ||
			envelope.Error.Code == http.StatusForbidden {
			return nil, c.refreshAfterAuthFailure(ctx, envelope.Error.Code)
		}
		return nil, &TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("API error %d (%s): %s", envelope.Error.Code, envelope.Error.Status, envelope.Error.Message),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status: %s", http.StatusText(resp.StatusCode)),
		}
	}

	if envelope.Data == nil || envelope.Data.Translations == nil {
		return nil, &MalformedResponseError{Reason: "missing data.translations", Raw: body}
	}

	items := make([]string, 0, len(envelope.Data.Translations))
	for i, tr := range envelope.Data.Translations {
		if tr.TranslatedText == nil {
			return nil, &MalformedResponseError{
				Reason: fmt.Sprintf("translation %d has no translatedText", i),
				Raw:    body,
			}
		}
		items = append(items, *tr.TranslatedText)
	}

	if len(items) != len(req.Q) {
		return nil, &CountMismatchError{Target: req.Target, Want: len(req.Q), Got: len(items)}
	}

	return &Response{Items: items}, nil
}

func (c *Client) refreshAfterAuthFailure(ctx context.Context, status int) error {
	c.Session.Invalidate()
	if err := c.Session.Refresh(ctx); err != nil {
		return fmt.Errorf("authentication failed (status %d) and token refresh failed: %w", status, err)
	}
	return ErrTokenRefreshed
}
