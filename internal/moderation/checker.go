package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"room-coordinator/pkg/logger"
)

// Verdict is the moderation collaborator's answer for one message.
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
}

// Checker decides whether a message may be delivered. The coordinator only
// relays the verdict; the policy lives with the external service.
type Checker interface {
	Check(ctx context.Context, text string) Verdict
}

// AllowAll is used when no moderation endpoint is configured.
type AllowAll struct{}

func (AllowAll) Check(context.Context, string) Verdict { return Verdict{} }

// HTTPChecker posts messages to a REST moderation endpoint.
type HTTPChecker struct {
	url    string
	client *http.Client
}

func NewHTTPChecker(url string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Check asks the collaborator for a verdict. Moderation is advisory: any
// transport or decode failure lets the message through.
func (c *HTTPChecker) Check(ctx context.Context, text string) Verdict {
	body, err := json.Marshal(map[string]string{"message": text})
	if err != nil {
		return Verdict{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Error("Moderation check failed: %v", err)
		return Verdict{}
	}
	defer resp.Body.Close()

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		logger.Error("Moderation verdict decode failed: %v", err)
		return Verdict{}
	}
	return verdict
}
