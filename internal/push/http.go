package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type httpPayload struct {
	To           string `json:"to"`
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"notification"`
}

// HTTPProvider posts notifications to an FCM-style HTTP endpoint.
type HTTPProvider struct {
	client *http.Client
	url    string
	key    string
}

func NewHTTPProvider(url, key string) *HTTPProvider {
	return &HTTPProvider{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		key:    key,
	}
}

func (p *HTTPProvider) Push(ctx context.Context, deviceToken, title, body string) error {
	payload := httpPayload{To: deviceToken}
	payload.Notification.Title = title
	payload.Notification.Body = body

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+p.key)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push provider returned %s", resp.Status)
	}
	return nil
}
