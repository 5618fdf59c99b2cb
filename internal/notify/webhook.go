package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"league-engine/internal/domain"

	"github.com/valyala/fasthttp"
)

const eventLeagueChanged = "user_league_changed"

type webhookPayload struct {
	Event       string `json:"event"`
	UserID      string `json:"user_id"`
	WeekID      string `json:"week_id"`
	OldTier     string `json:"old_tier"`
	NewTier     string `json:"new_tier"`
	OldDivision int    `json:"old_division"`
	NewDivision int    `json:"new_division"`
	Reward      int64  `json:"reward"`
}

// WebhookSender POSTs each change as JSON to a fixed URL.
type WebhookSender struct {
	url    string
	client *fasthttp.Client
}

func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url: url,
		client: &fasthttp.Client{
			MaxConnsPerHost:     16,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (s *WebhookSender) Send(ctx context.Context, change domain.LeagueChange) error {
	body, err := json.Marshal(webhookPayload{
		Event:       eventLeagueChanged,
		UserID:      change.UserID,
		WeekID:      change.WeekID,
		OldTier:     change.OldTier.String(),
		NewTier:     change.NewTier.String(),
		OldDivision: change.OldDivision,
		NewDivision: change.NewDivision,
		Reward:      change.Reward,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = s.client.DoDeadline(req, resp, deadline)
	} else {
		err = s.client.Do(req, resp)
	}
	if err != nil {
		return fmt.Errorf("failed to post notification: %w", err)
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("webhook error: %d", code)
	}
	return nil
}
