package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"league-engine/internal/domain"
	"league-engine/internal/tier"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu      sync.Mutex
	changes []domain.LeagueChange
	err     error
}

func (s *recordingSender) Send(_ context.Context, change domain.LeagueChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, change)
	return s.err
}

func (s *recordingSender) sent() []domain.LeagueChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LeagueChange(nil), s.changes...)
}

func change(userID string) domain.LeagueChange {
	return domain.LeagueChange{
		UserID:      userID,
		WeekID:      "2026-10-05",
		OldTier:     tier.Gold,
		NewTier:     tier.Platinum,
		OldDivision: 3,
		NewDivision: 1,
		Reward:      300,
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 16, 0, zerolog.Nop())
	d.Start()

	for _, id := range []string{"a", "b", "c"} {
		d.OnUserLeagueChanged(context.Background(), change(id))
	}
	require.NoError(t, d.Stop(context.Background()))

	got := sender.sent()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].UserID)
	assert.Equal(t, "c", got[2].UserID)
	assert.Zero(t, d.Dropped())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 1, 0, zerolog.Nop())

	// not started: the single slot fills and the rest are dropped
	d.OnUserLeagueChanged(context.Background(), change("a"))
	d.OnUserLeagueChanged(context.Background(), change("b"))
	d.OnUserLeagueChanged(context.Background(), change("c"))
	assert.Equal(t, uint64(2), d.Dropped())

	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	assert.Len(t, sender.sent(), 1)
}

func TestDispatcherSwallowsSenderErrors(t *testing.T) {
	sender := &recordingSender{err: errors.New("webhook down")}
	d := NewDispatcher(sender, 4, 0, zerolog.Nop())
	d.Start()

	assert.NotPanics(t, func() {
		d.OnUserLeagueChanged(context.Background(), change("a"))
		d.OnUserLeagueChanged(context.Background(), change("b"))
	})
	require.NoError(t, d.Stop(context.Background()))
	assert.Len(t, sender.sent(), 2)
}

func TestDispatcherAfterStopDrops(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 4, 0, zerolog.Nop())
	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))

	assert.NotPanics(t, func() {
		d.OnUserLeagueChanged(context.Background(), change("late"))
	})
	assert.Equal(t, uint64(1), d.Dropped())
}

func TestWebhookSenderPostsJSON(t *testing.T) {
	received := make(chan webhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var p webhookPayload
		assert.NoError(t, json.Unmarshal(body, &p))
		received <- p
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, NewWebhookSender(srv.URL).Send(ctx, change("u1")))

	p := <-received
	assert.Equal(t, eventLeagueChanged, p.Event)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "gold", p.OldTier)
	assert.Equal(t, "platinum", p.NewTier)
	assert.Equal(t, int64(300), p.Reward)
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL).Send(context.Background(), change("u1"))
	assert.ErrorContains(t, err, "502")
}
