package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-cargo/internal/repo"
)

func TestComputeSignatureDeterministic(t *testing.T) {
	body := []byte(`{"a":1}`)
	sig1 := ComputeSignature("secret", 1700000000, "ev-1", body)
	sig2 := ComputeSignature("secret", 1700000000, "ev-1", body)
	require.Equal(t, sig1, sig2)
	require.NotEqual(t, sig1, ComputeSignature("other", 1700000000, "ev-1", body))
	require.NotEqual(t, sig1, ComputeSignature("secret", 1700000001, "ev-1", body))
}

func TestDeliverSignsAndPosts(t *testing.T) {
	var gotSig, gotEventID string
	var gotBody []byte
	var gotTS int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		gotEventID = r.Header.Get("X-Event-ID")
		gotTS, _ = strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d := &Deliverer{Client: srv.Client()}
	ev := repo.DomainEvent{
		ID:         "ev-1",
		Topic:      "group.created",
		Payload:    []byte(`{"quoteIds":["a","b"]}`),
		OccurredAt: time.Now(),
	}
	status, err := d.Deliver(context.Background(), Endpoint{Name: "erp", URL: srv.URL, Secret: "secret"}, ev)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ev-1", gotEventID)
	require.Equal(t, ComputeSignature("secret", gotTS, "ev-1", gotBody), gotSig)

	var payload struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	require.Equal(t, "group.created", payload.Topic)
	require.JSONEq(t, `{"quoteIds":["a","b"]}`, string(payload.Data))
}

func TestDeliverNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	d := &Deliverer{Client: srv.Client()}
	status, err := d.Deliver(context.Background(), Endpoint{Name: "erp", URL: srv.URL}, repo.DomainEvent{ID: "ev-1", Topic: "t"})
	require.Error(t, err)
	require.Equal(t, http.StatusBadGateway, status)
}

func TestDeliverRejectsBadURL(t *testing.T) {
	d := &Deliverer{Client: http.DefaultClient}
	_, err := d.Deliver(context.Background(), Endpoint{Name: "erp", URL: "http://example.com/hook"}, repo.DomainEvent{ID: "ev-1"})
	require.Error(t, err)
	_, err = d.Deliver(context.Background(), Endpoint{Name: "erp", URL: "ftp://example.com"}, repo.DomainEvent{ID: "ev-1"})
	require.Error(t, err)
}

func TestWebhookNotifierFiltersTopics(t *testing.T) {
	var enqueued []string
	n := WebhookNotifier{
		Enabled: true,
		Endpoints: []Endpoint{
			{Name: "erp", Topics: []string{"group.created"}},
			{Name: "all"},
		},
		Enqueue: func(_ context.Context, name string, _ repo.DomainEvent) error {
			enqueued = append(enqueued, name)
			return nil
		},
	}
	require.NoError(t, n.Notify(context.Background(), repo.DomainEvent{ID: "ev-1", Topic: "quote.priced"}))
	require.Equal(t, []string{"all"}, enqueued)

	enqueued = nil
	require.NoError(t, n.Notify(context.Background(), repo.DomainEvent{ID: "ev-2", Topic: "group.created"}))
	require.Equal(t, []string{"erp", "all"}, enqueued)
}

func TestWebhookNotifierJoinsErrors(t *testing.T) {
	n := WebhookNotifier{
		Enabled:   true,
		Endpoints: []Endpoint{{Name: "erp"}},
		Enqueue: func(context.Context, string, repo.DomainEvent) error {
			return errors.New("queue down")
		},
	}
	require.Error(t, n.Notify(context.Background(), repo.DomainEvent{ID: "ev-1", Topic: "t"}))
}
