package events

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"wanderfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("identity-webhook-test-key"))

func TestVerifier_RoundTrip(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)
	now := time.Unix(1_760_000_000, 0)
	v.now = func() time.Time { return now }

	body := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	ts := "1760000000"
	sig := v.Sign("msg_1", now, body)

	assert.NoError(t, v.Verify("msg_1", ts, sig, body))
	assert.NoError(t, v.Verify("msg_1", ts, "v1,bm9wZQ== "+sig, body), "any listed signature may match")

	assert.ErrorIs(t, v.Verify("msg_1", ts, sig, []byte(`{}`)), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("msg_2", ts, sig, body), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("msg_1", ts, "v2,"+sig[3:], body), ErrInvalidSignature)
	assert.ErrorIs(t, v.Verify("", ts, sig, body), ErrMissingHeaders)
	assert.ErrorIs(t, v.Verify("msg_1", "1759990000", sig, body), ErrStaleTimestamp)
	assert.ErrorIs(t, v.Verify("msg_1", "soon", sig, body), ErrStaleTimestamp)
}

func TestNewVerifier_BadSecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.Error(t, err)
	_, err = NewVerifier("whsec_***")
	assert.Error(t, err)
}

type recordingHandler struct {
	mu       sync.Mutex
	events   []models.IdentityEvent
	failures int
	done     chan struct{}
}

func (h *recordingHandler) HandleIdentityEvent(_ context.Context, ev models.IdentityEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev.Data.ID == "" {
		return models.NewValidationError("missing id")
	}
	if h.failures > 0 {
		h.failures--
		return errors.New("database unavailable")
	}
	h.events = append(h.events, ev)
	h.done <- struct{}{}
	return nil
}

func startBus(t *testing.T, h IdentityHandler) *Bus {
	t.Helper()
	cfg := DefaultBusConfig()
	cfg.InitialInterval = time.Millisecond
	bus, err := NewBus(cfg, h)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = bus.Run(ctx) }()
	<-bus.Running()
	t.Cleanup(func() {
		cancel()
		_ = bus.Close()
	})
	return bus
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("event was not handled")
	}
}

func TestBus_DeliversAndRetries(t *testing.T) {
	h := &recordingHandler{failures: 2, done: make(chan struct{}, 4)}
	bus := startBus(t, h)

	payload := []byte(`{"type":"user.updated","data":{"id":"user_42","username":"ana"}}`)
	require.NoError(t, bus.PublishIdentityEvent(context.Background(), "msg_42", payload))
	waitFor(t, h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.events, 1)
	assert.Equal(t, models.IdentityUserUpdated, h.events[0].Type)
	assert.Equal(t, "ana", h.events[0].Data.Username)
	assert.Zero(t, h.failures)
}

func TestBus_DropsDuplicatesAndPoisonMessages(t *testing.T) {
	h := &recordingHandler{done: make(chan struct{}, 4)}
	bus := startBus(t, h)
	ctx := context.Background()

	require.NoError(t, bus.PublishIdentityEvent(ctx, "bad_json", []byte(`{not json`)))
	require.NoError(t, bus.PublishIdentityEvent(ctx, "no_id", []byte(`{"type":"user.created","data":{}}`)))

	payload := []byte(`{"type":"user.created","data":{"id":"user_7"}}`)
	require.NoError(t, bus.PublishIdentityEvent(ctx, "msg_7", payload))
	require.NoError(t, bus.PublishIdentityEvent(ctx, "msg_7", payload))
	require.NoError(t, bus.PublishIdentityEvent(ctx, "msg_8", []byte(`{"type":"user.deleted","data":{"id":"user_7"}}`)))

	waitFor(t, h.done)
	waitFor(t, h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.events, 2)
	assert.Equal(t, models.IdentityUserCreated, h.events[0].Type)
	assert.Equal(t, models.IdentityUserDeleted, h.events[1].Type)
}
