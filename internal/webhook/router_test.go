package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordWebhook(ctx context.Context, eventType, outcome string) {
	m.Called(ctx, eventType, outcome)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_DispatchesByType(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("RecordWebhook", mock.Anything, EventSubscriptionDeleted, OutcomeHandled).Once()

	r := NewRouter(rec, discardLogger())
	var got string
	r.Handle(EventSubscriptionDeleted, func(ctx context.Context, evt *Event) error {
		got = evt.ID
		return nil
	})
	r.Handle(EventSubscriptionUpdated, func(ctx context.Context, evt *Event) error {
		t.Fatal("wrong handler")
		return nil
	})

	assert.NoError(t, r.Route(context.Background(), &Event{ID: "evt_del", Type: EventSubscriptionDeleted}))
	assert.Equal(t, "evt_del", got)
	rec.AssertExpectations(t)
}

func TestRouter_UnknownTypeAcknowledged(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("RecordWebhook", mock.Anything, "charge.refunded", OutcomeIgnored).Once()

	r := NewRouter(rec, discardLogger())
	assert.NoError(t, r.Route(context.Background(), &Event{ID: "evt_x", Type: "charge.refunded"}))
	rec.AssertExpectations(t)
}

func TestRouter_HandlerErrorReturned(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("RecordWebhook", mock.Anything, EventSubscriptionCreated, OutcomeFailed).Once()

	boom := errors.New("boom")
	r := NewRouter(rec, discardLogger())
	r.Handle(EventSubscriptionCreated, func(context.Context, *Event) error { return boom })

	assert.ErrorIs(t, r.Route(context.Background(), &Event{Type: EventSubscriptionCreated}), boom)
	rec.AssertExpectations(t)
}

func TestRouter_NilRecorder(t *testing.T) {
	r := NewRouter(nil, nil)
	r.Handle(EventInvoicePaymentSucceeded, func(context.Context, *Event) error { return nil })
	assert.NoError(t, r.Route(context.Background(), &Event{Type: EventInvoicePaymentSucceeded}))
	assert.Equal(t, []string{EventInvoicePaymentSucceeded}, r.EventTypes())
}
