package core

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lambdaTestSecret = "whsec_lambda_test"

// signedWebhookHandler verifies the Stripe signature over the exact bytes it
// received and records them.
func signedWebhookHandler(t *testing.T, got *[]byte) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*got = body

		sig := strings.Join(r.Header.Values("Stripe-Signature"), ",")
		if err := stripewebhook.ValidatePayload(body, sig, lambdaTestSecret); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"Invalid signature"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"received":true}`))
	})
}

func webhookEvent(body string, base64Encoded bool, signature string) events.APIGatewayV2HTTPRequest {
	event := events.APIGatewayV2HTTPRequest{
		RawPath:         "/api/webhooks/stripe",
		Headers:         map[string]string{"content-type": "application/json", "stripe-signature": signature},
		Body:            body,
		IsBase64Encoded: base64Encoded,
	}
	event.RequestContext.DomainName = "api.test"
	event.RequestContext.HTTP.Method = http.MethodPost
	event.RequestContext.HTTP.Path = "/api/webhooks/stripe"
	event.RequestContext.HTTP.SourceIP = "203.0.113.9"
	return event
}

func TestLambdaAdapter_SignedBodyRoundTrip(t *testing.T) {
	// Whitespace and key order must survive untouched for the signature to hold.
	raw := []byte("{\"id\":\"evt_1\", \"object\":\"event\",\n  \"type\" : \"customer.subscription.created\"}\n")
	sig := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   raw,
		Secret:    lambdaTestSecret,
		Timestamp: time.Now(),
	}).Header

	tests := []struct {
		name          string
		body          string
		base64Encoded bool
	}{
		{"plain body", string(raw), false},
		{"base64 body", base64.StdEncoding.EncodeToString(raw), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []byte
			adapter := NewLambdaAdapter(signedWebhookHandler(t, &got))

			resp, err := adapter.Handle(context.Background(), webhookEvent(tt.body, tt.base64Encoded, sig))
			require.NoError(t, err)

			assert.Equal(t, raw, got)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.JSONEq(t, `{"received":true}`, resp.Body)
		})
	}
}

func TestLambdaAdapter_TamperedBodyRejected(t *testing.T) {
	sig := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(`{"id":"evt_1"}`),
		Secret:    lambdaTestSecret,
		Timestamp: time.Now(),
	}).Header

	var got []byte
	adapter := NewLambdaAdapter(signedWebhookHandler(t, &got))

	resp, err := adapter.Handle(context.Background(), webhookEvent(`{"id":"evt_2"}`, false, sig))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLambdaAdapter_RequestMapping(t *testing.T) {
	var gotReq *http.Request
	adapter := NewLambdaAdapter(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		w.WriteHeader(http.StatusNoContent)
	}))

	event := events.APIGatewayV2HTTPRequest{
		RawPath:        "/api/subscription",
		RawQueryString: "x=1",
		Cookies:        []string{"sb-access-token=tok"},
	}
	event.RequestContext.DomainName = "api.test"
	event.RequestContext.HTTP.Method = http.MethodGet

	resp, err := adapter.Handle(context.Background(), event)
	require.NoError(t, err)

	require.NotNil(t, gotReq)
	assert.Equal(t, http.MethodGet, gotReq.Method)
	assert.Equal(t, "/api/subscription", gotReq.URL.Path)
	assert.Equal(t, "1", gotReq.URL.Query().Get("x"))
	c, err := gotReq.Cookie("sb-access-token")
	require.NoError(t, err)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestLambdaAdapter_BadBase64(t *testing.T) {
	adapter := NewLambdaAdapter(http.NotFoundHandler())

	event := events.APIGatewayV2HTTPRequest{RawPath: "/", Body: "%%%", IsBase64Encoded: true}
	event.RequestContext.HTTP.Method = http.MethodPost
	_, err := adapter.Handle(context.Background(), event)
	assert.Error(t, err)
}
