package core

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
)

// LambdaAdapter serves API Gateway HTTP API (payload v2) events through an
// http.Handler. Base64-encoded request bodies are decoded before the handler
// runs, so webhook signatures verify against the original bytes.
type LambdaAdapter struct {
	proxy *httpadapter.HandlerAdapterV2
}

// NewLambdaAdapter wraps h for use with lambda.Start.
func NewLambdaAdapter(h http.Handler) *LambdaAdapter {
	return &LambdaAdapter{proxy: httpadapter.NewV2(h)}
}

// Handle converts the event, runs the handler and converts the response.
func (a *LambdaAdapter) Handle(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return a.proxy.ProxyWithContext(ctx, event)
}
