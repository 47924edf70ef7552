package core

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"billingsync/internal/types"
)

// MockAuthenticator is a testify mock for Authenticator.
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (*types.User, error) {
	args := m.Called(ctx, token)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

// MockMetricsCollector is a testify mock for MetricsCollector.
type MockMetricsCollector struct {
	mock.Mock
}

func (m *MockMetricsCollector) RecordRequest(ctx context.Context, method, route, status string, duration time.Duration) {
	m.Called(ctx, method, route, status, duration)
}

// StaticProbe is a HealthProbe returning a fixed result after an optional delay.
type StaticProbe struct {
	ProbeName string
	Err       error
	Delay     time.Duration
}

func (p StaticProbe) Name() string { return p.ProbeName }

func (p StaticProbe) Check(ctx context.Context) error {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.Err
}

var (
	_ Authenticator    = (*MockAuthenticator)(nil)
	_ MetricsCollector = (*MockMetricsCollector)(nil)
	_ HealthProbe      = StaticProbe{}
)
