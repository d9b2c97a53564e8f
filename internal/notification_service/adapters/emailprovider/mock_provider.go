package emailprovider

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider is a testify mock of EmailProvider for dispatcher tests.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SendResponse), args.Error(1)
}

func (m *MockProvider) Name() string {
	return "mock"
}
