// Package mocks holds testify mocks for the external collaborators of the
// phone login flow.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/tech-arch1tect/phoneauth/services/jwt"
	"github.com/tech-arch1tect/phoneauth/services/sms"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Send(ctx context.Context, msg sms.Message) (sms.Receipt, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(sms.Receipt), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ResolvePhone(ctx context.Context, accessToken, openID string) (string, error) {
	args := m.Called(ctx, accessToken, openID)
	return args.String(0), args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(userID string, roles []string) (*jwt.IssuedToken, error) {
	args := m.Called(userID, roles)
	if token := args.Get(0); token != nil {
		return token.(*jwt.IssuedToken), args.Error(1)
	}
	return nil, args.Error(1)
}
