package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/wishlistai/backend/internal/events"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, wishlistID string, ev events.Event) error {
	args := m.Called(ctx, wishlistID, ev)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyReservation(ctx context.Context, wishlistID, itemTitle string, full bool) {
	m.Called(ctx, wishlistID, itemTitle, full)
}
