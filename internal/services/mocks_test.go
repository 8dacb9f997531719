package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// MockNotifier records notifications and forwards them on a channel so
// tests can wait for the fire-and-forget goroutine deterministically.
type MockNotifier struct {
	mock.Mock
	calls chan WithdrawalNotification
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{calls: make(chan WithdrawalNotification, 8)}
}

func (m *MockNotifier) NotifyWithdrawalCompleted(ctx context.Context, n WithdrawalNotification) error {
	args := m.Called(n)
	m.calls <- n
	return args.Error(0)
}

func waitForNotification(t *testing.T, m *MockNotifier) WithdrawalNotification {
	t.Helper()
	select {
	case n := <-m.calls:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return WithdrawalNotification{}
	}
}

func assertNoNotification(t *testing.T, m *MockNotifier) {
	t.Helper()
	select {
	case n := <-m.calls:
		t.Fatalf("unexpected notification for withdrawal %s", n.WithdrawalID)
	case <-time.After(50 * time.Millisecond):
	}
}
