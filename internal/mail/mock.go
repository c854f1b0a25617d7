package mail

import (
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendNewMessage(to, orderId, messageText string) error {
	args := m.Called(to, orderId, messageText)
	return args.Error(0)
}
