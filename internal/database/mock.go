package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRelayRepository struct {
	mock.Mock
}

func (m *MockRelayRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRelayRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRelayRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRelayRepository) IsAdmin(accountId int) (bool, error) {
	args := m.Called(accountId)
	return args.Bool(0), args.Error(1)
}
func (m *MockRelayRepository) GetOrderById(orderId int) (Order, error) {
	args := m.Called(orderId)
	return args.Get(0).(Order), args.Error(1)
}
func (m *MockRelayRepository) GetOrderByExternalId(externalId string) (Order, error) {
	args := m.Called(externalId)
	return args.Get(0).(Order), args.Error(1)
}
func (m *MockRelayRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRelayRepository) GetMessageById(messageId int) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRelayRepository) ListMessagesByOrderId(orderId, limit int) ([]Message, error) {
	args := m.Called(orderId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRelayRepository) MarkMessagesRead(orderId int, adminSide bool) error {
	args := m.Called(orderId, adminSide)
	return args.Error(0)
}
