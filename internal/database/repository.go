package database

type RelayRepository interface {
	Ping() error
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	IsAdmin(accountId int) (bool, error)
	GetOrderById(orderId int) (Order, error)
	GetOrderByExternalId(externalId string) (Order, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageById(messageId int) (Message, error)
	ListMessagesByOrderId(orderId, limit int) ([]Message, error)
	MarkMessagesRead(orderId int, adminSide bool) error
}
