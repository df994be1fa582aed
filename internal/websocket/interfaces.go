package websocket

// HubInterface - возможности хаба, которые нужны Manager
type HubInterface interface {
	// SendJSONToUser отправляет структуру JSON во все соединения пользователя
	SendJSONToUser(userID string, v interface{}) error

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
