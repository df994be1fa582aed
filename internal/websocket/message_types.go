package websocket

// Входящие сообщения клиента
const (
	// CLIENT_PING - проверка соединения со стороны клиента
	CLIENT_PING = "client:ping"
)

// Исходящие сообщения сервера
const (
	// SERVER_PONG - ответ на CLIENT_PING
	SERVER_PONG = "server:pong"

	// SERVER_ERROR - ошибка обработки сообщения клиента
	SERVER_ERROR = "server:error"
)
