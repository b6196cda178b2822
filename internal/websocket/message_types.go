package websocket

// Служебные типы сообщений транспорта
const (
	// EventServerError сообщает клиенту об ошибке обработки его сообщения
	EventServerError = "server:error"

	// EventUserHeartbeat - heartbeat от клиента
	EventUserHeartbeat = "user:heartbeat"

	// EventServerHeartbeat - ответ на heartbeat
	EventServerHeartbeat = "server:heartbeat"
)

// Коды ошибок транспорта
const (
	ErrCodeInvalidMessageFormat = "invalid_message_format"
	ErrCodeUnknownMessageType   = "unknown_message_type"
)
