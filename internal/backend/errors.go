package backend

// ValidationError возвращается, когда входные данные вызова некорректны.
// Такая ошибка блокирует действие до обращения к внешнему сервису.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ServiceError возвращается, когда внешний сервис недоступен или вернул
// неуспешный ответ. Message содержит сообщение сервера, если оно было.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}
