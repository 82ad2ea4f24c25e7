// Package model содержит доменные сущности сервиса dukapay.
package model

// Session содержит контекст аутентифицированной сессии пользователя.
// Передаётся явно во все компоненты; глобального состояния сессии нет.
type Session struct {
	UserID int64
}

// Item представляет товар из снимка каталога на момент загрузки.
type Item struct {
	ID          int64
	Name        string
	PriceCents  int64
	Stock       int64
	Description string
	PhotoURL    string
}

// CartLine описывает позицию корзины: товар и выбранное количество.
type CartLine struct {
	ItemID   int64
	Quantity int64
}

// InvoiceStatus описывает статус счёта.
type InvoiceStatus string

const (
	StatusPending                 InvoiceStatus = "pending"
	StatusPaid                    InvoiceStatus = "paid"
	StatusCancelled               InvoiceStatus = "cancelled"
	StatusFailedInsufficientFunds InvoiceStatus = "failed_insufficient_funds"
	StatusFailedOther             InvoiceStatus = "failed_other"
)

// IsTerminal сообщает, является ли статус терминальным.
// После терминального статуса переходы не принимаются.
func (s InvoiceStatus) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusCancelled, StatusFailedInsufficientFunds, StatusFailedOther:
		return true
	}
	return false
}

// InvoiceLine описывает позицию счёта с ценой на момент создания.
type InvoiceLine struct {
	ItemID     int64
	Name       string
	PriceCents int64
	Quantity   int64
}

// Invoice описывает счёт, созданный внешним сервисом счетов.
// Сервис счетов является источником истины; здесь хранится только
// монотонно продвигающееся кешированное представление.
type Invoice struct {
	ID         int64
	UserID     int64
	Lines      []InvoiceLine
	TotalCents int64
	Status     InvoiceStatus
}

// PaymentOutcome описывает исход платежа, полученный из канала уведомлений
// или из ответа на опрос статуса.
type PaymentOutcome string

const (
	OutcomeSuccess           PaymentOutcome = "success"
	OutcomeInsufficientFunds PaymentOutcome = "insufficient_funds"
	OutcomeCancelled         PaymentOutcome = "cancelled"
	OutcomeOther             PaymentOutcome = "other"
)

// Status возвращает терминальный статус счёта, соответствующий исходу платежа.
func (o PaymentOutcome) Status() InvoiceStatus {
	switch o {
	case OutcomeSuccess:
		return StatusPaid
	case OutcomeInsufficientFunds:
		return StatusFailedInsufficientFunds
	case OutcomeCancelled:
		return StatusCancelled
	}
	return StatusFailedOther
}

// PaymentEvent описывает событие об исходе платежа по конкретному счёту.
type PaymentEvent struct {
	InvoiceID int64
	Outcome   PaymentOutcome
	Message   string
}

// StatusFromWire приводит строковый статус из ответа внешнего сервиса
// к InvoiceStatus. Статусы "failed" и "insufficient_funds" означают отказ
// из-за нехватки средств, незнакомые строки трактуются как прочий отказ.
func StatusFromWire(status string) InvoiceStatus {
	switch status {
	case "paid", "success":
		return StatusPaid
	case "failed", "insufficient_funds":
		return StatusFailedInsufficientFunds
	case "cancelled":
		return StatusCancelled
	case "pending":
		return StatusPending
	}
	return StatusFailedOther
}

// OutcomeFromWire приводит строковый исход из события канала уведомлений
// к PaymentOutcome.
func OutcomeFromWire(outcome string) PaymentOutcome {
	switch outcome {
	case "success", "paid":
		return OutcomeSuccess
	case "insufficient_funds", "failed":
		return OutcomeInsufficientFunds
	case "cancelled":
		return OutcomeCancelled
	}
	return OutcomeOther
}
