package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/dukapay/internal/backend"
	"github.com/mmeshcher/dukapay/internal/model"
	"github.com/mmeshcher/dukapay/internal/reconcile"
)

type stubBackend struct {
	mu sync.Mutex

	items    []model.Item
	itemsErr error

	createInvoiceID  int64
	createInvoiceErr error
	createCalls      int
	createdLines     []model.CartLine

	invoiceStatus model.InvoiceStatus
	getInvoiceErr error

	paymentAck   string
	paymentErr   error
	paymentCalls int
}

func (b *stubBackend) ListItems(ctx context.Context) ([]model.Item, error) {
	return b.items, b.itemsErr
}

func (b *stubBackend) CreateInvoice(ctx context.Context, userID int64, lines []model.CartLine) (*model.Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.createCalls++
	b.createdLines = lines

	if len(lines) == 0 {
		return nil, &backend.ValidationError{Message: "at least one item is required"}
	}
	if b.createInvoiceErr != nil {
		return nil, b.createInvoiceErr
	}
	return &model.Invoice{ID: b.createInvoiceID, UserID: userID, Status: model.StatusPending}, nil
}

func (b *stubBackend) GetInvoice(ctx context.Context, invoiceID int64) (*model.Invoice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.getInvoiceErr != nil {
		return nil, b.getInvoiceErr
	}
	status := b.invoiceStatus
	if status == "" {
		status = model.StatusPending
	}
	return &model.Invoice{ID: invoiceID, Status: status}, nil
}

func (b *stubBackend) RequestPayment(ctx context.Context, invoiceID int64, phoneNumber string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.paymentCalls++
	if b.paymentErr != nil {
		return "", b.paymentErr
	}
	return b.paymentAck, nil
}

type stubSubscription struct {
	events chan model.PaymentEvent

	mu     sync.Mutex
	closed bool
}

func (s *stubSubscription) Events() <-chan model.PaymentEvent {
	return s.events
}

func (s *stubSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

func (s *stubSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testItems() []model.Item {
	return []model.Item{
		{ID: 1, Name: "Tilapia", PriceCents: 35000, Stock: 20},
		{ID: 2, Name: "Fish Feed", PriceCents: 30000, Stock: 50},
	}
}

func newTestService(b Backend, sub *stubSubscription) *CheckoutService {
	var notifier Notifier
	if sub != nil {
		notifier = NotifierFunc(func(ctx context.Context, sess model.Session) (Subscription, error) {
			return sub, nil
		})
	}

	return NewCheckoutService(b, notifier, zap.NewNop(), reconcile.Config{
		PollDelay:    time.Minute,
		PollAttempts: 1,
	})
}

func openSession(t *testing.T, s *CheckoutService, owner model.Session) string {
	t.Helper()

	view, err := s.OpenSession(context.Background(), owner)
	if err != nil {
		t.Fatalf("OpenSession error: %v", err)
	}
	return view.SessionID
}

func TestCartFlow(t *testing.T) {
	b := &stubBackend{items: testItems()}
	s := newTestService(b, nil)
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)

	if _, err := s.AddItem(id, owner, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	view, err := s.AddItem(id, owner, 1)
	if err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	if len(view.Lines) != 1 || view.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected cart lines: %+v", view.Lines)
	}
	if view.TotalCents != 70000 {
		t.Fatalf("total = %d, want 70000", view.TotalCents)
	}

	view, err = s.RemoveItem(id, owner, 1)
	if err != nil {
		t.Fatalf("RemoveItem error: %v", err)
	}
	if view.TotalCents != 35000 {
		t.Fatalf("total = %d after remove, want 35000", view.TotalCents)
	}
}

func TestAddItem_UnknownItem(t *testing.T) {
	b := &stubBackend{items: testItems()}
	s := newTestService(b, nil)
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)

	if _, err := s.AddItem(id, owner, 99); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("error = %v, want ErrUnknownItem", err)
	}
}

func TestSessionOwnership(t *testing.T) {
	b := &stubBackend{items: testItems()}
	s := newTestService(b, nil)

	id := openSession(t, s, model.Session{UserID: 7})

	if _, err := s.Cart(id, model.Session{UserID: 8}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound for another user", err)
	}
	if _, err := s.Cart("missing", model.Session{UserID: 7}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestRequestPayment_BlankPhone(t *testing.T) {
	b := &stubBackend{items: testItems()}
	s := newTestService(b, nil)
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)
	if _, err := s.AddItem(id, owner, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	_, err := s.RequestPayment(context.Background(), id, owner, "  ")

	var validationErr *backend.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if b.createCalls != 0 || b.paymentCalls != 0 {
		t.Fatalf("backend contacted before validation: create=%d payment=%d", b.createCalls, b.paymentCalls)
	}
}

func TestRequestPayment_EmptyCart(t *testing.T) {
	b := &stubBackend{items: testItems()}
	s := newTestService(b, nil)
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)

	_, err := s.RequestPayment(context.Background(), id, owner, "254700000000")

	var validationErr *backend.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if b.paymentCalls != 0 {
		t.Fatalf("gateway contacted after failed invoice creation")
	}
}

func TestRequestPayment_FullFlow(t *testing.T) {
	b := &stubBackend{
		items:           testItems(),
		createInvoiceID: 42,
		paymentAck:      "Check your phone",
	}
	sub := &stubSubscription{events: make(chan model.PaymentEvent, 1)}
	s := newTestService(b, sub)
	defer s.Close()
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)
	if _, err := s.AddItem(id, owner, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if _, err := s.AddItem(id, owner, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	result, err := s.RequestPayment(context.Background(), id, owner, "254700000000")
	if err != nil {
		t.Fatalf("RequestPayment error: %v", err)
	}
	if result.InvoiceID != 42 {
		t.Fatalf("invoice id = %d, want 42", result.InvoiceID)
	}
	if result.Message != "Check your phone" {
		t.Fatalf("message = %q", result.Message)
	}

	if len(b.createdLines) != 1 || b.createdLines[0].Quantity != 2 {
		t.Fatalf("unexpected invoice lines: %+v", b.createdLines)
	}

	// корзина очищается после создания счёта
	view, err := s.Cart(id, owner)
	if err != nil {
		t.Fatalf("Cart error: %v", err)
	}
	if len(view.Lines) != 0 {
		t.Fatalf("cart not cleared after invoice creation: %+v", view.Lines)
	}

	// повторный запрос платежа по той же сессии отклоняется
	if _, err := s.RequestPayment(context.Background(), id, owner, "254700000000"); !errors.Is(err, ErrCheckoutActive) {
		t.Fatalf("error = %v, want ErrCheckoutActive", err)
	}

	// событие success из канала уведомлений доводит счёт до paid
	sub.events <- model.PaymentEvent{InvoiceID: 42, Outcome: model.OutcomeSuccess, Message: "ok"}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := s.PaymentStatus(id, owner)
		if err != nil {
			t.Fatalf("PaymentStatus error: %v", err)
		}
		if status.Status == model.StatusPaid {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("invoice did not reach paid status")
}

func TestRequestPayment_GatewayError(t *testing.T) {
	b := &stubBackend{
		items:           testItems(),
		createInvoiceID: 42,
		paymentErr:      &backend.ServiceError{StatusCode: 502, Message: "gateway unavailable"},
	}
	s := newTestService(b, nil)
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)
	if _, err := s.AddItem(id, owner, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}

	_, err := s.RequestPayment(context.Background(), id, owner, "254700000000")

	var serviceErr *backend.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected ServiceError, got %v", err)
	}

	// после неудачи платёж можно запросить снова
	if _, err := s.PaymentStatus(id, owner); !errors.Is(err, ErrNoActiveCheckout) {
		t.Fatalf("error = %v, want ErrNoActiveCheckout", err)
	}
}

func TestPaymentStatus_NoActiveCheckout(t *testing.T) {
	b := &stubBackend{items: testItems()}
	s := newTestService(b, nil)
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)

	if _, err := s.PaymentStatus(id, owner); !errors.Is(err, ErrNoActiveCheckout) {
		t.Fatalf("error = %v, want ErrNoActiveCheckout", err)
	}
}

func TestCloseSession_TearsDownSubscription(t *testing.T) {
	b := &stubBackend{
		items:           testItems(),
		createInvoiceID: 42,
		paymentAck:      "ok",
	}
	sub := &stubSubscription{events: make(chan model.PaymentEvent, 1)}
	s := newTestService(b, sub)
	owner := model.Session{UserID: 7}

	id := openSession(t, s, owner)
	if _, err := s.AddItem(id, owner, 1); err != nil {
		t.Fatalf("AddItem error: %v", err)
	}
	if _, err := s.RequestPayment(context.Background(), id, owner, "254700000000"); err != nil {
		t.Fatalf("RequestPayment error: %v", err)
	}

	if err := s.CloseSession(id, owner); err != nil {
		t.Fatalf("CloseSession error: %v", err)
	}

	if !sub.isClosed() {
		t.Fatalf("subscription not closed on session teardown")
	}
	if _, err := s.Cart(id, owner); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session still reachable after close")
	}
}
