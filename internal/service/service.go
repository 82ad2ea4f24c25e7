// Package service реализует бизнес-логику оформления покупки и платежа.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/dukapay/internal/backend"
	"github.com/mmeshcher/dukapay/internal/cart"
	"github.com/mmeshcher/dukapay/internal/model"
	"github.com/mmeshcher/dukapay/internal/reconcile"
	"github.com/mmeshcher/dukapay/internal/validation"
)

// ErrSessionNotFound возвращается, если сессия оформления не существует
// или принадлежит другому пользователю.
var (
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrUnknownItem возвращается при добавлении товара вне снимка каталога.
	ErrUnknownItem = errors.New("item not found in catalog snapshot")
	// ErrCheckoutActive возвращается, если платёж по сессии уже запрошен.
	ErrCheckoutActive = errors.New("payment already requested for this session")
	// ErrNoActiveCheckout возвращается при запросе статуса до запроса платежа.
	ErrNoActiveCheckout = errors.New("no payment requested for this session")
)

// Backend описывает контракт REST API магазина, используемый сервисом.
type Backend interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	CreateInvoice(ctx context.Context, userID int64, lines []model.CartLine) (*model.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int64) (*model.Invoice, error)
	RequestPayment(ctx context.Context, invoiceID int64, phoneNumber string) (string, error)
}

// Subscription описывает активную подписку на платёжные события.
type Subscription interface {
	Events() <-chan model.PaymentEvent
	Close() error
}

// Notifier описывает контракт подписки на канал уведомлений.
type Notifier interface {
	Subscribe(ctx context.Context, sess model.Session) (Subscription, error)
}

// NotifierFunc адаптирует функцию подписки к интерфейсу Notifier.
type NotifierFunc func(ctx context.Context, sess model.Session) (Subscription, error)

// Subscribe вызывает f.
func (f NotifierFunc) Subscribe(ctx context.Context, sess model.Session) (Subscription, error) {
	return f(ctx, sess)
}

// CheckoutService владеет сессиями оформления: корзиной, созданием счёта,
// запуском push-платежа и сведением его исхода.
type CheckoutService struct {
	backend  Backend
	notifier Notifier
	logger   *zap.Logger
	recCfg   reconcile.Config

	mu       sync.Mutex
	sessions map[string]*checkoutSession
}

type checkoutSession struct {
	id       string
	owner    model.Session
	snapshot []model.Item
	cart     *cart.Cart
	pending  bool
	checkout *activeCheckout
}

type activeCheckout struct {
	invoiceID int64
	rec       *reconcile.Reconciler
	sub       Subscription
	cancel    context.CancelFunc
}

// NewCheckoutService создаёт сервис оформления покупок.
func NewCheckoutService(b Backend, n Notifier, logger *zap.Logger, recCfg reconcile.Config) *CheckoutService {
	return &CheckoutService{
		backend:  b,
		notifier: n,
		logger:   logger,
		recCfg:   recCfg,
		sessions: make(map[string]*checkoutSession),
	}
}

// SessionView содержит идентификатор открытой сессии и снимок каталога.
type SessionView struct {
	SessionID string
	Items     []model.Item
}

// OpenSession загружает снимок каталога и открывает сессию оформления
// с пустой корзиной для указанного пользователя.
func (s *CheckoutService) OpenSession(ctx context.Context, owner model.Session) (*SessionView, error) {
	items, err := s.backend.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	cs := &checkoutSession{
		id:       uuid.NewString(),
		owner:    owner,
		snapshot: items,
		cart:     cart.New(items),
	}

	s.mu.Lock()
	s.sessions[cs.id] = cs
	s.mu.Unlock()

	s.logger.Info("checkout session opened",
		zap.String("sessionID", cs.id),
		zap.Int64("userID", owner.UserID),
		zap.Int("items", len(items)))

	return &SessionView{SessionID: cs.id, Items: items}, nil
}

func (s *CheckoutService) session(sessionID string, owner model.Session) (*checkoutSession, error) {
	cs, ok := s.sessions[sessionID]
	if !ok || cs.owner.UserID != owner.UserID {
		return nil, ErrSessionNotFound
	}
	return cs, nil
}

// CartLineView описывает позицию корзины для UI-слоя.
type CartLineView struct {
	ItemID     int64
	Name       string
	PriceCents int64
	Quantity   int64
	TotalCents int64
}

// CartView описывает содержимое корзины и её текущую сумму.
type CartView struct {
	Lines      []CartLineView
	TotalCents int64
}

func cartView(cs *checkoutSession) *CartView {
	view := &CartView{TotalCents: cs.cart.TotalCents()}
	for _, line := range cs.cart.Lines() {
		it, _ := cs.cart.Item(line.ItemID)
		view.Lines = append(view.Lines, CartLineView{
			ItemID:     line.ItemID,
			Name:       it.Name,
			PriceCents: it.PriceCents,
			Quantity:   line.Quantity,
			TotalCents: it.PriceCents * line.Quantity,
		})
	}
	return view
}

// Items возвращает снимок каталога, на котором открыта сессия.
func (s *CheckoutService) Items(sessionID string, owner model.Session) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.session(sessionID, owner)
	if err != nil {
		return nil, err
	}
	return cs.snapshot, nil
}

// AddItem добавляет единицу товара в корзину сессии.
func (s *CheckoutService) AddItem(sessionID string, owner model.Session, itemID int64) (*CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.session(sessionID, owner)
	if err != nil {
		return nil, err
	}

	if !cs.cart.Add(itemID) {
		return nil, ErrUnknownItem
	}

	return cartView(cs), nil
}

// RemoveItem убирает единицу товара из корзины сессии.
func (s *CheckoutService) RemoveItem(sessionID string, owner model.Session, itemID int64) (*CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.session(sessionID, owner)
	if err != nil {
		return nil, err
	}

	cs.cart.Remove(itemID)

	return cartView(cs), nil
}

// Cart возвращает текущее содержимое корзины сессии.
func (s *CheckoutService) Cart(sessionID string, owner model.Session) (*CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, err := s.session(sessionID, owner)
	if err != nil {
		return nil, err
	}

	return cartView(cs), nil
}

// PaymentRequestResult содержит результат запуска push-платежа.
type PaymentRequestResult struct {
	InvoiceID int64
	Message   string
}

// RequestPayment создаёт счёт из корзины сессии, инициирует push-платёж
// на телефон клиента и запускает сведение его исхода. Корзина очищается
// после создания счёта.
func (s *CheckoutService) RequestPayment(ctx context.Context, sessionID string, owner model.Session, phoneNumber string) (*PaymentRequestResult, error) {
	if _, ok := validation.NormalizePhone(phoneNumber); !ok {
		return nil, &backend.ValidationError{Message: "client phone number is required"}
	}

	s.mu.Lock()
	cs, err := s.session(sessionID, owner)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if cs.pending || cs.checkout != nil {
		s.mu.Unlock()
		return nil, ErrCheckoutActive
	}
	lines := cs.cart.Lines()
	cs.pending = true
	s.mu.Unlock()

	finish := func(ac *activeCheckout) {
		s.mu.Lock()
		cs.pending = false
		if ac != nil {
			cs.checkout = ac
			cs.cart.Clear()
		}
		s.mu.Unlock()
	}

	invoice, err := s.backend.CreateInvoice(ctx, owner.UserID, lines)
	if err != nil {
		finish(nil)
		return nil, err
	}

	ack, err := s.backend.RequestPayment(ctx, invoice.ID, phoneNumber)
	if err != nil {
		finish(nil)
		return nil, err
	}

	// сведение исхода переживает HTTP-запрос и живёт до закрытия сессии
	recCtx, cancel := context.WithCancel(context.Background())

	rec := reconcile.New(s.backend, s.logger, invoice.ID, s.recCfg)
	rec.Start(recCtx)

	var sub Subscription
	if s.notifier != nil {
		sub, err = s.notifier.Subscribe(recCtx, owner)
		if err != nil {
			// опрос статуса остаётся вторым источником исхода
			s.logger.Warn("realtime subscription failed, relying on status poll",
				zap.Int64("invoiceID", invoice.ID),
				zap.Error(err))
			sub = nil
		}
	}

	if sub != nil {
		go func() {
			for ev := range sub.Events() {
				rec.Deliver(ev)
			}
		}()
	}

	finish(&activeCheckout{
		invoiceID: invoice.ID,
		rec:       rec,
		sub:       sub,
		cancel:    cancel,
	})

	s.logger.Info("push payment requested",
		zap.Int64("invoiceID", invoice.ID),
		zap.Int64("userID", owner.UserID))

	return &PaymentRequestResult{InvoiceID: invoice.ID, Message: ack}, nil
}

// PaymentStatusView содержит текущий статус счёта и накопленные наблюдения.
type PaymentStatusView struct {
	InvoiceID    int64
	Status       model.InvoiceStatus
	Observations []reconcile.Observation
}

// PaymentStatus возвращает наблюдаемый статус активного счёта сессии
// и накопленные с прошлого запроса наблюдения.
func (s *CheckoutService) PaymentStatus(sessionID string, owner model.Session) (*PaymentStatusView, error) {
	s.mu.Lock()
	cs, err := s.session(sessionID, owner)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ac := cs.checkout
	s.mu.Unlock()

	if ac == nil {
		return nil, ErrNoActiveCheckout
	}

	view := &PaymentStatusView{
		InvoiceID: ac.invoiceID,
		Status:    ac.rec.Status(),
	}

	for {
		select {
		case obs := <-ac.rec.Observations():
			view.Observations = append(view.Observations, obs)
		default:
			return view, nil
		}
	}
}

func teardown(ac *activeCheckout) {
	if ac == nil {
		return
	}
	if ac.sub != nil {
		_ = ac.sub.Close()
	}
	ac.rec.Stop()
	ac.cancel()
}

// CloseSession завершает сессию оформления: разрывает подписку на события,
// отменяет запланированный опрос и удаляет сессию.
func (s *CheckoutService) CloseSession(sessionID string, owner model.Session) error {
	s.mu.Lock()
	cs, err := s.session(sessionID, owner)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	teardown(cs.checkout)

	s.logger.Info("checkout session closed", zap.String("sessionID", sessionID))

	return nil
}

// Close завершает все сессии сервиса.
func (s *CheckoutService) Close() error {
	s.mu.Lock()
	sessions := make([]*checkoutSession, 0, len(s.sessions))
	for _, cs := range s.sessions {
		sessions = append(sessions, cs)
	}
	s.sessions = make(map[string]*checkoutSession)
	s.mu.Unlock()

	for _, cs := range sessions {
		teardown(cs.checkout)
	}

	return nil
}
