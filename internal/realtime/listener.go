// Package realtime реализует подписку на канал уведомлений магазина
// о платёжных событиях.
package realtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmeshcher/dukapay/internal/model"
)

// paymentUpdateEvent — имя события об изменении статуса платежа.
const paymentUpdateEvent = "payment_update"

// Listener открывает подписки на канал уведомлений по websocket.
type Listener struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

// NewListener создаёт слушатель канала уведомлений по указанному адресу.
func NewListener(baseURL string, logger *zap.Logger) *Listener {
	return &Listener{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (l *Listener) url(sess model.Session) (string, error) {
	if l == nil || l.baseURL == "" {
		return "", fmt.Errorf("realtime listener not configured")
	}

	base := l.baseURL
	switch {
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	default:
		base = "ws://" + base
	}

	return base + "/ws?user_id=" + strconv.FormatInt(sess.UserID, 10), nil
}

// Subscribe подключается к каналу уведомлений в рамках сессии пользователя
// и возвращает подписку с потоком платёжных событий.
func (l *Listener) Subscribe(ctx context.Context, sess model.Session) (*Subscription, error) {
	url, err := l.url(sess)
	if err != nil {
		return nil, err
	}

	conn, resp, err := l.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial realtime channel: %w", err)
	}

	sub := &Subscription{
		conn:   conn,
		events: make(chan model.PaymentEvent),
		done:   make(chan struct{}),
		logger: l.logger,
	}

	go sub.readLoop()

	return sub, nil
}

// Subscription представляет активную подписку на платёжные события.
// После Close доставка событий прекращается, повторный Close безопасен.
type Subscription struct {
	conn      *websocket.Conn
	events    chan model.PaymentEvent
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

type wireEvent struct {
	Event     string `json:"event"`
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (s *Subscription) readLoop() {
	defer close(s.events)

	for {
		var ev wireEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Warn("realtime channel read error", zap.Error(err))
			}
			return
		}

		if ev.Event != paymentUpdateEvent {
			continue
		}

		event := model.PaymentEvent{
			InvoiceID: ev.InvoiceID,
			Outcome:   model.OutcomeFromWire(ev.Status),
			Message:   ev.Message,
		}

		select {
		case <-s.done:
			return
		case s.events <- event:
		}
	}
}

// Events возвращает поток платёжных событий подписки.
// Канал закрывается после завершения подписки.
func (s *Subscription) Events() <-chan model.PaymentEvent {
	return s.events
}

// Close разрывает подписку. Событие, пришедшее после Close,
// не будет доставлено.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
