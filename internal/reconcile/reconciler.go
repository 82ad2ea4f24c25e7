// Package reconcile сводит независимые сигналы об исходе платежа
// (события канала уведомлений и отложенный опрос статуса)
// в единый авторитетный статус счёта.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/dukapay/internal/model"
)

// ErrStaleEvent возвращается при попытке применить сигнал к счёту,
// уже находящемуся в терминальном статусе. Такой сигнал отбрасывается.
var ErrStaleEvent = errors.New("invoice already in terminal status")

// StatusSource описывает контракт получения статуса счёта у сервиса счетов.
type StatusSource interface {
	GetInvoice(ctx context.Context, invoiceID int64) (*model.Invoice, error)
}

// Config задаёт политику отложенного опроса статуса.
type Config struct {
	PollDelay    time.Duration
	PollAttempts int
}

// ObservationKind описывает вид наблюдения за статусом счёта.
type ObservationKind string

const (
	// ObservationWaiting — счёт всё ещё ожидает оплаты.
	ObservationWaiting ObservationKind = "waiting"
	// ObservationTerminal — счёт достиг терминального статуса.
	ObservationTerminal ObservationKind = "terminal"
	// ObservationCheckFailed — опрос статуса не удался; статус счёта не изменён.
	ObservationCheckFailed ObservationKind = "check_failed"
)

// Observation — наблюдение за статусом счёта, доставляемое вызывающей стороне.
type Observation struct {
	Kind    ObservationKind
	Status  model.InvoiceStatus
	Message string
}

// Reconciler владеет определением терминального исхода одного счёта.
// Действует правило «побеждает первый терминальный сигнал»: переход
// выполняется под мьютексом как атомарная проверка-и-запись, все
// последующие сигналы отбрасываются.
type Reconciler struct {
	source    StatusSource
	logger    *zap.Logger
	invoiceID int64
	cfg       Config

	mu     sync.Mutex
	status model.InvoiceStatus

	events       chan model.PaymentEvent
	observations chan Observation

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// New создаёт Reconciler для указанного счёта в статусе pending.
func New(source StatusSource, logger *zap.Logger, invoiceID int64, cfg Config) *Reconciler {
	if cfg.PollDelay <= 0 {
		cfg.PollDelay = 10 * time.Second
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 1
	}

	return &Reconciler{
		source:       source,
		logger:       logger,
		invoiceID:    invoiceID,
		cfg:          cfg,
		status:       model.StatusPending,
		events:       make(chan model.PaymentEvent, 16),
		observations: make(chan Observation, 16),
		done:         make(chan struct{}),
	}
}

// Start запускает цикл сведения: приём событий и отложенный опрос статуса.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.run(ctx)
}

// Stop останавливает цикл сведения и отменяет запланированный опрос.
// Сигналы, пришедшие после остановки, молча отбрасываются.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
}

// Deliver передаёт платёжное событие в цикл сведения.
// После остановки событие отбрасывается.
func (r *Reconciler) Deliver(ev model.PaymentEvent) {
	select {
	case <-r.done:
		r.logger.Debug("payment event after teardown dropped",
			zap.Int64("invoiceID", ev.InvoiceID))
	case r.events <- ev:
	}
}

// Observations возвращает поток наблюдений за статусом счёта.
func (r *Reconciler) Observations() <-chan Observation {
	return r.observations
}

// Status возвращает текущий наблюдаемый статус счёта.
func (r *Reconciler) Status() model.InvoiceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Reconciler) run(ctx context.Context) {
	defer close(r.done)

	timer := time.NewTimer(r.cfg.PollDelay)
	defer timer.Stop()

	attempts := 0

	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-r.events:
			if ev.InvoiceID != r.invoiceID {
				r.logger.Debug("payment event for another invoice ignored",
					zap.Int64("invoiceID", ev.InvoiceID),
					zap.Int64("want", r.invoiceID))
				continue
			}
			if err := r.apply(ev.Outcome.Status(), ev.Message); err != nil {
				r.logger.Info("stale payment event discarded",
					zap.Int64("invoiceID", r.invoiceID),
					zap.String("outcome", string(ev.Outcome)))
			}

		case <-timer.C:
			attempts++
			r.poll(ctx)
			if !r.Status().IsTerminal() && attempts < r.cfg.PollAttempts {
				timer.Reset(r.cfg.PollDelay)
			}
		}
	}
}

// apply выполняет атомарный переход в терминальный статус.
// Если счёт уже терминален, возвращает ErrStaleEvent без изменения статуса.
func (r *Reconciler) apply(target model.InvoiceStatus, message string) error {
	r.mu.Lock()
	if r.status.IsTerminal() {
		r.mu.Unlock()
		return ErrStaleEvent
	}
	r.status = target
	r.mu.Unlock()

	r.observe(Observation{
		Kind:    ObservationTerminal,
		Status:  target,
		Message: message,
	})

	return nil
}

func (r *Reconciler) poll(ctx context.Context) {
	if r.Status().IsTerminal() {
		return
	}

	invoice, err := r.source.GetInvoice(ctx, r.invoiceID)
	if err != nil {
		// отсутствие информации не является свидетельством отказа:
		// статус счёта не меняется, наблюдение носит справочный характер
		r.logger.Warn("invoice status check failed",
			zap.Int64("invoiceID", r.invoiceID),
			zap.Error(err))
		r.observe(Observation{
			Kind:    ObservationCheckFailed,
			Status:  r.Status(),
			Message: "unable to verify payment status",
		})
		return
	}

	if invoice.Status == model.StatusPending {
		r.observe(Observation{
			Kind:    ObservationWaiting,
			Status:  model.StatusPending,
			Message: "waiting for client to complete payment",
		})
		return
	}

	if err := r.apply(invoice.Status, ""); err != nil {
		r.logger.Info("stale poll result discarded",
			zap.Int64("invoiceID", r.invoiceID),
			zap.String("status", string(invoice.Status)))
	}
}

func (r *Reconciler) observe(obs Observation) {
	select {
	case r.observations <- obs:
	default:
		r.logger.Debug("observation dropped, buffer full",
			zap.Int64("invoiceID", r.invoiceID),
			zap.String("kind", string(obs.Kind)))
	}
}
