// Package handler содержит HTTP-обработчики API сервиса dukapay.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/dukapay/internal/backend"
	"github.com/mmeshcher/dukapay/internal/middleware"
	"github.com/mmeshcher/dukapay/internal/model"
	"github.com/mmeshcher/dukapay/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	OpenSession(ctx context.Context, owner model.Session) (*service.SessionView, error)
	Items(sessionID string, owner model.Session) ([]model.Item, error)
	AddItem(sessionID string, owner model.Session, itemID int64) (*service.CartView, error)
	RemoveItem(sessionID string, owner model.Session, itemID int64) (*service.CartView, error)
	Cart(sessionID string, owner model.Session) (*service.CartView, error)
	RequestPayment(ctx context.Context, sessionID string, owner model.Session, phoneNumber string) (*service.PaymentRequestResult, error)
	PaymentStatus(sessionID string, owner model.Session) (*service.PaymentStatusView, error)
	CloseSession(sessionID string, owner model.Session) error
}

// Handler реализует HTTP-обработчики API сервиса dukapay.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// writeError переводит ошибки бизнес-логики в HTTP-ответы. Сообщения
// ошибок валидации и внешних сервисов показываются пользователю как есть.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	var validationErr *backend.ValidationError
	if errors.As(err, &validationErr) {
		http.Error(w, validationErr.Message, http.StatusBadRequest)
		return
	}

	var serviceErr *backend.ServiceError
	if errors.As(err, &serviceErr) {
		http.Error(w, serviceErr.Message, http.StatusBadGateway)
		return
	}

	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrNoActiveCheckout):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrUnknownItem):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, service.ErrCheckoutActive):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type itemResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Stock       int64   `json:"stock"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
}

func itemResponses(items []model.Item) []itemResponse {
	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, itemResponse{
			ID:          it.ID,
			Name:        it.Name,
			Price:       float64(it.PriceCents) / 100,
			Stock:       it.Stock,
			Description: it.Description,
			ImageURL:    it.PhotoURL,
		})
	}
	return resp
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Items     []itemResponse `json:"items"`
}

type cartLineResponse struct {
	ItemID   int64   `json:"item_id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Total    float64 `json:"total"`
}

type cartResponse struct {
	Lines []cartLineResponse `json:"lines"`
	Total float64            `json:"total"`
}

func cartResponseFrom(view *service.CartView) cartResponse {
	resp := cartResponse{
		Lines: make([]cartLineResponse, 0, len(view.Lines)),
		Total: float64(view.TotalCents) / 100,
	}
	for _, line := range view.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ItemID:   line.ItemID,
			Name:     line.Name,
			Price:    float64(line.PriceCents) / 100,
			Quantity: line.Quantity,
			Total:    float64(line.TotalCents) / 100,
		})
	}
	return resp
}

// OpenSession открывает сессию оформления для текущего пользователя.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	view, err := h.service.OpenSession(r.Context(), sess)
	if err != nil {
		h.writeError(w, err, "open session")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: view.SessionID,
		Items:     itemResponses(view.Items),
	})
}

// Items возвращает снимок каталога сессии оформления.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	sess, sessionID, ok := h.requestSession(w, r)
	if !ok {
		return
	}

	items, err := h.service.Items(sessionID, sess)
	if err != nil {
		h.writeError(w, err, "list items")
		return
	}

	writeJSON(w, http.StatusOK, itemResponses(items))
}

type addItemRequest struct {
	ItemID int64 `json:"item_id"`
}

// AddItem добавляет единицу товара в корзину сессии.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, sessionID, ok := h.requestSession(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.AddItem(sessionID, sess, req.ItemID)
	if err != nil {
		h.writeError(w, err, "add item")
		return
	}

	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

// RemoveItem убирает единицу товара из корзины сессии.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, sessionID, ok := h.requestSession(w, r)
	if !ok {
		return
	}

	itemID, err := strconv.ParseInt(urlParam(r, "itemID"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	view, err := h.service.RemoveItem(sessionID, sess, itemID)
	if err != nil {
		h.writeError(w, err, "remove item")
		return
	}

	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

// GetCart возвращает содержимое корзины сессии.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, sessionID, ok := h.requestSession(w, r)
	if !ok {
		return
	}

	view, err := h.service.Cart(sessionID, sess)
	if err != nil {
		h.writeError(w, err, "get cart")
		return
	}

	writeJSON(w, http.StatusOK, cartResponseFrom(view))
}

type paymentRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type paymentResponse struct {
	InvoiceID int64  `json:"invoice_id"`
	Message   string `json:"message"`
}

// RequestPayment создаёт счёт из корзины и инициирует push-платёж.
func (h *Handler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	sess, sessionID, ok := h.requestSession(w, r)
	if !ok {
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.RequestPayment(r.Context(), sessionID, sess, req.PhoneNumber)
	if err != nil {
		h.writeError(w, err, "request payment")
		return
	}

	writeJSON(w, http.StatusAccepted, paymentResponse{
		InvoiceID: result.InvoiceID,
		Message:   result.Message,
	})
}

type observationResponse struct {
	Kind    string `json:"kind"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type statusResponse struct {
	InvoiceID    int64                 `json:"invoice_id"`
	Status       string                `json:"status"`
	Observations []observationResponse `json:"observations,omitempty"`
}

// PaymentStatus возвращает наблюдаемый статус активного счёта сессии.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	sess, sessionID, ok := h.requestSession(w, r)
	if !ok {
		return
	}

	view, err := h.service.PaymentStatus(sessionID, sess)
	if err != nil {
		h.writeError(w, err, "payment status")
		return
	}

	resp := statusResponse{
		InvoiceID: view.InvoiceID,
		Status:    string(view.Status),
	}
	for _, obs := range view.Observations {
		resp.Observations = append(resp.Observations, observationResponse{
			Kind:    string(obs.Kind),
			Status:  string(obs.Status),
			Message: obs.Message,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// CloseSession завершает сессию оформления.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sess, sessionID, ok := h.requestSession(w, r)
	if !ok {
		return
	}

	if err := h.service.CloseSession(sessionID, sess); err != nil {
		h.writeError(w, err, "close session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestSession(w http.ResponseWriter, r *http.Request) (model.Session, string, bool) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return model.Session{}, "", false
	}

	return sess, urlParam(r, "sessionID"), true
}
