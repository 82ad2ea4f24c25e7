package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/dukapay/internal/middleware"
)

// urlParam возвращает значение именованного параметра маршрута.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// SetupRouter настраивает HTTP-маршруты и middleware сервиса dukapay.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/checkout", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/sessions", h.OpenSession)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", h.CloseSession)

			r.Get("/items", h.Items)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.AddItem)
			r.Delete("/cart/{itemID}", h.RemoveItem)

			r.Post("/payment", h.RequestPayment)
			r.Get("/payment", h.PaymentStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
