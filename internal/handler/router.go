package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	custommiddleware "github.com/mmeshcher/hotelier-system/internal/middleware"
	"github.com/mmeshcher/hotelier-system/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса бронирования отеля.
func (h *Handler) SetupRouter(rdb *redis.Client) *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.RateLimit(rdb))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Callback шлюза аутентифицируется содержимым (reference), не токеном.
		r.Post("/payments/webhook", h.PaymentWebhook)

		r.Get("/rooms", h.ListRooms)
		r.Get("/rooms/{id}", h.GetRoom)
		r.Get("/availability", h.SearchAvailability)

		r.Get("/pages", h.ListPages)
		r.Get("/pages/{slug}", h.GetPage)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/bookings", h.CreateBooking)
			r.Get("/bookings", h.ListBookings)
			r.Get("/bookings/{id}", h.GetBooking)
			r.Put("/bookings/{id}", h.UpdateBooking)
			r.Post("/bookings/{id}/cancel", h.CancelBooking)
			r.Post("/bookings/{id}/payments", h.RetryPayment)
			r.Get("/bookings/{id}/payments", h.ListBookingPayments)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleManager, model.RoleAdmin))

				r.Post("/rooms", h.CreateRoom)
				r.Put("/rooms/{id}", h.UpdateRoom)

				r.Get("/admin/pages", h.ListPages)
				r.Post("/pages", h.CreatePage)
				r.Put("/pages/{id}", h.UpdatePage)
				r.Delete("/pages/{id}", h.DeletePage)

				r.Get("/dashboard/stats", h.GetDashboardStats)
			})

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleAdmin))

				r.Delete("/rooms/{id}", h.DeleteRoom)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
