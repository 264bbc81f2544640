// Package handler содержит HTTP-обработчики API сервиса бронирования отеля.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hotelier-system/internal/middleware"
	"github.com/mmeshcher/hotelier-system/internal/model"
	"github.com/mmeshcher/hotelier-system/internal/repository"
	"github.com/mmeshcher/hotelier-system/internal/service"
	"github.com/mmeshcher/hotelier-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, phone, fullName, password string, role model.Role) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)

	CreateRoom(ctx context.Context, rm *model.Room) (int64, error)
	UpdateRoom(ctx context.Context, rm *model.Room) error
	DeleteRoom(ctx context.Context, id int64) error
	GetRoomWithStatus(ctx context.Context, id int64) (*service.RoomWithStatus, error)
	ListRoomsWithStatus(ctx context.Context) ([]service.RoomWithStatus, error)
	SearchAvailability(ctx context.Context, checkIn, checkOut time.Time, guests int) ([]service.AvailableRoom, error)

	CreateBooking(ctx context.Context, principal model.Principal, req service.CreateBookingRequest) (*service.BookingResult, error)
	UpdateBooking(ctx context.Context, principal model.Principal, id int64, req service.UpdateBookingRequest) (*model.Booking, error)
	GetBooking(ctx context.Context, principal model.Principal, id int64) (*model.Booking, error)
	ListBookings(ctx context.Context, principal model.Principal) ([]model.Booking, error)
	CancelBooking(ctx context.Context, principal model.Principal, id int64) error

	RetryPayment(ctx context.Context, principal model.Principal, bookingID int64) (*model.Payment, string, error)
	ListPaymentsByBooking(ctx context.Context, principal model.Principal, bookingID int64) ([]model.Payment, error)
	ApplyGatewayResult(ctx context.Context, res service.GatewayResult) (bool, error)

	CreatePage(ctx context.Context, p *model.Page) (int64, error)
	GetPageBySlug(ctx context.Context, slug string) (*model.Page, error)
	ListPages(ctx context.Context, publishedOnly bool) ([]model.Page, error)
	UpdatePage(ctx context.Context, p *model.Page) error
	DeletePage(ctx context.Context, id int64) error

	GetDashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// Handler реализует HTTP-обработчики API сервиса бронирования отеля.
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

type apiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: code, Message: message})
}

// writeServiceError переводит ошибки бизнес-логики и хранилища в HTTP-ответы
// со стабильными машинными кодами.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidDates):
		writeError(w, http.StatusBadRequest, "invalid_dates", "check-out must be after check-in")
	case errors.Is(err, validation.ErrPastCheckIn):
		writeError(w, http.StatusBadRequest, "past_check_in", "check-in date is in the past")
	case errors.Is(err, validation.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid phone number")
	case errors.Is(err, service.ErrCashRequiresStaff):
		writeError(w, http.StatusBadRequest, "cash_requires_staff", "cash payments are registered by hotel staff only")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "operation not allowed")
	case errors.Is(err, service.ErrAlreadyPaid):
		writeError(w, http.StatusConflict, "payment_finalized", "booking is already paid")
	case errors.Is(err, repository.ErrRoomUnavailable):
		writeError(w, http.StatusConflict, "room_unavailable", "room is not available for the selected dates")
	case errors.Is(err, repository.ErrRoomNumberTaken):
		writeError(w, http.StatusConflict, "room_number_taken", "room number already exists")
	case errors.Is(err, repository.ErrRoomHasBookings):
		writeError(w, http.StatusConflict, "room_has_bookings", "room has active bookings")
	case errors.Is(err, repository.ErrSlugTaken):
		writeError(w, http.StatusConflict, "slug_taken", "page slug already exists")
	case errors.Is(err, repository.ErrUserExists):
		writeError(w, http.StatusConflict, "user_exists", "user already exists")
	case errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrPageNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	default:
		h.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return principal, ok
}

type registerRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
}

// Register обрабатывает регистрацию нового гостя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Email, req.Phone, req.FullName, req.Password, model.RoleGuest)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(userID, model.RoleGuest)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeData(w, http.StatusCreated, authResponse{
		Token:    token,
		UserID:   userID,
		Role:     string(model.RoleGuest),
		FullName: req.FullName,
	})
}

// Login выполняет аутентификацию пользователя и выпуск токена.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	token, err := h.authMiddleware.IssueToken(u.ID, u.Role)
	if err != nil {
		h.logger.Error("issue token error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeData(w, http.StatusOK, authResponse{
		Token:    token,
		UserID:   u.ID,
		Role:     string(u.Role),
		FullName: u.FullName,
	})
}

// GetDashboardStats возвращает агрегаты для панели администратора.
func (h *Handler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}
