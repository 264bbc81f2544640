package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mmeshcher/hotelier-system/internal/model"
	"github.com/mmeshcher/hotelier-system/internal/service"
)

type createBookingRequest struct {
	RoomID        int64  `json:"room_id"`
	GuestName     string `json:"guest_name"`
	GuestPhone    string `json:"guest_phone"`
	GuestEmail    string `json:"guest_email"`
	CheckIn       string `json:"check_in"`
	CheckOut      string `json:"check_out"`
	Guests        int    `json:"guests"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
}

type updateBookingRequest struct {
	RoomID        *int64  `json:"room_id"`
	CheckIn       *string `json:"check_in"`
	CheckOut      *string `json:"check_out"`
	Guests        *int    `json:"guests"`
	GuestName     *string `json:"guest_name"`
	GuestPhone    *string `json:"guest_phone"`
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
	PaymentMethod *string `json:"payment_method"`
}

type bookingResponse struct {
	ID            int64   `json:"id"`
	RoomID        int64   `json:"room_id"`
	GuestID       int64   `json:"guest_id"`
	GuestName     string  `json:"guest_name"`
	GuestPhone    string  `json:"guest_phone"`
	GuestEmail    string  `json:"guest_email,omitempty"`
	CheckIn       string  `json:"check_in"`
	CheckOut      string  `json:"check_out"`
	Guests        int     `json:"guests"`
	TotalPrice    float64 `json:"total_price"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	PaymentMethod string  `json:"payment_method"`
	CreatedAt     string  `json:"created_at"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		RoomID:        b.RoomID,
		GuestID:       b.GuestID,
		GuestName:     b.GuestName,
		GuestPhone:    b.GuestPhone,
		GuestEmail:    b.GuestEmail,
		CheckIn:       b.CheckIn.Format(dateLayout),
		CheckOut:      b.CheckOut.Format(dateLayout),
		Guests:        b.Guests,
		TotalPrice:    float64(b.TotalPriceCents) / 100,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PaymentMethod: string(b.PaymentMethod),
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
}

func validPaymentMethod(m string) bool {
	switch model.PaymentMethod(m) {
	case "", model.PaymentMethodCash, model.PaymentMethodMobileMoney:
		return true
	}
	return false
}

func validBookingStatus(s string) bool {
	switch model.BookingStatus(s) {
	case model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusCancelled:
		return true
	}
	return false
}

func validPaymentState(s string) bool {
	switch model.PaymentState(s) {
	case model.PaymentStateUnpaid, model.PaymentStatePending, model.PaymentStatePaid, model.PaymentStateFailed:
		return true
	}
	return false
}

type createBookingResponse struct {
	Booking        bookingResponse  `json:"booking"`
	Payment        *paymentResponse `json:"payment,omitempty"`
	PaymentMessage string           `json:"payment_message,omitempty"`
}

// CreateBooking создаёт бронирование. Неудача инициирования платежа не
// отменяет бронирование: клиент получает 201 с описанием проблемы и может
// повторить оплату позже.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	checkIn, okIn := parseDate(req.CheckIn)
	checkOut, okOut := parseDate(req.CheckOut)
	if req.RoomID <= 0 || !okIn || !okOut {
		writeError(w, http.StatusBadRequest, "invalid_request", "room_id, check_in and check_out are required")
		return
	}
	if !validPaymentMethod(req.PaymentMethod) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown payment method")
		return
	}
	if req.Status != "" && !validBookingStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown booking status")
		return
	}

	res, err := h.service.CreateBooking(r.Context(), principal, service.CreateBookingRequest{
		RoomID:        req.RoomID,
		GuestName:     req.GuestName,
		GuestPhone:    req.GuestPhone,
		GuestEmail:    req.GuestEmail,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		Guests:        req.Guests,
		Status:        model.BookingStatus(req.Status),
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := createBookingResponse{
		Booking:        toBookingResponse(res.Booking),
		PaymentMessage: res.PaymentMessage,
	}
	if res.Payment != nil {
		p := toPaymentResponse(*res.Payment)
		resp.Payment = &p
	}

	// Неудача инициирования платежа понижает успех, но не отменяет его:
	// бронирование создано, оплату можно повторить.
	message := ""
	if res.PaymentMessage != "" {
		message = "booking created, payment initiation failed"
	}

	writeJSON(w, http.StatusCreated, apiResponse{
		Success: true,
		Message: message,
		Data:    resp,
	})
}

// ListBookings возвращает бронирования: персоналу все, гостю только свои.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), principal)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, toBookingResponse(&bookings[i]))
	}
	writeData(w, http.StatusOK, resp)
}

// GetBooking возвращает бронирование по идентификатору.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid booking id")
		return
	}

	b, err := h.service.GetBooking(r.Context(), principal, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toBookingResponse(b))
}

// UpdateBooking частично обновляет бронирование.
func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid booking id")
		return
	}

	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	var upd service.UpdateBookingRequest
	upd.RoomID = req.RoomID
	upd.Guests = req.Guests
	upd.GuestName = req.GuestName
	upd.GuestPhone = req.GuestPhone

	if req.CheckIn != nil {
		t, ok := parseDate(*req.CheckIn)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "check_in must be a YYYY-MM-DD date")
			return
		}
		upd.CheckIn = &t
	}
	if req.CheckOut != nil {
		t, ok := parseDate(*req.CheckOut)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_request", "check_out must be a YYYY-MM-DD date")
			return
		}
		upd.CheckOut = &t
	}
	if req.Status != nil {
		if !validBookingStatus(*req.Status) {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown booking status")
			return
		}
		st := model.BookingStatus(*req.Status)
		upd.Status = &st
	}
	if req.PaymentStatus != nil {
		if !validPaymentState(*req.PaymentStatus) {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown payment status")
			return
		}
		ps := model.PaymentState(*req.PaymentStatus)
		upd.PaymentStatus = &ps
	}
	if req.PaymentMethod != nil {
		if *req.PaymentMethod == "" || !validPaymentMethod(*req.PaymentMethod) {
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown payment method")
			return
		}
		pm := model.PaymentMethod(*req.PaymentMethod)
		upd.PaymentMethod = &pm
	}

	b, err := h.service.UpdateBooking(r.Context(), principal, id, upd)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, toBookingResponse(b))
}

// CancelBooking отменяет бронирование.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid booking id")
		return
	}

	if err := h.service.CancelBooking(r.Context(), principal, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": string(model.BookingStatusCancelled)})
}
