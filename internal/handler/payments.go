package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hotelier-system/internal/model"
	"github.com/mmeshcher/hotelier-system/internal/service"
)

type paymentResponse struct {
	ID            int64   `json:"id"`
	BookingID     int64   `json:"booking_id"`
	Reference     string  `json:"reference"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Method        string  `json:"method"`
	Status        string  `json:"status"`
	ProviderTxnID *string `json:"provider_txn_id,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
	PaidAt        *string `json:"paid_at,omitempty"`
}

func toPaymentResponse(p model.Payment) paymentResponse {
	resp := paymentResponse{
		ID:            p.ID,
		BookingID:     p.BookingID,
		Reference:     p.Reference,
		Amount:        float64(p.AmountCents) / 100,
		Currency:      p.Currency,
		Method:        string(p.Method),
		Status:        string(p.Status),
		ProviderTxnID: p.ProviderTxnID,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if p.PaidAt != nil {
		v := p.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &v
	}
	return resp
}

// RetryPayment инициирует новую попытку оплаты бронирования.
func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid booking id")
		return
	}

	p, msg, err := h.service.RetryPayment(r.Context(), principal, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: msg,
		Data:    toPaymentResponse(*p),
	})
}

// ListBookingPayments возвращает платёжные попытки бронирования.
func (h *Handler) ListBookingPayments(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	id, ok := parseID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid booking id")
		return
	}

	payments, err := h.service.ListPaymentsByBooking(r.Context(), principal, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	writeData(w, http.StatusOK, resp)
}

type webhookRequest struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

// PaymentWebhook принимает callback платёжного шлюза об исходе списания.
// Ответ 200 подтверждает приём: повторные, запоздавшие и неизвестные
// уведомления подтверждаются без изменений, иначе шлюз будет ретраить их
// бесконечно.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	if req.Reference == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "reference and status are required")
		return
	}

	applied, err := h.service.ApplyGatewayResult(r.Context(), service.GatewayResult{
		Reference:     req.Reference,
		Status:        req.Status,
		TransactionID: req.TransactionID,
		Message:       req.Message,
	})
	if err != nil {
		h.logger.Error("webhook processing error", zap.String("reference", req.Reference), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeData(w, http.StatusOK, map[string]bool{"applied": applied})
}
