package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/hotelier-system/internal/events"
	"github.com/mmeshcher/hotelier-system/internal/gateway"
	"github.com/mmeshcher/hotelier-system/internal/model"
	"github.com/mmeshcher/hotelier-system/internal/repository"
)

const (
	reconcileInterval = 30 * time.Second
	reconcileAge      = 2 * time.Minute
	reconcileBatch    = 50
)

// newPaymentReference генерирует ключ корреляции платежа. Уникальность
// окончательно гарантирует ограничение БД; случайный суффикс делает коллизию
// практически невозможной.
func newPaymentReference() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("PAY-%d-%s", time.Now().UTC().UnixNano(), hex.EncodeToString(buf))
}

// initiatePayment создаёт платёжную запись и отправляет запрос на списание в
// шлюз. Запись сохраняется в статусе pending до обращения к шлюзу: callback,
// пришедший раньше ответа на submit, найдёт её по reference. Неудача шлюза
// переводит платёж в failed с причиной; ошибка возвращается только при
// невозможности сохранить запись.
func (s *Service) initiatePayment(ctx context.Context, b *model.Booking, payerID int64) (*model.Payment, string, error) {
	p := &model.Payment{
		BookingID:   b.ID,
		PayerID:     payerID,
		Reference:   newPaymentReference(),
		AmountCents: b.TotalPriceCents,
		Currency:    s.currency,
		Method:      model.PaymentMethodMobileMoney,
		Phone:       b.GuestPhone,
		Status:      model.ChargeStatusPending,
	}

	id, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return nil, "", fmt.Errorf("create payment: %w", err)
	}
	p.ID = id

	if s.gateway == nil {
		return s.failPayment(ctx, p, "payment gateway is not configured")
	}

	res, err := s.gateway.SubmitCharge(ctx, gateway.ChargeRequest{
		Amount:    p.AmountCents,
		Currency:  p.Currency,
		Phone:     p.Phone,
		Reference: p.Reference,
		Narration: fmt.Sprintf("Booking #%d", b.ID),
	})
	if err != nil {
		return s.failPayment(ctx, p, "payment gateway unreachable, please retry")
	}
	if !res.Accepted {
		return s.failPayment(ctx, p, res.Message)
	}

	if err := s.repo.SetBookingPaymentState(ctx, b.ID, model.PaymentStatePending); err != nil {
		return nil, "", fmt.Errorf("set booking payment state: %w", err)
	}
	return p, "", nil
}

// recordCashPayment создаёт платёжную запись для оплаты наличными. Запись
// остаётся в pending до ручной отметки оплаты персоналом; шлюз не участвует.
func (s *Service) recordCashPayment(ctx context.Context, b *model.Booking, payerID int64) (*model.Payment, error) {
	p := &model.Payment{
		BookingID:   b.ID,
		PayerID:     payerID,
		Reference:   newPaymentReference(),
		AmountCents: b.TotalPriceCents,
		Currency:    s.currency,
		Method:      model.PaymentMethodCash,
		Phone:       b.GuestPhone,
		Status:      model.ChargeStatusPending,
	}

	id, err := s.repo.CreatePayment(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	p.ID = id
	return p, nil
}

// settlePendingPayments проводит незавершённые платёжные записи бронирования
// как успешные при ручной отметке оплаты персоналом. Проводка идёт тем же
// путём, что и подтверждение шлюза, поэтому фоновая сверка уже не перепишет
// результат.
func (s *Service) settlePendingPayments(ctx context.Context, bookingID int64) {
	payments, err := s.repo.ListPaymentsByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Warn("list payments for settlement failed", zap.Int64("booking_id", bookingID), zap.Error(err))
		return
	}

	for _, p := range payments {
		if p.Status != model.ChargeStatusPending {
			continue
		}
		applied, err := s.repo.ApplyPaymentSuccess(ctx, p.Reference, "", time.Now().UTC())
		if err != nil {
			s.logger.Warn("settle payment failed", zap.String("reference", p.Reference), zap.Error(err))
			continue
		}
		if applied {
			s.publishConfirmed(ctx, p.Reference)
		}
	}
}

func (s *Service) failPayment(ctx context.Context, p *model.Payment, reason string) (*model.Payment, string, error) {
	if err := s.repo.MarkPaymentFailed(ctx, p.ID, reason); err != nil {
		return nil, "", fmt.Errorf("mark payment failed: %w", err)
	}
	p.Status = model.ChargeStatusFailed
	p.FailureReason = &reason
	return p, reason, nil
}

// RetryPayment инициирует новую попытку оплаты бронирования. Каждая попытка
// получает новую платёжную запись с новым reference; прежние записи остаются
// в истории. Оплаченное бронирование повторную оплату не допускает.
func (s *Service) RetryPayment(ctx context.Context, principal model.Principal, bookingID int64) (*model.Payment, string, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	if !principal.Role.IsStaff() && b.GuestID != principal.UserID {
		return nil, "", ErrForbidden
	}
	if b.PaymentStatus == model.PaymentStatePaid {
		return nil, "", ErrAlreadyPaid
	}
	if b.Status == model.BookingStatusCancelled {
		return nil, "", ErrForbidden
	}

	return s.initiatePayment(ctx, b, principal.UserID)
}

// ListPaymentsByBooking возвращает платёжные попытки бронирования.
func (s *Service) ListPaymentsByBooking(ctx context.Context, principal model.Principal, bookingID int64) ([]model.Payment, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !principal.Role.IsStaff() && b.GuestID != principal.UserID {
		return nil, ErrForbidden
	}
	return s.repo.ListPaymentsByBooking(ctx, bookingID)
}

// GatewayResult описывает исход платежа, сообщённый шлюзом: через callback
// или опросом статуса.
type GatewayResult struct {
	Reference     string
	Status        string
	TransactionID string
	Message       string
}

// ApplyGatewayResult применяет исход платежа от шлюза. Первый терминальный
// статус по reference побеждает; повторные и конфликтующие уведомления
// игнорируются (applied=false). Неизвестный reference подтверждается без
// изменений: шлюз не должен ретраить такой callback бесконечно.
func (s *Service) ApplyGatewayResult(ctx context.Context, res GatewayResult) (bool, error) {
	switch res.Status {
	case "success", "successful":
		txnID := res.TransactionID
		applied, err := s.repo.ApplyPaymentSuccess(ctx, res.Reference, txnID, time.Now().UTC())
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				s.logger.Warn("gateway result for unknown reference", zap.String("reference", res.Reference))
				return false, nil
			}
			return false, err
		}
		if applied {
			s.publishConfirmed(ctx, res.Reference)
		}
		return applied, nil

	case "failed":
		reason := res.Message
		if reason == "" {
			reason = "charge failed"
		}
		applied, err := s.repo.ApplyPaymentFailure(ctx, res.Reference, reason)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				s.logger.Warn("gateway result for unknown reference", zap.String("reference", res.Reference))
				return false, nil
			}
			return false, err
		}
		return applied, nil

	default:
		// Нетерминальные статусы (pending, processing) не меняют состояние.
		return false, nil
	}
}

func (s *Service) publishConfirmed(ctx context.Context, reference string) {
	p, err := s.repo.GetPaymentByReference(ctx, reference)
	if err != nil {
		return
	}
	b, err := s.repo.GetBooking(ctx, p.BookingID)
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, events.QueueBookingConfirmed, bookingEvent(b, string(model.BookingStatusConfirmed))); err != nil {
		s.logger.Warn("publish booking.confirmed failed", zap.Int64("booking_id", b.ID), zap.Error(err))
	}
}

// StartPaymentReconciliation запускает фоновую сверку зависших платежей.
// Платежи, остающиеся в pending дольше reconcileAge, опрашиваются в шлюзе по
// reference; полученный терминальный статус применяется тем же путём, что и
// callback. Сверка закрывает окно потерянных callback'ов.
func (s *Service) StartPaymentReconciliation(ctx context.Context) {
	if s.gateway == nil {
		s.logger.Info("payment reconciliation disabled: gateway is not configured")
		return
	}

	ticker := time.NewTicker(reconcileInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.reconcilePendingPayments(ctx)
			}
		}
	}()
}

func (s *Service) reconcilePendingPayments(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-reconcileAge)

	pending, err := s.repo.PendingPaymentsBefore(ctx, cutoff, reconcileBatch)
	if err != nil {
		s.logger.Error("failed to load pending payments", zap.Error(err))
		return
	}

	for _, p := range pending {
		var status *gateway.ChargeStatus
		var code int

		backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			var reqErr error
			status, code, reqErr = s.gateway.GetChargeStatus(ctx, p.Reference)
			if reqErr != nil {
				return retry.RetryableError(reqErr)
			}
			return nil
		})
		if err != nil {
			s.logger.Warn("charge status request failed",
				zap.String("reference", p.Reference),
				zap.Error(err))
			continue
		}

		if code == http.StatusNotFound || status == nil {
			// Шлюз не знает о таком списании: запрос submit до него не дошёл.
			if _, err := s.repo.ApplyPaymentFailure(ctx, p.Reference, "charge not found at gateway"); err != nil {
				s.logger.Error("failed to fail orphaned payment",
					zap.String("reference", p.Reference),
					zap.Error(err))
			}
			continue
		}

		txn := ""
		if status.TransactionID != nil {
			txn = *status.TransactionID
		}

		applied, err := s.ApplyGatewayResult(ctx, GatewayResult{
			Reference:     p.Reference,
			Status:        status.Status,
			TransactionID: txn,
			Message:       status.Message,
		})
		if err != nil {
			s.logger.Error("failed to apply reconciled status",
				zap.String("reference", p.Reference),
				zap.Error(err))
			continue
		}
		if applied {
			s.logger.Info("payment reconciled",
				zap.String("reference", p.Reference),
				zap.String("status", status.Status))
		}
	}
}
