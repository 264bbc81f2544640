package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hotelier-system/internal/availability"
	"github.com/mmeshcher/hotelier-system/internal/events"
	"github.com/mmeshcher/hotelier-system/internal/model"
	"github.com/mmeshcher/hotelier-system/internal/validation"
)

// CreateBookingRequest описывает входные данные на создание бронирования.
// Пустой Status означает pending; явный статус доступен только персоналу.
type CreateBookingRequest struct {
	RoomID        int64
	GuestName     string
	GuestPhone    string
	GuestEmail    string
	CheckIn       time.Time
	CheckOut      time.Time
	Guests        int
	Status        model.BookingStatus
	PaymentMethod model.PaymentMethod
}

// BookingResult описывает исход создания бронирования: само бронирование и
// состояние инициированного платежа. PaymentMessage заполняется, когда
// мобильный платёж не удалось инициировать; бронирование при этом сохраняется.
type BookingResult struct {
	Booking        *model.Booking
	Payment        *model.Payment
	PaymentMessage string
}

// CreateBooking создаёт бронирование от имени principal. Доступность номера
// проверяется повторно внутри транзакции записи, поэтому два конкурирующих
// запроса на пересекающийся интервал не могут записаться оба. Для
// mobile_money после записи инициируется платёж; его неудача не откатывает
// бронирование.
func (s *Service) CreateBooking(ctx context.Context, principal model.Principal, req CreateBookingRequest) (*BookingResult, error) {
	if err := validation.ValidateStay(req.CheckIn, req.CheckOut, time.Now().UTC()); err != nil {
		return nil, err
	}

	if req.PaymentMethod == "" {
		req.PaymentMethod = model.PaymentMethodMobileMoney
	}
	if req.PaymentMethod == model.PaymentMethodCash && !principal.Role.IsStaff() {
		return nil, ErrCashRequiresStaff
	}

	status := model.BookingStatusPending
	if req.Status != "" {
		if !principal.Role.IsStaff() {
			return nil, ErrForbidden
		}
		status = req.Status
	}

	phone := req.GuestPhone
	if phone != "" {
		normalized, err := validation.NormalizePhone(phone, s.countryCode)
		if err != nil {
			return nil, err
		}
		phone = normalized
	}

	rm, err := s.repo.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	guestID := principal.UserID
	if principal.Role.IsStaff() {
		guestID, err = s.resolveGuest(ctx, req.GuestName, phone, req.GuestEmail)
		if err != nil {
			return nil, fmt.Errorf("resolve guest: %w", err)
		}
	}

	b := &model.Booking{
		RoomID:          req.RoomID,
		GuestID:         guestID,
		GuestName:       req.GuestName,
		GuestPhone:      phone,
		GuestEmail:      req.GuestEmail,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		TotalPriceCents: availability.TotalPriceCents(rm.PriceCents, req.CheckIn, req.CheckOut),
		Status:          status,
		PaymentStatus:   model.PaymentStateUnpaid,
		PaymentMethod:   req.PaymentMethod,
		CreatedBy:       principal.UserID,
	}

	id, err := s.repo.CreateBooking(ctx, b)
	if err != nil {
		return nil, err
	}
	b.ID = id

	if err := s.events.Publish(ctx, events.QueueBookingCreated, bookingEvent(b, string(b.Status))); err != nil {
		s.logger.Warn("publish booking.created failed", zap.Int64("booking_id", b.ID), zap.Error(err))
	}

	result := &BookingResult{Booking: b}

	switch req.PaymentMethod {
	case model.PaymentMethodMobileMoney:
		p, msg, payErr := s.initiatePayment(ctx, b, principal.UserID)
		if payErr != nil {
			return nil, payErr
		}
		result.Payment = p
		result.PaymentMessage = msg
		switch p.Status {
		case model.ChargeStatusPending:
			b.PaymentStatus = model.PaymentStatePending
		case model.ChargeStatusFailed:
			b.PaymentStatus = model.PaymentStateFailed
		}
	case model.PaymentMethodCash:
		p, payErr := s.recordCashPayment(ctx, b, principal.UserID)
		if payErr != nil {
			return nil, payErr
		}
		result.Payment = p
	}

	return result, nil
}

// UpdateBookingRequest описывает частичное обновление бронирования. Нулевые
// указатели означают "не менять". Статусные и платёжные поля доступны только
// персоналу: ими оформляется, в частности, оплата наличными на стойке.
type UpdateBookingRequest struct {
	RoomID        *int64
	CheckIn       *time.Time
	CheckOut      *time.Time
	Guests        *int
	GuestName     *string
	GuestPhone    *string
	Status        *model.BookingStatus
	PaymentStatus *model.PaymentState
	PaymentMethod *model.PaymentMethod
}

// UpdateBooking обновляет бронирование. Смена номера или дат заново проверяет
// доступность (текущее бронирование из проверки исключается) и пересчитывает
// стоимость по актуальной цене номера. Ручная отметка оплаты проводит
// незавершённые платёжные записи бронирования как успешные.
func (s *Service) UpdateBooking(ctx context.Context, principal model.Principal, id int64, req UpdateBookingRequest) (*model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.Role.IsStaff() && b.GuestID != principal.UserID {
		return nil, ErrForbidden
	}
	if (req.Status != nil || req.PaymentStatus != nil || req.PaymentMethod != nil) && !principal.Role.IsStaff() {
		return nil, ErrForbidden
	}

	wasPaid := b.PaymentStatus == model.PaymentStatePaid

	datesChanged := false
	if req.RoomID != nil && *req.RoomID != b.RoomID {
		b.RoomID = *req.RoomID
		datesChanged = true
	}
	if req.CheckIn != nil {
		b.CheckIn = *req.CheckIn
		datesChanged = true
	}
	if req.CheckOut != nil {
		b.CheckOut = *req.CheckOut
		datesChanged = true
	}
	if req.Guests != nil {
		b.Guests = *req.Guests
	}
	if req.GuestName != nil {
		b.GuestName = *req.GuestName
	}
	if req.GuestPhone != nil {
		normalized, err := validation.NormalizePhone(*req.GuestPhone, s.countryCode)
		if err != nil {
			return nil, err
		}
		b.GuestPhone = normalized
	}
	if req.Status != nil {
		b.Status = *req.Status
	}
	if req.PaymentStatus != nil {
		b.PaymentStatus = *req.PaymentStatus
	}
	if req.PaymentMethod != nil {
		b.PaymentMethod = *req.PaymentMethod
	}

	if datesChanged {
		if !b.CheckOut.After(b.CheckIn) {
			return nil, validation.ErrInvalidDates
		}

		rm, err := s.repo.GetRoom(ctx, b.RoomID)
		if err != nil {
			return nil, err
		}
		b.TotalPriceCents = availability.TotalPriceCents(rm.PriceCents, b.CheckIn, b.CheckOut)
	}

	if err := s.repo.UpdateBooking(ctx, b); err != nil {
		return nil, err
	}

	if req.PaymentStatus != nil && *req.PaymentStatus == model.PaymentStatePaid && !wasPaid {
		s.settlePendingPayments(ctx, b.ID)
		return s.repo.GetBooking(ctx, b.ID)
	}
	return b, nil
}

// GetBooking возвращает бронирование; гость видит только свои.
func (s *Service) GetBooking(ctx context.Context, principal model.Principal, id int64) (*model.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.Role.IsStaff() && b.GuestID != principal.UserID {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListBookings возвращает бронирования: персоналу все, гостю только свои.
func (s *Service) ListBookings(ctx context.Context, principal model.Principal) ([]model.Booking, error) {
	if principal.Role.IsStaff() {
		return s.repo.ListBookings(ctx)
	}
	return s.repo.ListBookingsByGuest(ctx, principal.UserID)
}

// CancelBooking отменяет бронирование. Отмена терминальна и доступна владельцу
// или персоналу.
func (s *Service) CancelBooking(ctx context.Context, principal model.Principal, id int64) error {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if !principal.Role.IsStaff() && b.GuestID != principal.UserID {
		return ErrForbidden
	}

	if b.Status == model.BookingStatusCancelled {
		return nil
	}

	if err := s.repo.CancelBooking(ctx, id); err != nil {
		return err
	}

	if err := s.events.Publish(ctx, events.QueueBookingCancelled, bookingEvent(b, string(model.BookingStatusCancelled))); err != nil {
		s.logger.Warn("publish booking.cancelled failed", zap.Int64("booking_id", id), zap.Error(err))
	}
	return nil
}

func bookingEvent(b *model.Booking, status string) events.BookingEvent {
	return events.BookingEvent{
		BookingID:  b.ID,
		RoomID:     b.RoomID,
		GuestID:    b.GuestID,
		Status:     status,
		TotalPrice: float64(b.TotalPriceCents) / 100,
		OccurredAt: time.Now().UTC(),
	}
}
