// Package availability содержит чистые функции проверки занятости номеров,
// расчёта стоимости проживания и проекции текущего статуса номера.
package availability

import (
	"math"
	"time"

	"github.com/mmeshcher/hotelier-system/internal/model"
)

// Overlaps сообщает, пересекаются ли два полуинтервала [aStart, aEnd) и
// [bStart, bEnd). Совпадение границ пересечением не считается: выезд одного
// бронирования в день заезда другого допустим.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// IsAvailable проверяет, свободен ли номер на интервал [checkIn, checkOut)
// относительно переданного списка бронирований. Учитываются только
// бронирования в статусах pending и confirmed; бронирование с идентификатором
// excludeID пропускается, что позволяет перепроверять изменяемое бронирование
// против всех остальных. Функция не имеет побочных эффектов: снимок
// бронирований должен быть согласованным на стороне вызывающего.
func IsAvailable(bookings []model.Booking, checkIn, checkOut time.Time, excludeID int64) bool {
	for _, b := range bookings {
		if b.ID == excludeID {
			continue
		}
		if b.Status != model.BookingStatusPending && b.Status != model.BookingStatusConfirmed {
			continue
		}
		if Overlaps(checkIn, checkOut, b.CheckIn, b.CheckOut) {
			return false
		}
	}
	return true
}

// Nights возвращает число ночей проживания для интервала [checkIn, checkOut).
// Неполные сутки округляются вверх; минимум — одна ночь.
func Nights(checkIn, checkOut time.Time) int {
	nights := int(math.Ceil(checkOut.Sub(checkIn).Hours() / 24))
	if nights < 1 {
		nights = 1
	}
	return nights
}

// TotalPriceCents возвращает полную стоимость проживания в минорных единицах:
// цена за ночь, умноженная на число ночей.
func TotalPriceCents(nightlyCents int64, checkIn, checkOut time.Time) int64 {
	return nightlyCents * int64(Nights(checkIn, checkOut))
}

// ProjectStatus вычисляет текущий статус номера на момент now. Ручной статус
// maintenance авторитетен и возвращается как есть. Иначе номер считается
// занятым, если какое-либо бронирование в статусе pending или confirmed
// покрывает текущий момент; тогда вторым значением возвращается дата выезда
// этого бронирования. Стыкующиеся будущие бронирования дату не продлевают:
// учитывается только одно покрывающее бронирование.
func ProjectStatus(room model.Room, bookings []model.Booking, now time.Time) (model.RoomStatus, *time.Time) {
	if room.Status == model.RoomStatusMaintenance {
		return model.RoomStatusMaintenance, nil
	}
	for _, b := range bookings {
		if b.Status != model.BookingStatusPending && b.Status != model.BookingStatusConfirmed {
			continue
		}
		if !b.CheckOut.After(now) {
			continue
		}
		if !b.CheckIn.After(now) {
			out := b.CheckOut
			return model.RoomStatusOccupied, &out
		}
	}
	return model.RoomStatusAvailable, nil
}
