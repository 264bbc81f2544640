package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/hotelier-system/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name   string
		aStart time.Time
		aEnd   time.Time
		bStart time.Time
		bEnd   time.Time
		want   bool
	}{
		{
			name:   "full overlap",
			aStart: date(2025, 1, 10), aEnd: date(2025, 1, 12),
			bStart: date(2025, 1, 10), bEnd: date(2025, 1, 12),
			want: true,
		},
		{
			name:   "partial overlap at one day",
			aStart: date(2025, 1, 11), aEnd: date(2025, 1, 13),
			bStart: date(2025, 1, 10), bEnd: date(2025, 1, 12),
			want: true,
		},
		{
			name:   "touching endpoints do not overlap",
			aStart: date(2025, 1, 12), aEnd: date(2025, 1, 14),
			bStart: date(2025, 1, 10), bEnd: date(2025, 1, 12),
			want: false,
		},
		{
			name:   "touching endpoints reversed",
			aStart: date(2025, 1, 8), aEnd: date(2025, 1, 10),
			bStart: date(2025, 1, 10), bEnd: date(2025, 1, 12),
			want: false,
		},
		{
			name:   "contained interval",
			aStart: date(2025, 1, 11), aEnd: date(2025, 1, 12),
			bStart: date(2025, 1, 10), bEnd: date(2025, 1, 15),
			want: true,
		},
		{
			name:   "disjoint intervals",
			aStart: date(2025, 2, 1), aEnd: date(2025, 2, 3),
			bStart: date(2025, 1, 10), bEnd: date(2025, 1, 12),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd)
			assert.Equal(t, tt.want, got)

			// Пересечение симметрично относительно порядка аргументов.
			assert.Equal(t, tt.want, Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd))
		})
	}
}

func TestIsAvailable(t *testing.T) {
	existing := []model.Booking{
		{ID: 1, Status: model.BookingStatusConfirmed, CheckIn: date(2025, 1, 10), CheckOut: date(2025, 1, 12)},
		{ID: 2, Status: model.BookingStatusCancelled, CheckIn: date(2025, 1, 12), CheckOut: date(2025, 1, 20)},
	}

	if IsAvailable(existing, date(2025, 1, 11), date(2025, 1, 13), 0) {
		t.Fatalf("room must be unavailable for [Jan 11, Jan 13): overlap at Jan 11")
	}
	if !IsAvailable(existing, date(2025, 1, 12), date(2025, 1, 14), 0) {
		t.Fatalf("room must be available for [Jan 12, Jan 14): touching boundary is not an overlap")
	}
	if !IsAvailable(existing, date(2025, 1, 13), date(2025, 1, 15), 0) {
		t.Fatalf("cancelled booking must not block availability")
	}
}

func TestIsAvailable_ExcludesOwnBooking(t *testing.T) {
	existing := []model.Booking{
		{ID: 7, Status: model.BookingStatusPending, CheckIn: date(2025, 3, 1), CheckOut: date(2025, 3, 5)},
	}

	if IsAvailable(existing, date(2025, 3, 2), date(2025, 3, 6), 0) {
		t.Fatalf("conflicting edit without exclusion must be rejected")
	}
	if !IsAvailable(existing, date(2025, 3, 2), date(2025, 3, 6), 7) {
		t.Fatalf("booking must not conflict with itself during an edit")
	}
}

func TestNightsAndTotalPrice(t *testing.T) {
	tests := []struct {
		name      string
		checkIn   time.Time
		checkOut  time.Time
		nights    int
		wantTotal int64
	}{
		{
			name:    "three nights",
			checkIn: date(2025, 1, 1), checkOut: date(2025, 1, 4),
			nights: 3, wantTotal: 30000,
		},
		{
			name:    "same day charges minimum one night",
			checkIn: date(2025, 1, 1), checkOut: date(2025, 1, 1),
			nights: 1, wantTotal: 10000,
		},
		{
			name:    "partial day rounds up",
			checkIn: time.Date(2025, 1, 1, 14, 0, 0, 0, time.UTC), checkOut: time.Date(2025, 1, 2, 11, 0, 0, 0, time.UTC),
			nights: 1, wantTotal: 10000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.nights, Nights(tt.checkIn, tt.checkOut))
			assert.Equal(t, tt.wantTotal, TotalPriceCents(10000, tt.checkIn, tt.checkOut))
		})
	}
}

func TestProjectStatus_Occupied(t *testing.T) {
	room := model.Room{ID: 1, Status: model.RoomStatusAvailable}
	now := date(2025, 1, 11)
	bookings := []model.Booking{
		{ID: 1, Status: model.BookingStatusConfirmed, CheckIn: date(2025, 1, 10), CheckOut: date(2025, 1, 12)},
		{ID: 2, Status: model.BookingStatusConfirmed, CheckIn: date(2025, 1, 12), CheckOut: date(2025, 1, 15)},
	}

	status, next := ProjectStatus(room, bookings, now)
	assert.Equal(t, model.RoomStatusOccupied, status)
	if assert.NotNil(t, next) {
		// Стыкующееся следующее бронирование дату не продлевает.
		assert.Equal(t, date(2025, 1, 12), *next)
	}
}

func TestProjectStatus_AvailableWhenNoCoveringBooking(t *testing.T) {
	room := model.Room{ID: 1, Status: model.RoomStatusOccupied}
	now := date(2025, 1, 5)
	bookings := []model.Booking{
		{ID: 1, Status: model.BookingStatusConfirmed, CheckIn: date(2025, 1, 10), CheckOut: date(2025, 1, 12)},
	}

	// Ручной статус occupied перекрывается живой проекцией.
	status, next := ProjectStatus(room, bookings, now)
	assert.Equal(t, model.RoomStatusAvailable, status)
	assert.Nil(t, next)
}

func TestProjectStatus_MaintenanceIsAuthoritative(t *testing.T) {
	room := model.Room{ID: 1, Status: model.RoomStatusMaintenance}
	now := date(2025, 1, 11)
	bookings := []model.Booking{
		{ID: 1, Status: model.BookingStatusConfirmed, CheckIn: date(2025, 1, 10), CheckOut: date(2025, 1, 12)},
	}

	status, next := ProjectStatus(room, bookings, now)
	assert.Equal(t, model.RoomStatusMaintenance, status)
	assert.Nil(t, next)
}

func TestNoOverlapInvariantForPairs(t *testing.T) {
	// Для любой пары нетронутых бронирований одного номера, прошедших проверку
	// последовательно, инвариант отсутствия пересечения обязан сохраняться.
	var accepted []model.Booking
	candidates := []struct {
		in  time.Time
		out time.Time
	}{
		{date(2025, 1, 10), date(2025, 1, 12)},
		{date(2025, 1, 12), date(2025, 1, 14)}, // стыкуется — допустимо
		{date(2025, 1, 11), date(2025, 1, 13)}, // пересекается — отклоняется
		{date(2025, 1, 14), date(2025, 1, 20)},
		{date(2025, 1, 5), date(2025, 1, 11)}, // пересекается — отклоняется
	}

	nextID := int64(1)
	for _, c := range candidates {
		if IsAvailable(accepted, c.in, c.out, 0) {
			accepted = append(accepted, model.Booking{
				ID:      nextID,
				Status:  model.BookingStatusPending,
				CheckIn: c.in, CheckOut: c.out,
			})
			nextID++
		}
	}

	assert.Len(t, accepted, 3)
	for i := range accepted {
		for j := range accepted {
			if i == j {
				continue
			}
			a, b := accepted[i], accepted[j]
			if a.CheckIn.Before(b.CheckOut) && a.CheckOut.After(b.CheckIn) {
				t.Fatalf("accepted bookings %d and %d overlap", a.ID, b.ID)
			}
		}
	}
}
