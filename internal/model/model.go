// Package model содержит доменные сущности сервиса бронирования отеля.
package model

import "time"

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleGuest   Role = "guest"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// IsStaff сообщает, относится ли роль к персоналу отеля.
func (r Role) IsStaff() bool {
	return r == RoleManager || r == RoleAdmin
}

// Principal — нормализованный результат аутентификации: идентификатор
// субъекта и его роль. Формируется один раз на границе HTTP и дальше
// используется всеми проверками авторизации.
type Principal struct {
	UserID int64
	Role   Role
}

// User представляет пользователя: гостя или сотрудника отеля.
type User struct {
	ID           int64
	Email        string
	Phone        string
	FullName     string
	Role         Role
	PasswordHash []byte
	CreatedAt    time.Time
}

// RoomStatus описывает ручной статус номера, выставляемый администратором.
// Статус maintenance авторитетен и подавляет вычисляемую занятость; остальные
// значения перекрываются живой проекцией по активным бронированиям.
type RoomStatus string

const (
	RoomStatusAvailable   RoomStatus = "available"
	RoomStatusOccupied    RoomStatus = "occupied"
	RoomStatusMaintenance RoomStatus = "maintenance"
)

// Room описывает номер отеля. Цена за ночь хранится в минорных единицах валюты.
type Room struct {
	ID          int64
	Number      string
	Type        string
	PriceCents  int64
	Capacity    int
	Amenities   []string
	Description string
	IsActive    bool
	Status      RoomStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BookingStatus описывает статус жизненного цикла бронирования.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentState описывает платёжный статус бронирования. Ведётся отдельно от
// BookingStatus: поля коррелируют, но меняются независимо.
type PaymentState string

const (
	PaymentStateUnpaid  PaymentState = "unpaid"
	PaymentStatePending PaymentState = "pending"
	PaymentStatePaid    PaymentState = "paid"
	PaymentStateFailed  PaymentState = "failed"
)

// PaymentMethod описывает способ оплаты бронирования.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
)

// Booking описывает бронирование номера. Интервал проживания хранится как
// полуинтервал [CheckIn, CheckOut): дата выезда не входит в проживание,
// поэтому выезд одного гостя и заезд другого в тот же день не конфликтуют.
type Booking struct {
	ID              int64
	RoomID          int64
	GuestID         int64
	GuestName       string
	GuestPhone      string
	GuestEmail      string
	CheckIn         time.Time
	CheckOut        time.Time
	Guests          int
	TotalPriceCents int64
	Status          BookingStatus
	PaymentStatus   PaymentState
	PaymentMethod   PaymentMethod
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChargeStatus описывает статус платёжной записи.
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusSuccess ChargeStatus = "success"
	ChargeStatusFailed  ChargeStatus = "failed"
)

// Payment описывает платёжную запись. Reference — локально сгенерированный
// ключ корреляции с внешним шлюзом: шлюз возвращает его в callback дословно,
// и только по нему подтверждение сопоставляется с локальной записью.
// Уникальность Reference обеспечивается ограничением в БД.
type Payment struct {
	ID            int64
	BookingID     int64
	PayerID       int64
	Reference     string
	AmountCents   int64
	Currency      string
	Method        PaymentMethod
	Phone         string
	Status        ChargeStatus
	ProviderTxnID *string
	FailureReason *string
	CreatedAt     time.Time
	PaidAt        *time.Time
}

// Page описывает контентную страницу CMS.
type Page struct {
	ID        int64
	Slug      string
	Title     string
	Body      string
	Published bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DashboardStats содержит агрегаты для панели администратора.
type DashboardStats struct {
	TotalRooms        int64   `json:"total_rooms"`
	OccupiedRooms     int64   `json:"occupied_rooms"`
	MaintenanceRooms  int64   `json:"maintenance_rooms"`
	PendingBookings   int64   `json:"pending_bookings"`
	ConfirmedBookings int64   `json:"confirmed_bookings"`
	CancelledBookings int64   `json:"cancelled_bookings"`
	PaidRevenue       float64 `json:"paid_revenue"`
}
