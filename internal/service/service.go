// Package service реализует бизнес-логику сервиса бронирования отеля.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/hotelier-system/internal/availability"
	"github.com/mmeshcher/hotelier-system/internal/events"
	"github.com/mmeshcher/hotelier-system/internal/gateway"
	"github.com/mmeshcher/hotelier-system/internal/model"
	"github.com/mmeshcher/hotelier-system/internal/repository"
	"github.com/mmeshcher/hotelier-system/internal/validation"
)

// ErrForbidden возвращается, когда операция недоступна для роли или владельца.
var (
	ErrForbidden = errors.New("operation not allowed for this user")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCashRequiresStaff возвращается при попытке гостя оформить оплату наличными.
	ErrCashRequiresStaff = errors.New("cash payment requires staff attribution")
	// ErrAlreadyPaid возвращается при попытке повторно инициировать оплату
	// уже оплаченного бронирования.
	ErrAlreadyPaid = errors.New("booking already paid")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	CreateRoom(ctx context.Context, rm *model.Room) (int64, error)
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	UpdateRoom(ctx context.Context, rm *model.Room, truncateAt *time.Time) error
	DeleteRoom(ctx context.Context, id int64) error
	CreateBooking(ctx context.Context, b *model.Booking) (int64, error)
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	ListBookings(ctx context.Context) ([]model.Booking, error)
	ListBookingsByGuest(ctx context.Context, guestID int64) ([]model.Booking, error)
	ActiveBookings(ctx context.Context, from time.Time) ([]model.Booking, error)
	UpdateBooking(ctx context.Context, b *model.Booking) error
	CancelBooking(ctx context.Context, id int64) error
	SetBookingPaymentState(ctx context.Context, bookingID int64, state model.PaymentState) error
	CreatePayment(ctx context.Context, p *model.Payment) (int64, error)
	GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error)
	ListPaymentsByBooking(ctx context.Context, bookingID int64) ([]model.Payment, error)
	MarkPaymentFailed(ctx context.Context, paymentID int64, reason string) error
	ApplyPaymentSuccess(ctx context.Context, reference, providerTxnID string, paidAt time.Time) (bool, error)
	ApplyPaymentFailure(ctx context.Context, reference, reason string) (bool, error)
	PendingPaymentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Payment, error)
	CreatePage(ctx context.Context, p *model.Page) (int64, error)
	GetPageBySlug(ctx context.Context, slug string) (*model.Page, error)
	ListPages(ctx context.Context, publishedOnly bool) ([]model.Page, error)
	UpdatePage(ctx context.Context, p *model.Page) error
	DeletePage(ctx context.Context, id int64) error
	GetDashboardStats(ctx context.Context, now time.Time) (*model.DashboardStats, error)
}

// PaymentGateway описывает синхронную часть внешнего платёжного шлюза.
type PaymentGateway interface {
	SubmitCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.SubmitResult, error)
	GetChargeStatus(ctx context.Context, reference string) (*gateway.ChargeStatus, int, error)
}

// Service содержит бизнес-логику сервиса бронирования отеля.
type Service struct {
	repo        Repository
	gateway     PaymentGateway
	events      *events.Publisher
	logger      *zap.Logger
	currency    string
	countryCode string
}

// NewService создаёт сервис с указанным репозиторием, клиентом платёжного
// шлюза (nil — шлюз не настроен) и издателем событий (nil — события не
// публикуются).
func NewService(repo Repository, gw PaymentGateway, pub *events.Publisher, logger *zap.Logger, currency, countryCode string) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		gateway:     gw,
		events:      pub,
		logger:      logger,
		currency:    currency,
		countryCode: countryCode,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя с указанной ролью.
func (s *Service) RegisterUser(ctx context.Context, email, phone, fullName, password string, role model.Role) (int64, error) {
	if phone != "" {
		normalized, err := validation.NormalizePhone(phone, s.countryCode)
		if err != nil {
			return 0, err
		}
		phone = normalized
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	return s.repo.CreateUser(ctx, &model.User{
		Email:        email,
		Phone:        phone,
		FullName:     fullName,
		Role:         role,
		PasswordHash: hash,
	})
}

// AuthenticateUser проверяет email и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// resolveGuest находит гостя по телефону, затем по email; если не найден —
// создаёт нового пользователя с ролью guest.
func (s *Service) resolveGuest(ctx context.Context, fullName, phone, email string) (int64, error) {
	if phone != "" {
		u, err := s.repo.GetUserByPhone(ctx, phone)
		if err == nil {
			return u.ID, nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return 0, err
		}
	}

	if email != "" {
		u, err := s.repo.GetUserByEmail(ctx, email)
		if err == nil {
			return u.ID, nil
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			return 0, err
		}
	}

	// Гость без пароля: вход возможен только после сброса пароля персоналом.
	hash, err := bcrypt.GenerateFromPassword([]byte(newPaymentReference()), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}

	id, err := s.repo.CreateUser(ctx, &model.User{
		Email:        email,
		Phone:        phone,
		FullName:     fullName,
		Role:         model.RoleGuest,
		PasswordHash: hash,
	})
	if err != nil {
		// Конкурирующее создание того же гостя: повторяем поиск.
		if errors.Is(err, repository.ErrUserExists) {
			if phone != "" {
				if u, lookupErr := s.repo.GetUserByPhone(ctx, phone); lookupErr == nil {
					return u.ID, nil
				}
			}
			if u, lookupErr := s.repo.GetUserByEmail(ctx, email); lookupErr == nil {
				return u.ID, nil
			}
		}
		return 0, err
	}
	return id, nil
}

// RoomWithStatus объединяет номер с вычисленным на момент запроса статусом.
type RoomWithStatus struct {
	Room          model.Room
	Status        model.RoomStatus
	NextAvailable *time.Time
}

// CreateRoom создаёт номер отеля.
func (s *Service) CreateRoom(ctx context.Context, rm *model.Room) (int64, error) {
	if rm.Status == "" {
		rm.Status = model.RoomStatusAvailable
	}
	return s.repo.CreateRoom(ctx, rm)
}

// UpdateRoom обновляет номер. Перевод ручного статуса в available или
// maintenance срабатывает как ручное вмешательство: все идущие в этот момент
// бронирования номера принудительно укорачиваются до текущего момента,
// атомарно с обновлением номера.
func (s *Service) UpdateRoom(ctx context.Context, rm *model.Room) error {
	prev, err := s.repo.GetRoom(ctx, rm.ID)
	if err != nil {
		return err
	}

	if rm.Status == "" {
		rm.Status = prev.Status
	}

	var truncateAt *time.Time
	if rm.Status != prev.Status &&
		(rm.Status == model.RoomStatusAvailable || rm.Status == model.RoomStatusMaintenance) {
		now := time.Now().UTC()
		truncateAt = &now
	}

	return s.repo.UpdateRoom(ctx, rm, truncateAt)
}

// DeleteRoom удаляет номер. Удаление блокируется, пока на номер ссылаются
// неотменённые бронирования: отмена бронирований — явное действие оператора.
func (s *Service) DeleteRoom(ctx context.Context, id int64) error {
	return s.repo.DeleteRoom(ctx, id)
}

// GetRoomWithStatus возвращает номер с живой проекцией статуса.
func (s *Service) GetRoomWithStatus(ctx context.Context, id int64) (*RoomWithStatus, error) {
	rm, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	active, err := s.repo.ActiveBookings(ctx, now)
	if err != nil {
		return nil, err
	}

	var roomBookings []model.Booking
	for _, b := range active {
		if b.RoomID == rm.ID {
			roomBookings = append(roomBookings, b)
		}
	}

	status, next := availability.ProjectStatus(*rm, roomBookings, now)
	return &RoomWithStatus{Room: *rm, Status: status, NextAvailable: next}, nil
}

// ListRoomsWithStatus возвращает все номера с живой проекцией статуса.
func (s *Service) ListRoomsWithStatus(ctx context.Context) ([]RoomWithStatus, error) {
	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	active, err := s.repo.ActiveBookings(ctx, now)
	if err != nil {
		return nil, err
	}

	byRoom := make(map[int64][]model.Booking)
	for _, b := range active {
		byRoom[b.RoomID] = append(byRoom[b.RoomID], b)
	}

	res := make([]RoomWithStatus, 0, len(rooms))
	for _, rm := range rooms {
		status, next := availability.ProjectStatus(rm, byRoom[rm.ID], now)
		res = append(res, RoomWithStatus{Room: rm, Status: status, NextAvailable: next})
	}
	return res, nil
}

// AvailableRoom описывает свободный номер в результатах поиска.
type AvailableRoom struct {
	Room            model.Room
	Nights          int
	TotalPriceCents int64
}

// SearchAvailability возвращает номера, свободные на весь интервал
// [checkIn, checkOut) и вмещающие указанное число гостей.
func (s *Service) SearchAvailability(ctx context.Context, checkIn, checkOut time.Time, guests int) ([]AvailableRoom, error) {
	if err := validation.ValidateStay(checkIn, checkOut, time.Now().UTC()); err != nil {
		return nil, err
	}

	rooms, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.ActiveBookings(ctx, checkIn)
	if err != nil {
		return nil, err
	}

	byRoom := make(map[int64][]model.Booking)
	for _, b := range active {
		byRoom[b.RoomID] = append(byRoom[b.RoomID], b)
	}

	res := make([]AvailableRoom, 0)
	for _, rm := range rooms {
		if !rm.IsActive || rm.Status == model.RoomStatusMaintenance {
			continue
		}
		if guests > 0 && rm.Capacity < guests {
			continue
		}
		if !availability.IsAvailable(byRoom[rm.ID], checkIn, checkOut, 0) {
			continue
		}
		res = append(res, AvailableRoom{
			Room:            rm,
			Nights:          availability.Nights(checkIn, checkOut),
			TotalPriceCents: availability.TotalPriceCents(rm.PriceCents, checkIn, checkOut),
		})
	}
	return res, nil
}

// CreatePage создаёт контентную страницу.
func (s *Service) CreatePage(ctx context.Context, p *model.Page) (int64, error) {
	return s.repo.CreatePage(ctx, p)
}

// GetPageBySlug возвращает страницу по slug.
func (s *Service) GetPageBySlug(ctx context.Context, slug string) (*model.Page, error) {
	return s.repo.GetPageBySlug(ctx, slug)
}

// ListPages возвращает страницы; publishedOnly ограничивает выдачу опубликованными.
func (s *Service) ListPages(ctx context.Context, publishedOnly bool) ([]model.Page, error) {
	return s.repo.ListPages(ctx, publishedOnly)
}

// UpdatePage обновляет страницу.
func (s *Service) UpdatePage(ctx context.Context, p *model.Page) error {
	return s.repo.UpdatePage(ctx, p)
}

// DeletePage удаляет страницу.
func (s *Service) DeletePage(ctx context.Context, id int64) error {
	return s.repo.DeletePage(ctx, id)
}

// GetDashboardStats возвращает агрегаты для панели администратора.
func (s *Service) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return s.repo.GetDashboardStats(ctx, time.Now().UTC())
}
