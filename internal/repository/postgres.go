// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/hotelier-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email или телефоном.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomNotFound возвращается, если номер не найден.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNumberTaken возвращается при попытке занять уже существующий номер комнаты.
	ErrRoomNumberTaken = errors.New("room number already taken")
	// ErrRoomUnavailable возвращается, когда номер занят на запрошенный интервал.
	ErrRoomUnavailable = errors.New("room unavailable for requested dates")
	// ErrRoomHasBookings возвращается при попытке удалить номер с неотменёнными бронированиями.
	ErrRoomHasBookings = errors.New("room has non-cancelled bookings")
	// ErrBookingNotFound возвращается, если бронирование не найдено.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPageNotFound возвращается, если страница не найдена.
	ErrPageNotFound = errors.New("page not found")
	// ErrSlugTaken возвращается при попытке создать страницу с занятым slug.
	ErrSlugTaken = errors.New("page slug already taken")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраим только конфликты сериализации и дедлоки: транзакция
		// бронирования конкурирует за строку номера.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, phone, full_name, role, password_hash)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5) RETURNING id`,
		u.Email, u.Phone, u.FullName, string(u.Role), u.PasswordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, u.Email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Phone, &u.FullName, &role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}

const userColumns = `id, email, COALESCE(phone, ''), full_name, role, password_hash, created_at`

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// GetUserByPhone возвращает пользователя по номеру телефона.
func (r *PostgresRepository) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

const roomColumns = `id, number, type, price, capacity, amenities, description, is_active, status, created_at, updated_at`

func scanRoom(row pgx.Row) (*model.Room, error) {
	var rm model.Room
	var status string
	err := row.Scan(&rm.ID, &rm.Number, &rm.Type, &rm.PriceCents, &rm.Capacity,
		&rm.Amenities, &rm.Description, &rm.IsActive, &status, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	rm.Status = model.RoomStatus(status)
	return &rm, nil
}

// CreateRoom создаёт номер отеля.
func (r *PostgresRepository) CreateRoom(ctx context.Context, rm *model.Room) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO rooms (number, type, price, capacity, amenities, description, is_active, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		rm.Number, rm.Type, rm.PriceCents, rm.Capacity, rm.Amenities,
		rm.Description, rm.IsActive, string(rm.Status),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrRoomNumberTaken, rm.Number)
		}
		return 0, fmt.Errorf("create room: %w", err)
	}
	return id, nil
}

// GetRoom возвращает номер по идентификатору.
func (r *PostgresRepository) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	return scanRoom(r.pool.QueryRow(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
}

// ListRooms возвращает все номера, упорядоченные по номеру комнаты с учётом
// числовой части ("2" раньше "10").
func (r *PostgresRepository) ListRooms(ctx context.Context) ([]model.Room, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roomColumns+`
		 FROM rooms
		 ORDER BY NULLIF(regexp_replace(number, '\D', '', 'g'), '')::bigint NULLS LAST, number`,
	)
	if err != nil {
		return nil, fmt.Errorf("select rooms: %w", err)
	}
	defer rows.Close()

	var res []model.Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateRoom обновляет номер. Если truncateAt задан, все бронирования номера,
// идущие в этот момент (check_in <= truncateAt < check_out, статус pending
// или confirmed), принудительно укорачиваются до truncateAt в той же
// транзакции: обновление номера и усечение применяются целиком или никак.
func (r *PostgresRepository) UpdateRoom(ctx context.Context, rm *model.Room, truncateAt *time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`UPDATE rooms
			 SET number = $2, type = $3, price = $4, capacity = $5, amenities = $6,
			     description = $7, is_active = $8, status = $9, updated_at = now()
			 WHERE id = $1`,
			rm.ID, rm.Number, rm.Type, rm.PriceCents, rm.Capacity, rm.Amenities,
			rm.Description, rm.IsActive, string(rm.Status),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrRoomNumberTaken, rm.Number)
			}
			return fmt.Errorf("update room: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrRoomNotFound
		}

		if truncateAt != nil {
			_, err = tx.Exec(ctx,
				`UPDATE bookings
				 SET check_out = $2, updated_at = $2
				 WHERE room_id = $1
				   AND status IN ('pending', 'confirmed')
				   AND check_in <= $2 AND check_out > $2`,
				rm.ID, *truncateAt,
			)
			if err != nil {
				return fmt.Errorf("truncate stays: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// DeleteRoom удаляет номер. Удаление блокируется, пока на номер ссылается
// хотя бы одно неотменённое бронирование.
func (r *PostgresRepository) DeleteRoom(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var hasBookings bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE room_id = $1 AND status <> 'cancelled')`,
		id,
	).Scan(&hasBookings)
	if err != nil {
		return fmt.Errorf("check bookings: %w", err)
	}
	if hasBookings {
		return ErrRoomHasBookings
	}

	cmdTag, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const bookingColumns = `id, room_id, guest_id, guest_name, guest_phone, guest_email,
	check_in, check_out, guests, total_price, status, payment_status, payment_method,
	created_by, created_at, updated_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var b model.Booking
	var status, payStatus, payMethod string
	err := row.Scan(&b.ID, &b.RoomID, &b.GuestID, &b.GuestName, &b.GuestPhone, &b.GuestEmail,
		&b.CheckIn, &b.CheckOut, &b.Guests, &b.TotalPriceCents, &status, &payStatus, &payMethod,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentState(payStatus)
	b.PaymentMethod = model.PaymentMethod(payMethod)
	return &b, nil
}

// CreateBooking вставляет бронирование, повторно проверяя занятость номера в
// той же транзакции. Строка номера блокируется FOR UPDATE, что сериализует
// конкурирующие бронирования одного номера: два одновременных запроса на
// пересекающиеся даты не могут оба пройти проверку.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b *model.Booking) (int64, error) {
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var isActive bool
		err = tx.QueryRow(ctx, `SELECT is_active FROM rooms WHERE id = $1 FOR UPDATE`, b.RoomID).Scan(&isActive)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("lock room: %w", err)
		}
		if !isActive {
			return ErrRoomUnavailable
		}

		var conflicts int
		err = tx.QueryRow(ctx,
			`SELECT count(*) FROM bookings
			 WHERE room_id = $1 AND status IN ('pending', 'confirmed')
			   AND check_in < $3 AND check_out > $2`,
			b.RoomID, b.CheckIn, b.CheckOut,
		).Scan(&conflicts)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if conflicts > 0 {
			return ErrRoomUnavailable
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO bookings (room_id, guest_id, guest_name, guest_phone, guest_email,
			                       check_in, check_out, guests, total_price, status,
			                       payment_status, payment_method, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 RETURNING id, created_at, updated_at`,
			b.RoomID, b.GuestID, b.GuestName, b.GuestPhone, b.GuestEmail,
			b.CheckIn, b.CheckOut, b.Guests, b.TotalPriceCents, string(b.Status),
			string(b.PaymentStatus), string(b.PaymentMethod), b.CreatedBy,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return b.ID, nil
}

// UpdateBooking обновляет бронирование с повторной проверкой занятости в той
// же транзакции; собственное бронирование из проверки исключается.
func (r *PostgresRepository) UpdateBooking(ctx context.Context, b *model.Booking) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var dummy int
		err = tx.QueryRow(ctx, `SELECT 1 FROM rooms WHERE id = $1 FOR UPDATE`, b.RoomID).Scan(&dummy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRoomNotFound
			}
			return fmt.Errorf("lock room: %w", err)
		}

		if b.Status == model.BookingStatusPending || b.Status == model.BookingStatusConfirmed {
			var conflicts int
			err = tx.QueryRow(ctx,
				`SELECT count(*) FROM bookings
				 WHERE room_id = $1 AND id <> $2 AND status IN ('pending', 'confirmed')
				   AND check_in < $4 AND check_out > $3`,
				b.RoomID, b.ID, b.CheckIn, b.CheckOut,
			).Scan(&conflicts)
			if err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if conflicts > 0 {
				return ErrRoomUnavailable
			}
		}

		cmdTag, err := tx.Exec(ctx,
			`UPDATE bookings
			 SET room_id = $2, guest_name = $3, guest_phone = $4, guest_email = $5,
			     check_in = $6, check_out = $7, guests = $8, total_price = $9,
			     status = $10, payment_status = $11, payment_method = $12, updated_at = now()
			 WHERE id = $1`,
			b.ID, b.RoomID, b.GuestName, b.GuestPhone, b.GuestEmail,
			b.CheckIn, b.CheckOut, b.Guests, b.TotalPriceCents,
			string(b.Status), string(b.PaymentStatus), string(b.PaymentMethod),
		)
		if err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrBookingNotFound
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetBooking возвращает бронирование по идентификатору.
func (r *PostgresRepository) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (r *PostgresRepository) listBookings(ctx context.Context, query string, args ...any) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	defer rows.Close()

	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListBookings возвращает все бронирования, новые первыми.
func (r *PostgresRepository) ListBookings(ctx context.Context) ([]model.Booking, error) {
	return r.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
}

// ListBookingsByGuest возвращает бронирования гостя, новые первыми.
func (r *PostgresRepository) ListBookingsByGuest(ctx context.Context, guestID int64) ([]model.Booking, error) {
	return r.listBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE guest_id = $1 ORDER BY created_at DESC`,
		guestID)
}

// ActiveBookings возвращает бронирования в статусах pending и confirmed с
// выездом позже from. Используется проекцией статуса номеров и поиском
// свободных номеров.
func (r *PostgresRepository) ActiveBookings(ctx context.Context, from time.Time) ([]model.Booking, error) {
	return r.listBookings(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE status IN ('pending', 'confirmed') AND check_out > $1
		 ORDER BY room_id, check_in`,
		from)
}

// CancelBooking переводит бронирование в статус cancelled. Платёжный статус
// не меняется: возвраты вне зоны ответственности сервиса.
func (r *PostgresRepository) CancelBooking(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET status = 'cancelled', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// SetBookingPaymentState обновляет платёжный статус бронирования.
func (r *PostgresRepository) SetBookingPaymentState(ctx context.Context, bookingID int64, state model.PaymentState) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET payment_status = $2, updated_at = now() WHERE id = $1`,
		bookingID, string(state))
	if err != nil {
		return fmt.Errorf("set booking payment state: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

const paymentColumns = `id, booking_id, payer_id, reference, amount, currency, method,
	phone, status, provider_txn_id, failure_reason, created_at, paid_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	var status, method string
	err := row.Scan(&p.ID, &p.BookingID, &p.PayerID, &p.Reference, &p.AmountCents,
		&p.Currency, &method, &p.Phone, &status, &p.ProviderTxnID, &p.FailureReason,
		&p.CreatedAt, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	p.Status = model.ChargeStatus(status)
	p.Method = model.PaymentMethod(method)
	return &p, nil
}

// CreatePayment создаёт платёжную запись. Уникальность reference
// обеспечивается ограничением в БД, а не только энтропией генерации.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) (int64, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO payments (booking_id, payer_id, reference, amount, currency, method, phone, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		p.BookingID, p.PayerID, p.Reference, p.AmountCents, p.Currency,
		string(p.Method), p.Phone, string(p.Status),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("payment reference collision: %w", err)
		}
		return 0, fmt.Errorf("create payment: %w", err)
	}
	return p.ID, nil
}

// GetPaymentByReference возвращает платёж по ключу корреляции.
func (r *PostgresRepository) GetPaymentByReference(ctx context.Context, reference string) (*model.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference))
}

// ListPaymentsByBooking возвращает платежи бронирования, новые первыми.
func (r *PostgresRepository) ListPaymentsByBooking(ctx context.Context, bookingID int64) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1 ORDER BY created_at DESC`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkPaymentFailed помечает платёж неуспешным с указанием причины и
// выставляет платёжный статус бронирования в failed. Применяется, когда шлюз
// отклонил отправку запроса: бронирование при этом остаётся в силе. Платёж,
// уже финализированный конкурентным callback'ом, не затрагивается.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, paymentID int64, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var bookingID int64
	err = tx.QueryRow(ctx,
		`UPDATE payments SET status = 'failed', failure_reason = $2
		 WHERE id = $1 AND status = 'pending'
		 RETURNING booking_id`,
		paymentID, reason,
	).Scan(&bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Callback успел финализировать платёж первым: его статус побеждает.
			return nil
		}
		return fmt.Errorf("mark payment failed: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE bookings SET payment_status = 'failed', updated_at = now() WHERE id = $1`,
		bookingID)
	if err != nil {
		return fmt.Errorf("update booking payment state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ApplyPaymentSuccess атомарно применяет успешное подтверждение платежа:
// платёж переводится в success с внешним идентификатором транзакции, а его
// бронирование — в confirmed/paid, в одной транзакции. Применяется только к
// платежу в статусе pending: первый терминальный статус побеждает, повторные
// и противоречащие доставки возвращают false без изменений.
func (r *PostgresRepository) ApplyPaymentSuccess(ctx context.Context, reference, providerTxnID string, paidAt time.Time) (bool, error) {
	var applied bool
	err := r.withRetry(ctx, func() error {
		applied = false

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var bookingID int64
		err = tx.QueryRow(ctx,
			`UPDATE payments SET status = 'success', provider_txn_id = $2, paid_at = $3
			 WHERE reference = $1 AND status = 'pending'
			 RETURNING booking_id`,
			reference, providerTxnID, paidAt,
		).Scan(&bookingID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				var exists bool
				if err := tx.QueryRow(ctx,
					`SELECT EXISTS (SELECT 1 FROM payments WHERE reference = $1)`,
					reference,
				).Scan(&exists); err != nil {
					return fmt.Errorf("check payment: %w", err)
				}
				if !exists {
					return ErrPaymentNotFound
				}
				// Платёж уже финализирован: идемпотентный no-op.
				return tx.Commit(ctx)
			}
			return fmt.Errorf("update payment: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE bookings SET status = 'confirmed', payment_status = 'paid', updated_at = now()
			 WHERE id = $1`,
			bookingID)
		if err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// ApplyPaymentFailure атомарно применяет неуспешное подтверждение: платёж
// переводится в failed с причиной, платёжный статус бронирования — в failed;
// статус самого бронирования не меняется, что оставляет возможность повторной
// оплаты. Уже финализированный платёж не затрагивается.
func (r *PostgresRepository) ApplyPaymentFailure(ctx context.Context, reference, reason string) (bool, error) {
	var applied bool
	err := r.withRetry(ctx, func() error {
		applied = false

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var bookingID int64
		err = tx.QueryRow(ctx,
			`UPDATE payments SET status = 'failed', failure_reason = $2
			 WHERE reference = $1 AND status = 'pending'
			 RETURNING booking_id`,
			reference, reason,
		).Scan(&bookingID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				var exists bool
				if err := tx.QueryRow(ctx,
					`SELECT EXISTS (SELECT 1 FROM payments WHERE reference = $1)`,
					reference,
				).Scan(&exists); err != nil {
					return fmt.Errorf("check payment: %w", err)
				}
				if !exists {
					return ErrPaymentNotFound
				}
				return tx.Commit(ctx)
			}
			return fmt.Errorf("update payment: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE bookings SET payment_status = 'failed', updated_at = now() WHERE id = $1`,
			bookingID)
		if err != nil {
			return fmt.Errorf("update booking payment state: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		applied = true
		return nil
	})
	return applied, err
}

// PendingPaymentsBefore возвращает мобильные платежи, зависшие в pending с
// момента создания раньше cutoff. Используется фоновой сверкой со шлюзом.
func (r *PostgresRepository) PendingPaymentsBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE status = 'pending' AND method = 'mobile_money' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const pageColumns = `id, slug, title, body, published, created_at, updated_at`

func scanPage(row pgx.Row) (*model.Page, error) {
	var p model.Page
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("get page: %w", err)
	}
	return &p, nil
}

// CreatePage создаёт контентную страницу.
func (r *PostgresRepository) CreatePage(ctx context.Context, p *model.Page) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO pages (slug, title, body, published) VALUES ($1, $2, $3, $4) RETURNING id`,
		p.Slug, p.Title, p.Body, p.Published,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
		}
		return 0, fmt.Errorf("create page: %w", err)
	}
	return id, nil
}

// GetPageBySlug возвращает страницу по slug.
func (r *PostgresRepository) GetPageBySlug(ctx context.Context, slug string) (*model.Page, error) {
	return scanPage(r.pool.QueryRow(ctx,
		`SELECT `+pageColumns+` FROM pages WHERE slug = $1`, slug))
}

// ListPages возвращает страницы; при publishedOnly — только опубликованные.
func (r *PostgresRepository) ListPages(ctx context.Context, publishedOnly bool) ([]model.Page, error) {
	query := `SELECT ` + pageColumns + ` FROM pages ORDER BY slug`
	if publishedOnly {
		query = `SELECT ` + pageColumns + ` FROM pages WHERE published ORDER BY slug`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	defer rows.Close()

	var res []model.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdatePage обновляет страницу.
func (r *PostgresRepository) UpdatePage(ctx context.Context, p *model.Page) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE pages SET slug = $2, title = $3, body = $4, published = $5, updated_at = now()
		 WHERE id = $1`,
		p.ID, p.Slug, p.Title, p.Body, p.Published)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
		}
		return fmt.Errorf("update page: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPageNotFound
	}
	return nil
}

// DeletePage удаляет страницу.
func (r *PostgresRepository) DeletePage(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM pages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPageNotFound
	}
	return nil
}

// GetDashboardStats возвращает агрегаты для панели администратора.
func (r *PostgresRepository) GetDashboardStats(ctx context.Context, now time.Time) (*model.DashboardStats, error) {
	var s model.DashboardStats

	err := r.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'maintenance')
		 FROM rooms WHERE is_active`,
	).Scan(&s.TotalRooms, &s.MaintenanceRooms)
	if err != nil {
		return nil, fmt.Errorf("count rooms: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT count(DISTINCT room_id)
		 FROM bookings
		 WHERE status IN ('pending', 'confirmed') AND check_in <= $1 AND check_out > $1`,
		now,
	).Scan(&s.OccupiedRooms)
	if err != nil {
		return nil, fmt.Errorf("count occupied rooms: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE status = 'pending'),
		        count(*) FILTER (WHERE status = 'confirmed'),
		        count(*) FILTER (WHERE status = 'cancelled')
		 FROM bookings`,
	).Scan(&s.PendingBookings, &s.ConfirmedBookings, &s.CancelledBookings)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}

	var revenueCents int64
	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'success'`,
	).Scan(&revenueCents)
	if err != nil {
		return nil, fmt.Errorf("sum revenue: %w", err)
	}
	s.PaidRevenue = float64(revenueCents) / 100

	return &s, nil
}
