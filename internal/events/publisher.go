// Package events публикует события жизненного цикла бронирований в AMQP.
// Публикация необязательна: ошибки брокера логируются и не прерывают
// основной поток обработки запроса.
package events

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Имена очередей событий бронирования.
const (
	QueueBookingCreated   = "booking.created"
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)

// BookingEvent описывает событие жизненного цикла бронирования.
type BookingEvent struct {
	BookingID  int64     `json:"booking_id"`
	RoomID     int64     `json:"room_id"`
	GuestID    int64     `json:"guest_id"`
	Status     string    `json:"status"`
	TotalPrice float64   `json:"total_price"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher публикует события в RabbitMQ. Нулевой указатель безопасен:
// публикация просто пропускается.
type Publisher struct {
	url    string
	logger *zap.Logger
}

// NewPublisher создаёт издатель событий для указанного адреса брокера.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// Publish отправляет событие в указанную очередь. Очередь объявляется
// долговечной, сообщение помечается persistent. Соединение открывается на
// каждую публикацию: события редки относительно HTTP-трафика.
func (p *Publisher) Publish(ctx context.Context, queue string, event BookingEvent) error {
	if p == nil || p.url == "" {
		return nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("amqp dial failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("amqp channel open failed", zap.Error(err))
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.logger.Warn("amqp queue declare failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.logger.Warn("amqp publish failed", zap.String("queue", queue), zap.Error(err))
		return err
	}

	return nil
}
