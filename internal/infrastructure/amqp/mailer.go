package amqp

import (
	"context"
	"encoding/json"
	"time"

	"reverse-auction/internal/domain"
	"reverse-auction/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Mailer hands outbound mail to a worker queue instead of talking SMTP
// inline. Each message names a template and carries the data the mail
// worker needs to render it.
type Mailer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     logger.Logger
}

type mailMessage struct {
	Template string      `json:"template"`
	To       string      `json:"to"`
	Data     interface{} `json:"data"`
}

func NewMailer(url, queue string, log logger.Logger) (*Mailer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Mailer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		log:     log,
	}, nil
}

func (m *Mailer) Close() {
	if m.channel != nil {
		m.channel.Close()
	}
	if m.conn != nil {
		m.conn.Close()
	}
}

func (m *Mailer) SendAuctionEnded(ctx context.Context, supplier *domain.Supplier, listingName string) error {
	return m.publish(ctx, mailMessage{
		Template: "auction-ended",
		To:       supplier.Email,
		Data: map[string]interface{}{
			"supplierName": supplier.FirstName + " " + supplier.LastName,
			"listingName":  listingName,
		},
	})
}

func (m *Mailer) SendAuctionSummary(ctx context.Context, buyer *domain.Buyer, summary *domain.AuctionSummary) error {
	return m.publish(ctx, mailMessage{
		Template: "auction-summary",
		To:       buyer.Email,
		Data:     summary,
	})
}

func (m *Mailer) SendListingInvite(ctx context.Context, invite *domain.ListingInvite, listingName string) error {
	return m.publish(ctx, mailMessage{
		Template: "listing-invite",
		To:       invite.Email,
		Data: map[string]interface{}{
			"listingName": listingName,
			"inviteToken": invite.InviteToken,
		},
	})
}

func (m *Mailer) publish(ctx context.Context, msg mailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	err = m.channel.PublishWithContext(ctx,
		"",      // default exchange
		m.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	m.log.Info("Mail queued", "template", msg.Template, "to", msg.To)
	return nil
}
