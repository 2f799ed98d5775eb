package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic   = "checkout-outbox"
	DefaultGroupID = "cart-service-consumer"

	retryDelay = time.Second
)

// CartDeleter is the part of the cart service the poller needs.
type CartDeleter interface {
	DeleteCart(ctx context.Context, owner domain.Identity) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// checkoutEvent is the subset of a completed checkout the cart service cares about.
type checkoutEvent struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Poller consumes completed checkouts and deletes the purchasing user's cart.
type Poller struct {
	reader     messageReader
	carts      CartDeleter
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewPoller(carts CartDeleter, logger *slog.Logger, cfg Config) *Poller {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultGroupID
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(reader, carts, logger.With(slog.String("topic", cfg.Topic)))
}

func newPoller(reader messageReader, carts CartDeleter, logger *slog.Logger) *Poller {
	return &Poller{reader: reader, carts: carts, logger: logger, retryDelay: retryDelay}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("error reading message", slog.Any("error", err))
			if !p.wait(ctx) {
				return
			}
			continue
		}

		// Committing a later offset would skip this one, so retry it until it succeeds.
		for {
			err := p.handle(ctx, m)
			if err == nil {
				break
			}
			p.logger.Error("failed to clear cart after checkout, retrying",
				slog.Int64("offset", m.Offset),
				slog.Any("error", err),
			)
			if !p.wait(ctx) {
				return
			}
		}

		if err := p.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			p.logger.Error("error committing message", slog.Int64("offset", m.Offset), slog.Any("error", err))
		}
	}
}

// wait sleeps for the retry delay and reports false if ctx ended first.
func (p *Poller) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(p.retryDelay):
		return true
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing reader", slog.Any("error", err))
	}
}

// handle deletes the cart named by the message. Malformed messages are logged and skipped.
func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	var event checkoutEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.logger.Warn("skipping malformed checkout message", slog.Int64("offset", m.Offset), slog.Any("error", err))
		return nil
	}
	if event.UserID == "" {
		p.logger.Warn("skipping checkout message without user_id", slog.Int64("offset", m.Offset))
		return nil
	}

	if err := p.carts.DeleteCart(ctx, domain.User(event.UserID)); err != nil {
		return err
	}

	p.logger.Info("cart cleared after checkout",
		slog.String("checkout_id", event.CheckoutID),
		slog.String("user_id", event.UserID),
	)
	return nil
}
