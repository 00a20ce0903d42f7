package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
	"stock-alert-service/internal/utils"
)

// StockSink receives decoded stock messages. Both methods report false
// when the update could not be queued.
type StockSink interface {
	QueueMovement(m models.Movement) bool
	QueueReading(productID string, stock int) bool
}

var errSinkBusy = errors.New("stock queue full")

const (
	handOffAttempts = 5
	handOffDelay    = 200 * time.Millisecond
)

// stockMessage is the wire format of the stock feed. A message either
// carries a movement (kind and quantity) or an absolute reading (stock).
type stockMessage struct {
	ProductID string    `json:"product_id"`
	Kind      string    `json:"kind"`
	Quantity  int       `json:"quantity"`
	Stock     *int      `json:"stock"`
	Reference string    `json:"reference"`
	At        time.Time `json:"at"`
}

type Consumer struct {
	reader *kafka.Reader
	sink   StockSink
	logger *logging.Logger
	delay  time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, sink StockSink, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: 0,
	})
	return &Consumer{reader: r, sink: sink, logger: logger, delay: handOffDelay}
}

// Start reads until ctx is cancelled. An offset is committed only after the
// sink accepted the message or the message was found unparseable; a message
// still waiting for queue space when ctx ends is redelivered on restart.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Infof("Kafka consumer started on topic %s", c.reader.Config().Topic)
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					c.logger.Info("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Fetch message failed: %v", err)
				continue
			}

			if !c.handle(ctx, msg.Value) {
				c.logger.Warnf("Offset %d left uncommitted, consumer stopping", msg.Offset)
				return
			}

			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

// handle hands one message to the sink, retrying while its queue is full.
// It returns false only when ctx ended before the sink accepted it.
func (c *Consumer) handle(ctx context.Context, value []byte) bool {
	m, reading, err := decode(value)
	if err != nil {
		c.logger.Errorf("Invalid stock message: %v", err)
		return true
	}
	offer := func() error {
		var ok bool
		if reading != nil {
			ok = c.sink.QueueReading(m.ProductID, *reading)
		} else {
			ok = c.sink.QueueMovement(m)
		}
		if !ok {
			return errSinkBusy
		}
		return nil
	}
	for {
		if err := utils.Retry(ctx, c.logger, handOffAttempts, c.delay, offer); err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Errorf("Stock queue for product %s still full, holding the feed", m.ProductID)
	}
}

// decode parses a feed message. For an absolute reading it returns the
// stock level and a movement carrying only the product id.
func decode(value []byte) (models.Movement, *int, error) {
	var sm stockMessage
	if err := json.Unmarshal(value, &sm); err != nil {
		return models.Movement{}, nil, fmt.Errorf("unmarshal message: %w", err)
	}
	if sm.ProductID == "" {
		return models.Movement{}, nil, fmt.Errorf("%w: missing product_id", models.ErrInvalidArgument)
	}
	if sm.Stock != nil {
		if *sm.Stock < 0 {
			return models.Movement{}, nil, fmt.Errorf("%w: stock %d", models.ErrInvalidAmount, *sm.Stock)
		}
		return models.Movement{ProductID: sm.ProductID}, sm.Stock, nil
	}

	kind := models.MovementKind(sm.Kind)
	switch kind {
	case models.MovementInbound, models.MovementOutbound, models.MovementAdjustment:
	default:
		return models.Movement{}, nil, fmt.Errorf("%w: movement kind %q", models.ErrInvalidArgument, sm.Kind)
	}
	return models.Movement{
		ProductID: sm.ProductID,
		Kind:      kind,
		Quantity:  sm.Quantity,
		Reference: sm.Reference,
		At:        sm.At,
	}, nil, nil
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Errorf("Kafka reader close failed: %v", err)
	}
}
