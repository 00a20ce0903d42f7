package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stock-alert-service/internal/ledger"
	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
)

// Sender delivers messages over one channel.
type Sender interface {
	Channel() models.Channel
	// Recipients picks the contacts this channel can reach.
	Recipients(contacts []string) []string
	Send(ctx context.Context, msg models.Message) error
}

type ThresholdResolver interface {
	Resolve(productID, categoryID string) (models.AlertThreshold, bool)
}

type CategoryLookup interface {
	Category(productID string) (string, bool)
}

type Options struct {
	ChannelTimeout time.Duration
	Location       *time.Location
	Now            func() time.Time
}

// Dispatcher fans alert events out to channels. Realtime events are sent as
// soon as they are recorded; daily and weekly events wait in the ledger
// until Tick crosses a period boundary and go out as one digest per
// recipient per channel.
type Dispatcher struct {
	senders    map[models.Channel]Sender
	ledger     ledger.Ledger
	thresholds ThresholdResolver
	categories CategoryLookup
	deliveries DeliveryLog
	logger     *logging.Logger
	timeout    time.Duration
	loc        *time.Location
	now        func() time.Time

	mu        sync.Mutex
	lastFlush map[models.Frequency]time.Time
}

func New(l ledger.Ledger, thresholds ThresholdResolver, categories CategoryLookup, deliveries DeliveryLog, logger *logging.Logger, opts Options, senders ...Sender) *Dispatcher {
	if opts.ChannelTimeout <= 0 {
		opts.ChannelTimeout = 10 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := &Dispatcher{
		senders:    make(map[models.Channel]Sender),
		ledger:     l,
		thresholds: thresholds,
		categories: categories,
		deliveries: deliveries,
		logger:     logger,
		timeout:    opts.ChannelTimeout,
		loc:        opts.Location,
		now:        opts.Now,
		lastFlush:  make(map[models.Frequency]time.Time),
	}
	for _, s := range senders {
		d.senders[s.Channel()] = s
	}
	return d
}

// HandleEvent is the evaluator hook. Only realtime events are sent here.
func (d *Dispatcher) HandleEvent(ctx context.Context, e models.AlertEvent, t models.AlertThreshold) {
	if e.Frequency != models.FrequencyRealtime {
		return
	}
	claimed, err := d.ledger.ClaimEvents(ctx, []uuid.UUID{e.ID}, d.now())
	if err != nil {
		d.logger.Errorf("Claim event %s failed: %v", e.ID, err)
		return
	}
	if len(claimed) == 0 {
		return
	}
	d.deliver(ctx, []routed{{event: claimed[0], threshold: t}}, false)
}

// Tick flushes daily and weekly digests whose period ended at or before now.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) {
	for _, freq := range []models.Frequency{models.FrequencyDaily, models.FrequencyWeekly} {
		boundary := PeriodStart(now, freq, d.loc)

		d.mu.Lock()
		due := boundary.After(d.lastFlush[freq])
		if due {
			d.lastFlush[freq] = boundary
		}
		d.mu.Unlock()
		if !due {
			continue
		}
		d.flush(ctx, freq, boundary, now)
	}
}

// PeriodStart returns the start of the day or ISO week containing t.
func PeriodStart(t time.Time, freq models.Frequency, loc *time.Location) time.Time {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	if freq == models.FrequencyWeekly {
		offset := (int(start.Weekday()) + 6) % 7
		start = start.AddDate(0, 0, -offset)
	}
	return start
}

func (d *Dispatcher) flush(ctx context.Context, freq models.Frequency, before, now time.Time) {
	// Events are marked dispatched before sending: a crash mid-flush loses
	// that digest rather than sending it twice.
	events, err := d.ledger.ClaimPending(ctx, freq, before, now)
	if err != nil {
		d.logger.Errorf("Claim %s digest events failed: %v", freq, err)
		return
	}
	if len(events) == 0 {
		return
	}

	batch := make([]routed, 0, len(events))
	for _, e := range events {
		category, _ := d.categories.Category(e.ProductID)
		t, ok := d.thresholds.Resolve(e.ProductID, category)
		if !ok || !t.IsEnabled {
			d.logger.Warnf("No enabled threshold for product %s, event %s dropped from %s digest", e.ProductID, e.ID, freq)
			continue
		}
		batch = append(batch, routed{event: e, threshold: t})
	}
	d.logger.Infof("Flushing %s digest: %d events before %s", freq, len(batch), before.Format(time.RFC3339))
	d.deliver(ctx, batch, true)
}

type routed struct {
	event     models.AlertEvent
	threshold models.AlertThreshold
}

type bucketKey struct {
	channel   models.Channel
	recipient string
}

// deliver groups events by (channel, recipient) and sends one message per
// group. Channels are independent: a failure is logged and recorded, and
// the other sends go ahead. The batch is already claimed, so sends ignore
// cancellation of ctx and are bounded by the per-channel timeout only.
func (d *Dispatcher) deliver(ctx context.Context, batch []routed, digest bool) {
	ctx = context.WithoutCancel(ctx)
	buckets := make(map[bucketKey][]models.AlertEvent)
	for _, r := range batch {
		for _, ch := range models.AllChannels {
			if !r.threshold.NotifyMethods.Enabled(ch) {
				continue
			}
			sender, ok := d.senders[ch]
			if !ok {
				d.logger.Warnf("Channel %s enabled for %s but no sender configured", ch, r.event.ProductID)
				continue
			}
			for _, rcpt := range sender.Recipients(r.threshold.Contacts) {
				k := bucketKey{channel: ch, recipient: rcpt}
				buckets[k] = append(buckets[k], r.event)
			}
		}
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].channel != keys[j].channel {
			return keys[i].channel < keys[j].channel
		}
		return keys[i].recipient < keys[j].recipient
	})

	var wg sync.WaitGroup
	for _, k := range keys {
		msg := d.compose(k, buckets[k], digest)
		wg.Add(1)
		go func(sender Sender, msg models.Message) {
			defer wg.Done()
			d.send(ctx, sender, msg)
		}(d.senders[k.channel], msg)
	}
	wg.Wait()
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, msg models.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	record := models.Notification{
		ID:        uuid.New(),
		Channel:   msg.Channel,
		Recipient: msg.Recipient,
		Subject:   msg.Subject,
		Body:      msg.Body,
		EventIDs:  msg.EventIDs,
		Digest:    msg.Digest,
		Status:    models.DeliverySuccess,
		CreatedAt: d.now(),
	}

	fields := logrus.Fields{"channel": msg.Channel, "recipient": msg.Recipient, "events": len(msg.EventIDs)}
	if err := sender.Send(sendCtx, msg); err != nil {
		derr := &models.ChannelDeliveryError{Channel: msg.Channel, Recipient: msg.Recipient, Err: err}
		record.Status = models.DeliveryFailed
		record.Error = derr.Error()
		d.logger.WithFields(fields).WithError(err).Error("Notification delivery failed")
	} else {
		d.logger.WithFields(fields).Info("Notification delivered")
	}

	if d.deliveries == nil {
		return
	}
	if err := d.deliveries.Record(ctx, record); err != nil {
		d.logger.Errorf("Record notification %s failed: %v", record.ID, err)
	}
}

func (d *Dispatcher) compose(k bucketKey, events []models.AlertEvent, digest bool) models.Message {
	msg := models.Message{
		Channel:   k.channel,
		Recipient: k.recipient,
		Digest:    digest,
		CreatedAt: d.now(),
	}
	for _, e := range events {
		msg.EventIDs = append(msg.EventIDs, e.ID)
	}

	if !digest && len(events) == 1 {
		e := events[0]
		msg.Subject = fmt.Sprintf("%s: %s", title(e.Type), e.ProductID)
		msg.Body = describe(e, d.loc)
		return msg
	}

	msg.Subject = fmt.Sprintf("%s stock alert digest (%d alerts)", period(events[0].Frequency), len(events))
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, "- "+describe(e, d.loc))
	}
	msg.Body = strings.Join(lines, "\n")
	return msg
}

func period(f models.Frequency) string {
	switch f {
	case models.FrequencyDaily:
		return "Daily"
	case models.FrequencyWeekly:
		return "Weekly"
	default:
		return "Realtime"
	}
}

func title(t models.AlertType) string {
	switch t {
	case models.AlertLowStock:
		return "Low stock"
	case models.AlertHighStock:
		return "Overstock"
	default:
		return string(t)
	}
}

func describe(e models.AlertEvent, loc *time.Location) string {
	bound := "minimum"
	if e.Type == models.AlertHighStock {
		bound = "maximum"
	}
	return fmt.Sprintf("%s %s: stock %d against %s %d at %s",
		title(e.Type), e.ProductID, e.StockAtTrigger, bound, e.ThresholdAtTrigger,
		e.Timestamp.In(loc).Format("2006-01-02 15:04"))
}
