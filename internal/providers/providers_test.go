package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-alert-service/internal/logging"
	"stock-alert-service/internal/models"
)

type fakeMailer struct {
	mu    sync.Mutex
	sent  []string
	block chan struct{}
}

func (f *fakeMailer) Send(to, subject, body string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

type flakyTexter struct {
	calls int
	fails int
}

func (f *flakyTexter) Send(toNumber, body string) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("twilio 503")
	}
	return nil
}

type fakeChat struct {
	chats []int64
}

func (f *fakeChat) Send(_ context.Context, chatID int64, _ string) error {
	f.chats = append(f.chats, chatID)
	return nil
}

var contacts = []string{"ops@pharma.test", "+15550001", "tg:4242", "warehouse", "ops@pharma.test", "tg:abc"}

func TestRecipientsRouteByContactShape(t *testing.T) {
	logger := logging.NewNop()
	e := &Email{mailer: &fakeMailer{}, logger: logger}
	s := newSMS(&flakyTexter{}, 1, logger)
	tg := newTelegram(&fakeChat{}, 1, logger)
	h := NewHub(logger)

	assert.Equal(t, []string{"ops@pharma.test"}, e.Recipients(contacts))
	assert.Equal(t, []string{"+15550001"}, s.Recipients(contacts))
	assert.Equal(t, []string{"tg:4242"}, tg.Recipients(contacts))
	assert.Equal(t, []string{DashboardRecipient}, h.Recipients(contacts))
}

func TestEmailSendHonoursTimeout(t *testing.T) {
	m := &fakeMailer{block: make(chan struct{})}
	defer close(m.block)
	e := &Email{mailer: m, logger: logging.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := e.Send(ctx, models.Message{Recipient: "ops@pharma.test", Subject: "Low stock"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSMSRetriesTransientFailures(t *testing.T) {
	client := &flakyTexter{fails: 2}
	s := newSMS(client, 10, logging.NewNop())
	s.backoff = time.Millisecond

	err := s.Send(context.Background(), models.Message{Recipient: "+15550001", Subject: "Low stock"})
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)
}

func TestTelegramParsesChatID(t *testing.T) {
	client := &fakeChat{}
	tg := newTelegram(client, 10, logging.NewNop())

	require.NoError(t, tg.Send(context.Background(), models.Message{Recipient: "tg:4242"}))
	assert.Equal(t, []int64{4242}, client.chats)

	assert.Error(t, tg.Send(context.Background(), models.Message{Recipient: "4242"}))
}

func TestHubBroadcastsToDashboards(t *testing.T) {
	hub := NewHub(logging.NewNop())
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.AddConnection(conn)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 5*time.Millisecond)

	msg := models.Message{Channel: models.ChannelSystem, Recipient: DashboardRecipient, Subject: "Low stock: P1"}
	require.NoError(t, hub.Send(context.Background(), msg))

	var got models.Message
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "Low stock: P1", got.Subject)
}

func TestHubWithoutConnectionsSucceeds(t *testing.T) {
	hub := NewHub(logging.NewNop())
	assert.NoError(t, hub.Send(context.Background(), models.Message{Subject: "x"}))
}
