package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rentflow/pkg/config"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/metrics"
	"rentflow/pkg/queue"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []string
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, to string, _ *Rendered) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func newTestDispatcher(t *testing.T, email, sms Channel, m *metrics.Metrics) (*Dispatcher, *queue.RedisQueue) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := queue.NewRedisQueueWithClient(client, "test")
	t.Cleanup(func() { _ = q.Close() })

	d := NewDispatcher(q, config.NotifyConfig{QueueName: "notifications"}, logrus.New(),
		WithChannels(email, sms), WithMetrics(m), WithPollTimeout(100*time.Millisecond))
	return d, q
}

func TestDispatcher_DeliverPicksChannelsByContact(t *testing.T) {
	email := &recordingChannel{name: ChannelEmail}
	sms := &recordingChannel{name: ChannelSMS}
	d, _ := newTestDispatcher(t, email, sms, nil)

	results, err := d.Deliver(context.Background(), Message{
		Type:      TemplateGeneral,
		Recipient: Recipient{Email: "a@example.com"},
		Variables: map[string]interface{}{"message": "hi"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, ChannelEmail, results[0].Channel)
	assert.Equal(t, 1, email.count())
	assert.Equal(t, 0, sms.count())

	results, err = d.Deliver(context.Background(), Message{
		Type:      TemplateGeneral,
		Recipient: Recipient{Email: "a@example.com", Phone: "123"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = d.Deliver(context.Background(), Message{Type: TemplateGeneral})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDispatcher_DeliverPartialAndTotalFailure(t *testing.T) {
	email := &recordingChannel{name: ChannelEmail, err: errors.New("smtp down")}
	sms := &recordingChannel{name: ChannelSMS}
	m := metrics.New("test")
	d, _ := newTestDispatcher(t, email, sms, m)

	msg := Message{Type: TemplateGeneral, Recipient: Recipient{Email: "a@example.com", Phone: "123"}}
	results, err := d.Deliver(context.Background(), msg)
	require.NoError(t, err)
	assert.False(t, results[0].Success)
	assert.Equal(t, "smtp down", results[0].Error)
	assert.True(t, results[1].Success)

	msg.Recipient.Phone = ""
	_, err = d.Deliver(context.Background(), msg)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)

	assert.Equal(t, 2, testutil.CollectAndCount(m.Registry(), "test_notification_deliveries_total"))
}

func TestDispatcher_SendRejectsUnknownTemplate(t *testing.T) {
	d, q := newTestDispatcher(t, &recordingChannel{name: ChannelEmail}, &recordingChannel{name: ChannelSMS}, nil)

	err := d.Send(context.Background(), Message{Type: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	n, err := q.Len(context.Background(), "notifications")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcher_SendThenProcess(t *testing.T) {
	email := &recordingChannel{name: ChannelEmail}
	d, q := newTestDispatcher(t, email, &recordingChannel{name: ChannelSMS}, nil)
	ctx := context.Background()

	require.NoError(t, d.Send(ctx, Message{
		Type:      TemplatePaymentSubmitted,
		Recipient: Recipient{Name: "T", Email: "t@example.com"},
	}))
	n, err := q.Len(ctx, "notifications")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, email.count())

	processed, err := d.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 1, email.count())

	processed, err = d.ProcessOne(ctx)
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	email := &recordingChannel{name: ChannelEmail}
	d, _ := newTestDispatcher(t, email, &recordingChannel{name: ChannelSMS}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	require.NoError(t, d.Send(context.Background(), Message{Type: TemplateGeneral, Recipient: Recipient{Email: "x@example.com"}}))
	assert.Eventually(t, func() bool { return email.count() == 1 }, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcher_SendWithoutQueueDeliversInBackground(t *testing.T) {
	email := &recordingChannel{name: ChannelEmail}
	d := NewDispatcher(nil, config.NotifyConfig{}, logrus.New(), WithChannels(email, &recordingChannel{name: ChannelSMS}))

	require.NoError(t, d.Send(context.Background(), Message{Type: TemplateGeneral, Recipient: Recipient{Email: "x@example.com"}}))
	assert.Eventually(t, func() bool { return email.count() == 1 }, time.Second, 10*time.Millisecond)
}
