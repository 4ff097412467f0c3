package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrier-systems/harrierwatch/common/messaging"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(Config{Addr: mr.Addr(), DialTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient_ConnectFailure(t *testing.T) {
	_, err := NewClient(Config{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.Error(t, err)
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := newTestClient(t)

	received := make(chan *messaging.Message, 1)
	sub, err := client.Subscribe(messaging.SubjectSensorEventsFile, func(ctx context.Context, msg *messaging.Message) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)
	require.True(t, sub.IsValid())
	assert.Equal(t, messaging.SubjectSensorEventsFile, sub.Subject())

	frame := []byte(`data: {"type":"added","path":"/etc/hosts","detected_at":"2026-08-22T10:00:00Z"}`)
	require.NoError(t, client.Publish(context.Background(), messaging.SubjectSensorEventsFile, frame))

	select {
	case msg := <-received:
		assert.Equal(t, messaging.SubjectSensorEventsFile, msg.Subject)
		assert.Equal(t, frame, msg.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishMsg(t *testing.T) {
	client, _ := newTestClient(t)

	received := make(chan []byte, 1)
	_, err := client.Subscribe(messaging.SubjectSensorEventsNetwork, func(ctx context.Context, msg *messaging.Message) error {
		received <- msg.Data
		return nil
	})
	require.NoError(t, err)

	msg := &messaging.Message{
		Subject:  messaging.SubjectSensorEventsNetwork,
		Data:     []byte(`data: {"type":"alert","severity":"HIGH"}`),
		Metadata: map[string]string{"ignored": "yes"},
	}
	require.NoError(t, client.PublishMsg(context.Background(), msg))

	select {
	case data := <-received:
		assert.Equal(t, msg.Data, data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRequest_Unsupported(t *testing.T) {
	client, _ := newTestClient(t)
	_, err := client.Request(context.Background(), "sensor.status", []byte("ping"), time.Second)
	require.Error(t, err)
}

func TestQueueSubscribe_FanOutFallback(t *testing.T) {
	client, _ := newTestClient(t)

	got := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		_, err := client.QueueSubscribe(messaging.SubjectSensorEventsFile, "workers", func(ctx context.Context, msg *messaging.Message) error {
			got <- struct{}{}
			return nil
		})
		require.NoError(t, err)
	}

	require.NoError(t, client.Publish(context.Background(), messaging.SubjectSensorEventsFile, []byte("x")))

	// Both subscribers see the message: Redis pub/sub has no queue groups.
	for i := 0; i < 2; i++ {
		select {
		case <-got:
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d did not receive message", i)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	client, _ := newTestClient(t)

	sub, err := client.Subscribe(messaging.SubjectSensorEventsFile, func(ctx context.Context, msg *messaging.Message) error {
		return nil
	})
	require.NoError(t, err)
	require.True(t, sub.IsValid())

	require.NoError(t, sub.Unsubscribe())
	assert.False(t, sub.IsValid())
}

func TestIsConnected(t *testing.T) {
	client, mr := newTestClient(t)
	assert.True(t, client.IsConnected())

	mr.Close()
	assert.False(t, client.IsConnected())
}
