package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)
	srv.Start()
	t.Cleanup(srv.Shutdown)
	require.True(t, srv.ReadyForConnections(5*time.Second), "embedded NATS not ready")
	return srv.ClientURL()
}

func TestPublishersImplementInterface(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
}

func TestNewWithoutURLIsNoop(t *testing.T) {
	pub := New("")
	assert.IsType(t, &NoopPublisher{}, pub)
	assert.NoError(t, pub.Publish(context.Background(), TopicRunStarted, RunStarted{}))
	assert.NoError(t, pub.Close())
}

func TestNewWithUnreachableURLFallsBack(t *testing.T) {
	pub := New("nats://127.0.0.1:1")
	assert.IsType(t, &NoopPublisher{}, pub)
}

func TestNATSPublisherPublish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe("ledger.>", ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	event := ReceiptRecorded{OrgID: "org_a", RunID: "run_1", ReceiptID: "rcpt_1", AmountCents: 2500, Currency: "usd"}
	require.NoError(t, pub.Publish(context.Background(), TopicReceiptRecorded, event))
	require.NoError(t, pub.Close())

	select {
	case msg := <-ch:
		assert.Equal(t, TopicReceiptRecorded, msg.Subject)
		var got ReceiptRecorded
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "rcpt_1", got.ReceiptID)
		assert.Equal(t, int64(2500), got.AmountCents)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisherHonoursCancelledContext(t *testing.T) {
	url := startTestNATS(t)
	pub, err := NewNATSPublisher(url)
	require.NoError(t, err)
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Publish(ctx, TopicRunStarted, RunStarted{}), context.Canceled)
}
