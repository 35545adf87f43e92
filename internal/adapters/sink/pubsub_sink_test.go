package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ghalamif/LiveFlow/internal/adapters/observability"
	"github.com/ghalamif/LiveFlow/internal/domain"
)

func newTestPubSub(t *testing.T) (*pstest.Server, *PubSubSink) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })
	_, err := srv.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: "projects/weather/topics/live"})
	require.NoError(t, err)

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	sink, err := NewPubSubSink(ctx, PubSubConfig{ProjectID: "weather", Topic: "live"},
		observability.Nop{}, option.WithGRPCConn(conn))
	require.NoError(t, err)
	return srv, sink
}

func TestPubSubSinkPublishesSamples(t *testing.T) {
	srv, sink := newTestPubSub(t)
	sink.ConnectStation("sb")

	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	batch := []domain.Sample{
		{Timestamp: ts, HardwareType: domain.HardwareDavis, Temperature: 21.5},
		{Timestamp: ts.Add(2500 * time.Millisecond), HardwareType: domain.HardwareDavis, Temperature: 21.5, Synthetic: true},
	}
	require.NoError(t, sink.WriteBatch(batch))
	require.NoError(t, sink.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 2)

	var first domain.Sample
	require.NoError(t, json.Unmarshal(msgs[0].Data, &first))
	assert.True(t, ts.Equal(first.Timestamp))
	assert.Equal(t, 21.5, first.Temperature)
	assert.Equal(t, "sb", msgs[0].Attributes["station"])
	assert.Equal(t, "davis", msgs[0].Attributes["hw_type"])
	assert.Equal(t, "false", msgs[0].Attributes["synthetic"])
	assert.Equal(t, "true", msgs[1].Attributes["synthetic"])
	assert.Equal(t, "sb", msgs[1].OrderingKey)
}

func TestPubSubSinkRequiresStation(t *testing.T) {
	srv, sink := newTestPubSub(t)
	defer sink.Close()

	require.NoError(t, sink.WriteBatch(nil))
	err := sink.WriteBatch([]domain.Sample{{Timestamp: time.Now()}})
	assert.True(t, errors.Is(err, ErrNoStation))
	assert.Empty(t, srv.Messages())
	assert.Equal(t, "pubsub", sink.Name())
}

func TestNewPubSubSinkValidatesConfig(t *testing.T) {
	_, err := NewPubSubSink(context.Background(), PubSubConfig{ProjectID: "weather"}, observability.Nop{})
	require.Error(t, err)
}
