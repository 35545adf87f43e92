package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"

	"github.com/ghalamif/LiveFlow/internal/domain"
	"github.com/ghalamif/LiveFlow/internal/ports"
)

// PubSubConfig selects the topic emitted samples are published to.
type PubSubConfig struct {
	ProjectID string `yaml:"project_id"`
	Topic     string `yaml:"topic"`
}

// PubSubSink publishes every emitted sample as one JSON message. Messages of
// a station share an ordering key so subscribers see them in order. Publish
// results are awaited off the event loop; failures are logged and counted.
type PubSubSink struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	obs       ports.Observability
	station   string
	pending   sync.WaitGroup
}

func NewPubSubSink(ctx context.Context, cfg PubSubConfig, obs ports.Observability, opts ...option.ClientOption) (*PubSubSink, error) {
	if cfg.ProjectID == "" || cfg.Topic == "" {
		return nil, fmt.Errorf("pubsub sink: project_id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	publisher := client.Publisher(cfg.Topic)
	publisher.EnableMessageOrdering = true
	return &PubSubSink{client: client, publisher: publisher, obs: obs}, nil
}

func (p *PubSubSink) Name() string { return "pubsub" }

func (p *PubSubSink) ConnectStation(code string) { p.station = code }

func (p *PubSubSink) WriteBatch(samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if p.station == "" {
		return ErrNoStation
	}

	ctx := context.Background()
	for _, s := range samples {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("pubsub encode: %w", err)
		}
		res := p.publisher.Publish(ctx, &pubsub.Message{
			Data:        data,
			OrderingKey: p.station,
			Attributes: map[string]string{
				"station":   p.station,
				"hw_type":   s.HardwareType.String(),
				"synthetic": strconv.FormatBool(s.Synthetic),
			},
		})

		p.pending.Add(1)
		go func(station string) {
			defer p.pending.Done()
			if _, err := res.Get(ctx); err != nil {
				p.obs.IncCounter(ports.MetricSinkErrors, 1)
				p.obs.LogError("pubsub_publish_failed", err, ports.Field{Key: "station", Value: station})
				// A failed ordered publish pauses the key until resumed.
				p.publisher.ResumePublish(station)
			}
		}(p.station)
	}
	return nil
}

// Close flushes outstanding messages and closes the client.
func (p *PubSubSink) Close() error {
	p.publisher.Stop()
	p.pending.Wait()
	return p.client.Close()
}

var _ ports.StationSink = (*PubSubSink)(nil)
