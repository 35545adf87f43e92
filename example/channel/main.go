package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	liveflow "github.com/ghalamif/LiveFlow"
)

func main() {
	cfg, err := liveflow.ParseConfig([]byte(`
station: SIM1
buffer:
  dir: /tmp/liveflow-example
aggregation:
  mode: average
  timespan_seconds: 5
log:
  format: console
`))
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}

	pub := liveflow.NewPublisher(16)
	sink, batches, closeSink := liveflow.NewChannelSink("channel", 8)
	defer closeSink()

	rt, err := liveflow.NewRuntime(cfg,
		liveflow.WithCollector(pub),
		liveflow.WithSink(sink),
		liveflow.WithoutMetricsServer(),
	)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	go simulate(ctx, pub)
	go func() {
		for batch := range batches {
			for _, s := range batch {
				fmt.Printf("%s avg temp=%.2f wind=%.2f gust=%.2f\n",
					s.Timestamp.Format(time.TimeOnly), s.Temperature, s.WindSpeed, s.GustWindSpeed)
			}
		}
	}()

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Fatalf("runtime error: %v", err)
	}
}

// simulate publishes one sample per second for twenty seconds, then closes
// the publisher so the runtime drains and stops.
func simulate(ctx context.Context, pub *liveflow.Publisher) {
	defer pub.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for i := 0; i < 20; i++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s := liveflow.Sample{
				Timestamp:     now,
				HardwareType:  liveflow.HardwareGeneric,
				Temperature:   18 + rand.Float64()*2,
				Humidity:      60,
				Pressure:      1012,
				WindSpeed:     rand.Float64() * 5,
				GustWindSpeed: 5 + rand.Float64()*3,
				WindDirection: 270,
			}
			if err := pub.Publish(ctx, s); err != nil {
				log.Printf("publish: %v", err)
				return
			}
		}
	}
}
