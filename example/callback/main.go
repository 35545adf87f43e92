package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	liveflow "github.com/ghalamif/LiveFlow"
)

func main() {
	flow, err := liveflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	flow.Config().Replay.Path = "../../data/sample.dat"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callback := func(batch []liveflow.Sample) error {
		for _, s := range batch {
			fmt.Printf("%s temp=%.1f hum=%.0f wind=%.1f gust=%.1f rain_rate=%.1f storm=%.1f synthetic=%t\n",
				s.Timestamp.Format(time.RFC3339),
				s.Temperature,
				s.Humidity,
				s.WindSpeed,
				s.GustWindSpeed,
				s.Davis.RainRate,
				s.Davis.StormRain,
				s.Synthetic,
			)
		}
		return nil
	}

	err = flow.
		Options(liveflow.WithoutMetricsServer()).
		Run(ctx, liveflow.StreamOutCallback("stdout", callback))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}
