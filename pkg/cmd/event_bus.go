package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowgraph/pkg/channels/gochannel"
	"github.com/dukex/flowgraph/pkg/channels/kafka"
	"github.com/dukex/flowgraph/pkg/eventbus"
)

const serviceName = "flowgraph"

// NewEventBus builds the watermill event bus for provider "gochannel" or
// "kafka". brokers is a comma separated list used by kafka.
func NewEventBus(logger *slog.Logger, provider, brokers string) (*eventbus.WatermillEventBus, error) {
	wlogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(wlogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wlogger, kafka.ParseBrokers(brokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	default:
		return nil, fmt.Errorf("%w: event bus %q", ErrUnsupportedProvider, provider)
	}
}
