package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

type GroupConfig struct {
	Brokers []string
	GroupID string
	Version string // e.g. "2.6.0"; empty keeps the default below
	Oldest  bool   // start from the oldest offset when the group has none
}

func NewGroup(gc GroupConfig) (sarama.ConsumerGroup, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "scalapay-api"
	cfg.Version = sarama.V2_6_0_0
	if gc.Version != "" {
		v, err := sarama.ParseKafkaVersion(gc.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka version: %w", err)
		}
		cfg.Version = v
	}
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRange
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	if gc.Oldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	cfg.Net.DialTimeout = 5 * time.Second
	return sarama.NewConsumerGroup(gc.Brokers, gc.GroupID, cfg)
}
