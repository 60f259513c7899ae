package queue

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/emrgen/revision/internal/model"
	"github.com/sirupsen/logrus"
)

var _ VersionQueue = (*Kafka)(nil)

// Kafka publishes version events to a kafka topic keyed by scope, so the
// events of one scope stay ordered within a partition.
type Kafka struct {
	producer *kafka.Producer
	topic    string
}

func NewKafka(brokers, topic string) (*Kafka, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, err
	}

	k := &Kafka{producer: producer, topic: topic}
	go k.report()

	return k, nil
}

// report logs delivery failures reported by the producer.
func (k *Kafka) report() {
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logrus.Errorf("version event delivery failed: %v", ev.TopicPartition.Error)
			}
		case kafka.Error:
			logrus.Errorf("kafka producer error: %v", ev)
		}
	}
}

func (k *Kafka) PublishVersionCreated(ctx context.Context, v *model.Version) error {
	event := NewVersionEvent(v)
	value, err := event.MarshalBinary()
	if err != nil {
		return err
	}

	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Key()),
		Value:          value,
		Headers:        []kafka.Header{{Key: "type", Value: []byte(event.Type)}},
	}, nil)
}

func (k *Kafka) Close() {
	remaining := k.producer.Flush(5000)
	if remaining > 0 {
		logrus.Warnf("%d version events were not delivered before shutdown", remaining)
	}
	k.producer.Close()
}
