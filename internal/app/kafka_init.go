package app

import (
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
)

// initKafkaProducer инициализирует Kafka producer, если brokers не пустой.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	if brokers == "" {
		return nil, nil
	}

	brokerList := strings.Split(brokers, ",")
	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// initCommandConsumer подписывает handler на топик команд с DLQ.
func initCommandConsumer(cfg Config, handler kafka.MessageHandler, dlqProducer *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	brokerList := strings.Split(cfg.KafkaBrokers, ",")
	consumer, err := kafka.NewConsumerWithDLQ(
		brokerList,
		cfg.ConsumerGroup,
		[]string{kafka.TopicOrderCommands},
		handler,
		dlqProducer,
		cfg.MaxRetries,
	)
	if err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"group": cfg.ConsumerGroup,
		"topic": kafka.TopicOrderCommands,
	}).Info("kafka command consumer initialized")
	return consumer, nil
}

// closeKafka закрывает Kafka producer, если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
