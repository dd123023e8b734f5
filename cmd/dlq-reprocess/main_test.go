package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
)

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 {
		t.Fatalf("unexpected brokers count: got=%d want=2", len(brokers))
	}
	if brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func dlqRecord(t *testing.T, originalTopic, key string, envelope kafka.CommandEnvelope) []byte {
	t.Helper()

	original, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	raw, err := json.Marshal(map[string]any{
		"original_topic": originalTopic,
		"original_key":   key,
		"original_value": string(original),
		"error_message":  "catalog unavailable",
		"retry_count":    3,
	})
	if err != nil {
		t.Fatalf("marshal dlq record: %v", err)
	}
	return raw
}

func TestExtractReplayMessage(t *testing.T) {
	envelope := kafka.CommandEnvelope{
		Command:       kafka.CommandCreateOrder,
		CorrelationID: "corr-1",
		Payload:       json.RawMessage(`{"items":[{"product_id":"p1","quantity":1}]}`),
	}
	msg := &sarama.ConsumerMessage{Value: dlqRecord(t, "orders.commands", "corr-1", envelope)}

	got, err := extractReplayMessage(msg, "fallback-topic")
	if err != nil {
		t.Fatalf("extractReplayMessage failed: %v", err)
	}
	if got.topic != "orders.commands" {
		t.Fatalf("unexpected topic: %s", got.topic)
	}
	if got.key != "corr-1" {
		t.Fatalf("unexpected key: %s", got.key)
	}

	var replayed kafka.CommandEnvelope
	if err := json.Unmarshal(got.value, &replayed); err != nil {
		t.Fatalf("replayed value is not an envelope: %v", err)
	}
	if replayed.Command != kafka.CommandCreateOrder {
		t.Fatalf("unexpected command: %s", replayed.Command)
	}
}

func TestExtractReplayMessage_FallbackTopic(t *testing.T) {
	envelope := kafka.CommandEnvelope{Command: kafka.CommandFindAllOrders, CorrelationID: "corr-2"}
	msg := &sarama.ConsumerMessage{Value: dlqRecord(t, "", "corr-2", envelope)}

	got, err := extractReplayMessage(msg, "fallback-topic")
	if err != nil {
		t.Fatalf("extractReplayMessage failed: %v", err)
	}
	if got.topic != "fallback-topic" {
		t.Fatalf("unexpected topic: %s", got.topic)
	}
}

func TestExtractReplayMessage_RejectsGarbage(t *testing.T) {
	cases := []struct {
		name  string
		value []byte
	}{
		{name: "not json", value: []byte("not-json")},
		{name: "no original value", value: []byte(`{"original_topic":"orders.commands"}`)},
		{name: "original value not an envelope", value: []byte(`{"original_value":"not-json"}`)},
		{name: "empty command", value: []byte(`{"original_value":"{}"}`)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &sarama.ConsumerMessage{Value: tc.value}
			if _, err := extractReplayMessage(msg, "fallback"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

type fakeOffsetClient struct {
	partitions []int32
	oldest     int64
	newest     int64
}

func (f *fakeOffsetClient) GetOffset(_ string, _ int32, at int64) (int64, error) {
	if at == sarama.OffsetOldest {
		return f.oldest, nil
	}
	return f.newest, nil
}

func (f *fakeOffsetClient) Partitions(string) ([]int32, error) { return f.partitions, nil }
func (f *fakeOffsetClient) Close() error                       { return nil }

type fakePartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (f *fakePartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return f.messages }
func (f *fakePartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return f.errors }
func (f *fakePartitionConsumer) Close() error                             { return nil }

type fakeConsumerSource struct {
	consumer *fakePartitionConsumer
}

func (f *fakeConsumerSource) ConsumePartition(string, int32, int64) (partitionConsumer, error) {
	return f.consumer, nil
}
func (f *fakeConsumerSource) Close() error { return nil }

type fakeReplayProducer struct {
	sent []*sarama.ProducerMessage
	err  error
}

func (f *fakeReplayProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.sent = append(f.sent, msg)
	return 0, int64(len(f.sent)), nil
}

func (f *fakeReplayProducer) Close() error { return nil }

func queueMessages(values [][]byte) *fakePartitionConsumer {
	pc := &fakePartitionConsumer{
		messages: make(chan *sarama.ConsumerMessage, len(values)),
		errors:   make(chan *sarama.ConsumerError, 1),
	}
	for i, value := range values {
		pc.messages <- &sarama.ConsumerMessage{
			Topic:     kafka.TopicDeadLetterQueue,
			Partition: 0,
			Offset:    int64(i),
			Value:     value,
		}
	}
	return pc
}

func TestRunReplay_ExecuteMode(t *testing.T) {
	envelope := kafka.CommandEnvelope{
		Command:       kafka.CommandCreateOrder,
		CorrelationID: "corr-1",
		Payload:       json.RawMessage(`{"items":[{"product_id":"p1","quantity":1}]}`),
	}
	values := [][]byte{
		dlqRecord(t, "orders.commands", "corr-1", envelope),
		[]byte("garbage"),
	}

	client := &fakeOffsetClient{partitions: []int32{0}, oldest: 0, newest: int64(len(values))}
	source := &fakeConsumerSource{consumer: queueMessages(values)}
	producer := &fakeReplayProducer{}

	cfg := config{
		brokers:     []string{"broker:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderCommands,
		limit:       10,
		execute:     true,
		idleTimeout: 100 * time.Millisecond,
	}

	if err := runReplay(context.Background(), cfg, client, source, producer); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}

	if len(producer.sent) != 1 {
		t.Fatalf("expected 1 replayed message, got %d", len(producer.sent))
	}
	sent := producer.sent[0]
	if sent.Topic != "orders.commands" {
		t.Fatalf("unexpected target topic: %s", sent.Topic)
	}

	// Retry-счётчик обнуляется при повторной подаче.
	var resetHeader bool
	for _, header := range sent.Headers {
		if string(header.Key) == kafka.HeaderRetryCount && string(header.Value) == "0" {
			resetHeader = true
		}
	}
	if !resetHeader {
		t.Fatal("expected retry count header reset to 0")
	}
}

func TestRunReplay_DryRunDoesNotNeedProducer(t *testing.T) {
	envelope := kafka.CommandEnvelope{Command: kafka.CommandMarkOrderPaid, CorrelationID: "corr-9"}
	values := [][]byte{dlqRecord(t, "", "corr-9", envelope)}

	client := &fakeOffsetClient{partitions: []int32{0}, oldest: 0, newest: 1}
	source := &fakeConsumerSource{consumer: queueMessages(values)}

	cfg := config{
		brokers:     []string{"broker:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderCommands,
		limit:       10,
		execute:     false,
		idleTimeout: 100 * time.Millisecond,
	}

	if err := runReplay(context.Background(), cfg, client, source, nil); err != nil {
		t.Fatalf("runReplay failed: %v", err)
	}
}

func TestRunReplay_ExecuteRequiresProducer(t *testing.T) {
	client := &fakeOffsetClient{partitions: []int32{0}}
	source := &fakeConsumerSource{consumer: queueMessages(nil)}

	cfg := config{execute: true, limit: 1, idleTimeout: time.Second, sourceTopic: "t", targetTopic: "t"}
	if err := runReplay(context.Background(), cfg, client, source, nil); err == nil {
		t.Fatal("expected error without producer in execute mode")
	}
}

func TestRunReplay_PublishFailureStopsReplay(t *testing.T) {
	envelope := kafka.CommandEnvelope{Command: kafka.CommandCreateOrder, CorrelationID: "corr-1"}
	values := [][]byte{dlqRecord(t, "orders.commands", "corr-1", envelope)}

	client := &fakeOffsetClient{partitions: []int32{0}, oldest: 0, newest: 1}
	source := &fakeConsumerSource{consumer: queueMessages(values)}
	producer := &fakeReplayProducer{err: errors.New("broker down")}

	cfg := config{
		brokers:     []string{"broker:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderCommands,
		limit:       10,
		execute:     true,
		idleTimeout: 100 * time.Millisecond,
	}

	err := runReplay(context.Background(), cfg, client, source, producer)
	if err == nil {
		t.Fatal("expected publish failure to propagate")
	}
	if got := fmt.Sprintf("%v", err); got == "" {
		t.Fatal("expected non-empty error")
	}
}
