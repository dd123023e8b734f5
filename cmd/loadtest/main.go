package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
)

const defaultQty = int32(1)

type config struct {
	brokers     []string
	topic       string
	replyTopic  string
	total       int
	duration    time.Duration
	totalSet    bool
	concurrency int
	producers   int
	products    []string
	qty         int32
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt       time.Time      `json:"started_at"`
	DurationSeconds float64        `json:"duration_seconds"`
	TotalCommands   int64          `json:"total_commands"`
	SuccessCommands int64          `json:"success_commands"`
	FailedCommands  int64          `json:"failed_commands"`
	ErrorRate       float64        `json:"error_rate"`
	CommandsPerSec  float64        `json:"commands_per_sec"`
	PublishLatency  latencySummary `json:"publish_latency_ms"`
}

type collector struct {
	mu        sync.Mutex
	latencies []float64
}

func (c *collector) record(latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) summary() latencySummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return buildLatencySummary(c.latencies)
}

func parseConfig() (config, error) {
	var cfg config
	var brokersRaw string
	var productsRaw string
	var qty int

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: KAFKA_BROKERS)")
	flag.StringVar(&cfg.topic, "topic", kafka.TopicOrderCommands, "command topic")
	flag.StringVar(&cfg.replyTopic, "reply-topic", kafka.TopicOrderReplies, "reply_to topic stamped into envelopes")
	flag.IntVar(&cfg.total, "total", 400, "total commands to publish in count mode")
	flag.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	flag.IntVar(&cfg.producers, "producers", 4, "number of kafka producers")
	flag.StringVar(&productsRaw, "products", "demo-1,demo-2", "comma-separated product ids for generated orders")
	flag.IntVar(&qty, "qty", int(defaultQty), "quantity per order item")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("KAFKA_BROKERS")
	}
	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return cfg, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	}

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	cfg.products = parseBrokers(productsRaw)
	if len(cfg.products) == 0 {
		return cfg, errors.New("at least one product id is required")
	}
	if qty <= 0 {
		return cfg, errors.New("qty must be > 0")
	}
	cfg.qty = int32(qty)

	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.producers <= 0 {
		return cfg, errors.New("producers must be > 0")
	}
	if strings.TrimSpace(cfg.topic) == "" {
		return cfg, errors.New("topic is required")
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	values := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		value := strings.TrimSpace(chunk)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	return values
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	producers := make([]sarama.SyncProducer, 0, cfg.producers)
	for i := 0; i < cfg.producers; i++ {
		producer, err := newSyncProducer(cfg.brokers)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create kafka producer: %v\n", err)
			os.Exit(1)
		}
		producers = append(producers, producer)
	}
	defer func() {
		for _, producer := range producers {
			_ = producer.Close()
		}
	}()

	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := &collector{}

	jobs := make(chan int, cfg.concurrency*2)
	var success, failed int64
	var wg sync.WaitGroup

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		producer := producers[workerID%len(producers)]
		go func(p sarama.SyncProducer) {
			defer wg.Done()
			for id := range jobs {
				if err := publishCreateCommand(p, cfg, runID, id, col); err != nil {
					atomic.AddInt64(&failed, 1)
				} else {
					atomic.AddInt64(&success, 1)
				}
			}
		}(producer)
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	duration := time.Since(startedAt)
	total := success + failed
	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		TotalCommands:   total,
		SuccessCommands: success,
		FailedCommands:  failed,
		ErrorRate:       ratio(failed, total),
		PublishLatency:  col.summary(),
	}
	if duration > 0 {
		result.CommandsPerSec = float64(total) / duration.Seconds()
	}

	printReport(result)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func newSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Compression = sarama.CompressionSnappy
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1
	return sarama.NewSyncProducer(brokers, producerConfig)
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func publishCreateCommand(producer sarama.SyncProducer, cfg config, runID string, index int, col *collector) error {
	productID := cfg.products[index%len(cfg.products)]
	payload, err := json.Marshal(map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": productID, "quantity": cfg.qty},
		},
	})
	if err != nil {
		return err
	}

	correlationID := fmt.Sprintf("lt-%s-%d-%s", runID, index, uuid.NewString())
	envelope, err := json.Marshal(kafka.CommandEnvelope{
		Command:       kafka.CommandCreateOrder,
		CorrelationID: correlationID,
		ReplyTo:       cfg.replyTopic,
		Payload:       payload,
	})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     cfg.topic,
		Key:       sarama.StringEncoder(correlationID),
		Value:     sarama.ByteEncoder(envelope),
		Timestamp: time.Now(),
	}

	start := time.Now()
	_, _, err = producer.SendMessage(msg)
	col.record(time.Since(start))
	return err
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report) {
	fmt.Println("Load test summary")
	fmt.Printf("total=%d success=%d failed=%d error_rate=%.4f\n",
		result.TotalCommands,
		result.SuccessCommands,
		result.FailedCommands,
		result.ErrorRate,
	)
	fmt.Printf("duration=%.2fs commands_per_sec=%.2f\n", result.DurationSeconds, result.CommandsPerSec)
	fmt.Printf("publish latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.PublishLatency.Min,
		result.PublishLatency.Avg,
		result.PublishLatency.P50,
		result.PublishLatency.P95,
		result.PublishLatency.P99,
		result.PublishLatency.Max,
	)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
