// Command loadgen smoke-tests a running terrabuild deployment: redis
// round trip, tile endpoints, and an invalidation event over kafka.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
)

func getenv(key, def string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return def
}

func testRedis(ctx context.Context, addr string) error {
	fmt.Println("Redis test")
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	defer func() { _ = client.Close() }()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if err := client.Set(ctx, "loadgen:probe", "ok", 30*time.Second).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	val, err := client.Get(ctx, "loadgen:probe").Result()
	if err != nil {
		return fmt.Errorf("redis get: %w", err)
	}
	fmt.Println("redis GET loadgen:probe:", val)
	return nil
}

func testTiles(baseURL string, requests int) error {
	fmt.Println("Tile endpoint test")
	base := strings.TrimRight(baseURL, "/")
	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < requests; i++ {
		level := 3 + rand.Intn(5)
		n := 1 << level
		col, row := rand.Intn(n), rand.Intn(n)

		url := fmt.Sprintf("%s/tiles/height/%d/%d/%d", base, level, col, row)
		start := time.Now()
		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("get %s: %w", url, err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
			return fmt.Errorf("%s: status %d", url, resp.StatusCode)
		}
		fmt.Printf("%s -> %d, %d bytes, producer=%s, %s\n",
			url, resp.StatusCode, len(body), resp.Header.Get("X-Producing-Tile"), time.Since(start).Round(time.Millisecond))
	}

	// The status probe should report the last tiles as cached now.
	resp, err := client.Get(base + "/tiles/status/4/3/5")
	if err != nil {
		return fmt.Errorf("status probe: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	fmt.Println("status probe:", strings.TrimSpace(string(body)))
	return nil
}

func testInvalidation(brokers []string, topic string) error {
	fmt.Println("Kafka invalidation test")

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_1_0_0
	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return fmt.Errorf("producer create: %w", err)
	}
	defer func() { _ = prod.Close() }()

	payload := map[string]any{
		"version":   1,
		"op":        "update",
		"layer":     "world-elevation",
		"ts":        time.Now().UTC().Format(time.RFC3339Nano),
		"bbox":      map[string]any{"x1": 11.0, "y1": 55.0, "x2": 11.5, "y2": 55.5, "srid": "EPSG:4326"},
		"min_level": 5,
		"max_level": 9,
	}
	msgBytes, _ := json.Marshal(payload)
	part, off, err := prod.SendMessage(&sarama.ProducerMessage{
		Topic: topic, Value: sarama.ByteEncoder(msgBytes),
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	fmt.Printf("produced invalidation event at partition=%d offset=%d\n", part, off)
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	redisAddr := getenv("REDIS_ADDR", "localhost:6379")
	serviceURL := getenv("SERVICE_URL", "http://localhost:8090")
	brokers := strings.Split(getenv("KAFKA_BROKERS", "localhost:9092"), ",")
	topic := getenv("KAFKA_TOPIC", "terrain-invalidation")

	if err := testRedis(ctx, redisAddr); err != nil {
		fmt.Println("Redis error:", err)
		return
	}
	if err := testTiles(serviceURL, 10); err != nil {
		fmt.Println("Tile endpoint error:", err)
		return
	}
	if err := testInvalidation(brokers, topic); err != nil {
		fmt.Println("Kafka error:", err)
		return
	}
	fmt.Println("All tests completed")
}
