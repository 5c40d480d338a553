// Command benchmark drives SET/GET load through a kvring gateway.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"kvring/pkg/client"
)

type BenchmarkResult struct {
	TotalOps      int
	SuccessfulOps int
	FailedOps     int
	Duration      time.Duration
	OpsPerSec     float64
	AvgLatency    time.Duration
	MinLatency    time.Duration
	MaxLatency    time.Duration
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "gateway base URL")
	ops := flag.Int("ops", 1000, "operations per test")
	concurrency := flag.Int("c", 10, "goroutines for the concurrent tests")
	flag.Parse()

	fmt.Println("=== kvring Benchmark ===")
	fmt.Printf("Target: %s\n\n", *baseURL)

	if !checkHealth(*baseURL) {
		fmt.Printf("ERROR: gateway %s is not available\n", *baseURL)
		return
	}

	set := func(key string) error {
		_, err := command(*baseURL, "SET", key, "value_"+key)
		return err
	}
	get := func(key string) error {
		v, err := command(*baseURL, "GET", key)
		if err == nil && v == nil {
			return fmt.Errorf("key %s not found", key)
		}
		return err
	}

	fmt.Printf("Test 1: Sequential Writes (%d operations)\n", *ops)
	printResult(run(*ops, 1, set))

	fmt.Printf("\nTest 2: Sequential Reads (%d operations)\n", *ops)
	printResult(run(*ops, 1, get))

	fmt.Printf("\nTest 3: Concurrent Writes (%d operations, %d goroutines)\n", *ops, *concurrency)
	printResult(run(*ops, *concurrency, set))

	fmt.Printf("\nTest 4: Concurrent Reads (%d operations, %d goroutines)\n", *ops, *concurrency)
	printResult(run(*ops, *concurrency, get))

	fmt.Println("\n=== Benchmark Complete ===")
}

func checkHealth(baseURL string) bool {
	resp, err := httpClient.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// run делит totalOps между горутинами; ключи bench_<i> одинаковы во всех тестах
func run(totalOps, concurrency int, op func(key string) error) BenchmarkResult {
	if concurrency < 1 {
		concurrency = 1
	}
	start := time.Now()
	var wg sync.WaitGroup
	var mu sync.Mutex

	successful := 0
	failed := 0
	latencies := make([]time.Duration, 0, totalOps)

	next := 0
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if next >= totalOps {
					mu.Unlock()
					return
				}
				key := fmt.Sprintf("bench_%d", next)
				next++
				mu.Unlock()

				opStart := time.Now()
				err := op(key)
				latency := time.Since(opStart)

				mu.Lock()
				if err == nil {
					successful++
				} else {
					failed++
				}
				latencies = append(latencies, latency)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	duration := time.Since(start)

	// Вычисление статистики латентности
	var minLat, maxLat, sum time.Duration
	for i, lat := range latencies {
		if i == 0 || lat < minLat {
			minLat = lat
		}
		if lat > maxLat {
			maxLat = lat
		}
		sum += lat
	}
	var avgLatency time.Duration
	if len(latencies) > 0 {
		avgLatency = sum / time.Duration(len(latencies))
	}

	return BenchmarkResult{
		TotalOps:      totalOps,
		SuccessfulOps: successful,
		FailedOps:     failed,
		Duration:      duration,
		OpsPerSec:     float64(successful) / duration.Seconds(),
		AvgLatency:    avgLatency,
		MinLatency:    minLat,
		MaxLatency:    maxLat,
	}
}

func command(baseURL, name string, args ...string) (any, error) {
	body, err := json.Marshal(client.CommandRequest{Name: name, Args: args})
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Post(baseURL+"/api/cmd", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result struct {
		Value any    `json:"value"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, result.Error)
	}
	return result.Value, nil
}

func printResult(result BenchmarkResult) {
	fmt.Printf("  Total Operations: %d\n", result.TotalOps)
	fmt.Printf("  Successful: %d\n", result.SuccessfulOps)
	fmt.Printf("  Failed: %d\n", result.FailedOps)
	fmt.Printf("  Duration: %v\n", result.Duration)
	fmt.Printf("  Operations/sec: %.2f\n", result.OpsPerSec)
	fmt.Printf("  Avg Latency: %v\n", result.AvgLatency)
	fmt.Printf("  Min Latency: %v\n", result.MinLatency)
	fmt.Printf("  Max Latency: %v\n", result.MaxLatency)
}
