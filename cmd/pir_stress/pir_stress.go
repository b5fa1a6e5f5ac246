package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/sirupsen/logrus"

	"keywordpir/driver"
)

func main() {
	config := new(driver.Config).AddPirFlags().AddClientFlags()
	numWorkers := config.FlagSet.Int("w", 2, "Num workers")
	rowsFile := config.FlagSet.String("rows", "", "rows file with the keywords to read")
	duration := config.FlagSet.Duration("d", 0, "stop after this long, 0 runs until interrupted")
	config.Parse()

	if *rowsFile == "" || config.Usecase == "" {
		logrus.Fatal("Need -rows and -usecase")
	}
	rows, err := driver.LoadRowsFile(*rowsFile, "")
	if err != nil || len(rows) == 0 {
		logrus.Fatalf("Failed to read keywords from %s: %v", *rowsFile, err)
	}

	// We're recording marks-per-1second
	counter := ratecounter.NewRateCounter(1 * time.Second)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	var latencies []time.Duration

	fmt.Printf("Starting %d workers...", *numWorkers)
	for i := 0; i < *numWorkers; i++ {
		server, err := config.ServerDriver()
		if err != nil {
			logrus.Fatalf("Connection error: %v", err)
		}
		client, err := driver.NewClient(server, config.Usecase)
		if err != nil {
			logrus.Fatalf("Failed to initialize client: %v", err)
		}
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
				}
				r := rows[rnd.Intn(len(rows))]
				start := time.Now()
				if _, found, err := client.Lookup(r.Keyword); err != nil || !found {
					logrus.Fatalf("Failed to read %q: found=%v err=%v", r.Keyword, found, err)
				}
				mu.Lock()
				latencies = append(latencies, time.Since(start))
				mu.Unlock()
				counter.Incr(1)
			}
		}(int64(i))
	}
	fmt.Printf("[OK]\n")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ticker.C:
			fmt.Printf("\rCurrent rate: %d QPS", counter.Rate())
		case <-c:
			break loop
		case <-deadline:
			break loop
		}
	}
	close(stop)
	wg.Wait()

	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	if len(latencies) > 0 {
		fmt.Printf("\nCompleted %d queries, mean latency %v\n", len(latencies), total/time.Duration(len(latencies)))
	}
}
