package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"LocalMR/internal/api"
	"LocalMR/internal/controller"
	"LocalMR/internal/logger"
	"LocalMR/internal/types"
	"LocalMR/internal/wordcount"
)

func main() {
	input := flag.String("input", "", "Input file to process")
	workDir := flag.String("workdir", "/tmp/localmr", "Work directory for runs and outputs")
	partitions := flag.Int("partitions", 4, "Number of reduce partitions (R)")
	workers := flag.Int("workers", 0, "Worker concurrency (W), 0 = number of CPUs")
	budget := flag.Int64("budget", 64*1024*1024, "In-memory sort budget per map task in bytes (B)")
	shardSize := flag.Int64("shard-size", 16*1024*1024, "Target shard size in bytes")
	httpAddr := flag.String("http", "", "Serve the status API on this address (e.g. :8080)")
	logLevel := flag.String("log-level", "INFO", "Log level: DEBUG, INFO, WARN, ERROR")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: localmr -input <file> [flags]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	wc := wordcount.New()
	handle, err := controller.Submit(controller.Config{
		InputPath:  *input,
		Partitions: *partitions,
		Workers:    *workers,
		SortBudget: *budget,
		ShardSize:  *shardSize,
		Mapper:     wc,
		Reducer:    wc,
		WorkDir:    *workDir,
		LogLevel:   *logLevel,
	})
	if err != nil {
		log.Fatalf("submit failed: %v", err)
	}

	if *httpAddr != "" {
		srv := api.NewServer(logger.New(*logLevel))
		srv.Register(handle)
		go func() {
			if err := srv.Run(*httpAddr); err != nil {
				log.Fatalf("api server failed: %v", err)
			}
		}()
	}

	status := handle.Wait()
	switch status.State {
	case types.StateCompleted:
		outputs, err := handle.Result()
		if err != nil {
			log.Fatalf("result unavailable: %v", err)
		}
		for _, path := range outputs {
			fmt.Println(path)
		}
	case types.StateFailed:
		log.Fatalf("job failed: %s", status.Err)
	case types.StateCancelled:
		log.Fatalf("job cancelled")
	}
}
