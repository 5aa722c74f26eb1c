package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Thomas-Heisig/MODAX"
	"github.com/Thomas-Heisig/MODAX/internal/watch"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "watch":
		err = watchCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("modax-node %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to node configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return modax.Run(ctx, *cfgPath)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "./data/config.yaml", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := modax.LoadConfig(*cfgPath); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", *cfgPath)
	return nil
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	broker := fs.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	clientID := fs.String("client-id", "modax-watch", "MQTT client ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return watch.Run(*broker, *clientID)
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets := map[string]float64{
		"modax_safety_publishes_total":    0,
		"modax_telemetry_publishes_total": 0,
		"modax_publish_failures_total":    0,
		"modax_safety_unsafe":             0,
		"modax_outbox_length":             0,
		"modax_spool_size_bytes":          0,
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %f", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("[%s] safety=%.0f telemetry=%.0f failures=%.0f unsafe=%.0f outbox=%.0f spool_bytes=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["modax_safety_publishes_total"],
		targets["modax_telemetry_publishes_total"],
		targets["modax_publish_failures_total"],
		targets["modax_safety_unsafe"],
		targets["modax_outbox_length"],
		targets["modax_spool_size_bytes"],
	)
	return nil
}

func printUsage() {
	fmt.Printf(`MODAX field node CLI

Usage:
  modax-node <command> [flags]

Commands:
  run        Start the field node using the provided config
  validate   Load and validate a config file without starting the node
  stats      Poll the Prometheus metrics endpoint and print live counters
  watch      Live terminal view of a node's telemetry and safety channels

Examples:
  modax-node run -config ./data/config.yaml
  modax-node validate -config ./data/config.yaml
  modax-node stats -url http://localhost:9100/metrics -interval 1s
  modax-node watch -broker tcp://localhost:1883
`)
}
