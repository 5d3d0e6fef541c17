// watch connects to a notifyd gateway and prints notifications to the console.
// Usage: go run ./cmd/watch --objects 1.2.15,1.2.16 --markets 1.3.0:1.3.1
//
// Optional environment variables:
//
//	WATCH_USER     - gateway login name
//	WATCH_PASSWORD - gateway login password
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/ledger-notify/internal/gateway"
	"github.com/rickgao/ledger-notify/internal/model"
)

func main() {
	url := flag.String("url", "ws://localhost:8090/ws", "gateway WebSocket URL")
	objectsFlag := flag.String("objects", "", "comma-separated object ids to watch")
	marketsFlag := flag.String("markets", "", "comma-separated markets as a:b asset ids")
	verbose := flag.Bool("verbose", false, "print full notification JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	objects, err := parseObjects(*objectsFlag)
	if err != nil {
		logger.Error("invalid --objects", "error", err)
		os.Exit(1)
	}
	markets, err := parseMarkets(*marketsFlag)
	if err != nil {
		logger.Error("invalid --markets", "error", err)
		os.Exit(1)
	}
	if len(objects) == 0 && len(markets) == 0 {
		logger.Error("nothing to watch: set --objects or --markets")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, 10*time.Second)
	client, err := gateway.Dial(dialCtx, gateway.ClientConfig{URL: *url}, logger)
	dialCancel()
	if err != nil {
		logger.Error("failed to connect", "url", *url, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if user := os.Getenv("WATCH_USER"); user != "" {
		ok, err := client.Login(ctx, user, os.Getenv("WATCH_PASSWORD"))
		if err != nil || !ok {
			logger.Error("login failed", "user", user, "error", err)
			os.Exit(1)
		}
		logger.Info("logged in", "user", user)
	}

	if len(objects) > 0 {
		// Current values first, then changes.
		values, err := client.GetObjects(ctx, objects...)
		if err != nil {
			logger.Error("get_objects failed", "error", err)
			os.Exit(1)
		}
		for i, v := range values {
			fmt.Printf("[OBJECT] id=%s value=%s\n", objects[i], valueString(v))
		}
		if err := client.SubscribeToObjects(ctx, "objects", objects...); err != nil {
			logger.Error("subscribe_to_objects failed", "error", err)
			os.Exit(1)
		}
	}
	for _, p := range markets {
		if err := client.SubscribeToMarket(ctx, "market "+p.String(), p.A, p.B); err != nil {
			logger.Error("subscribe_to_market failed", "market", p, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("watching - press Ctrl+C to stop", "objects", len(objects), "markets", len(markets))

	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 2*time.Second)
			client.CancelAllSubscriptions(cleanupCtx)
			cleanupCancel()
			logger.Info("shutdown complete")
			return
		case <-client.Done():
			logger.Error("connection closed", "error", client.Err())
			os.Exit(1)
		case n := <-client.Notices():
			printNotice(n, *verbose)
		}
	}
}

func printNotice(n gateway.Notice, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(n.Params, "", "  ")
		fmt.Printf("[NOTICE] %s\n", data)
		return
	}

	note := n.Params.Notification
	switch note.Kind {
	case model.KindObject:
		if note.Removed() {
			fmt.Printf("[REMOVED] id=%s blocks=%v\n", note.Object, note.Blocks)
			return
		}
		fmt.Printf("[UPDATE] id=%s blocks=%v value=%s\n", note.Object, note.Blocks, valueString(note.Value))
	case model.KindMarket:
		fmt.Printf("[MARKET] pair=%s blocks=%v ops=%d\n", note.Pair, note.Blocks, len(note.Ops))
		for _, op := range note.Ops {
			fmt.Printf("  %s\n", opString(op.Op))
		}
	}
}
