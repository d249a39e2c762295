// Command query answers natural-language questions about the business
// knowledge graph. By default it runs an interactive prompt; with --serve it
// exposes the same pipeline over HTTP instead.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/urbanfabric/bizgraph/config"
	"github.com/urbanfabric/bizgraph/graph"
	"github.com/urbanfabric/bizgraph/httpapi"
	"github.com/urbanfabric/bizgraph/llm"
	"github.com/urbanfabric/bizgraph/query"
	"github.com/urbanfabric/bizgraph/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		serve   bool
		verbose bool
	)
	pflag.BoolVar(&serve, "serve", false, "serve the HTTP API instead of the interactive prompt")
	pflag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	reg, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return err
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey: cfg.OpenAI.APIKey,
		Model:  cfg.OpenAI.Model,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := graph.NewStore(ctx, graph.Config{
		URI:          cfg.Neo4j.URI,
		Username:     cfg.Neo4j.Username,
		Password:     cfg.Neo4j.Password,
		QueryTimeout: cfg.Neo4j.QueryTimeout.Std(),
	})
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	cache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}

	session, err := query.NewSession(query.SessionConfig{
		Client:   client,
		Querier:  store,
		Registry: reg,
		Cache:    cache,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	if serve {
		return serveHTTP(cfg.HTTPAddr, session, logger)
	}
	return repl(session)
}

// openCache builds the translation cache when a Redis URL is configured.
// A nil cache is a valid always-miss cache.
func openCache(cfg *config.Config, logger *slog.Logger) (*query.Cache, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return query.NewCache(redis.NewClient(opts), query.DefaultCacheTTL, logger), nil
}

func serveHTTP(addr string, session *query.Session, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewServer(session, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// repl runs the interactive loop. An interrupt while a question is in flight
// cancels that question; an interrupt at the prompt, or a second interrupt,
// exits.
func repl(session *query.Session) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("Ask a question about the business graph. Type \"exit\" or press Ctrl+C to quit.")
	for {
		question, ok := prompt("question> ", lines, sig)
		if !ok {
			fmt.Println()
			return nil
		}
		question = strings.TrimSpace(question)
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		extra, ok := prompt("additional context (optional)> ", lines, sig)
		if !ok {
			fmt.Println()
			return nil
		}

		answer, err := askOnce(context.Background(), sig, session, question, strings.TrimSpace(extra))
		if err != nil {
			printAskError(err)
			continue
		}
		printAnswer(answer)
	}
}

// prompt reads one line, or reports exit when input closes or an interrupt
// arrives while waiting.
func prompt(label string, lines <-chan string, sig <-chan os.Signal) (string, bool) {
	fmt.Print(label)
	select {
	case <-sig:
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}

// askOnce runs one question with interrupt-to-cancel semantics: the first
// interrupt cancels the in-flight step and returns control to the prompt.
func askOnce(ctx context.Context, sig <-chan os.Signal, session *query.Session, question, extra string) (*query.Answer, error) {
	askCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-done:
		}
	}()

	return session.Ask(askCtx, question, extra)
}

func printAskError(err error) {
	var persistent *query.PersistentInvalidQuery
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println("\ncancelled")
	case errors.As(err, &persistent):
		fmt.Printf("could not produce a valid query: %s\n", persistent.LastDetail)
	default:
		fmt.Printf("question failed: %v\n", err)
	}
}

func printAnswer(a *query.Answer) {
	fmt.Printf("\nquery:\n  %s\n", a.Cypher)
	if a.Reasoning != "" {
		fmt.Printf("\nreasoning:\n  %s\n", a.Reasoning)
	}
	fmt.Printf("\n%s\n", a.Interpretation)
	if len(a.FollowUps) > 0 {
		fmt.Println("\nyou could also ask:")
		for i, q := range a.FollowUps {
			fmt.Printf("  %d. %s\n", i+1, q)
		}
	}
	if a.Visualization != nil {
		fmt.Printf("\n(%d map layers available for visualization)\n", len(a.Visualization.Layers))
	}
	fmt.Println()
}
