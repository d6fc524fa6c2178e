/**
 * @description
 * This is the main entry point for the debtors agent. It is responsible for
 * initializing all components: configuration, the database pool, the message
 * broker consumer and publisher, the core service, the maintenance scheduler,
 * and the HTTP server. It wires everything together and starts the agent.
 *
 * @dependencies
 * - log, log/slog, net/http: Standard Go libraries.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/domain,
 *   internal/store: Internal packages for the agent.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/issuemint/debtors-agent/internal/api"
	"github.com/issuemint/debtors-agent/internal/app"
	"github.com/issuemint/debtors-agent/internal/config"
	"github.com/issuemint/debtors-agent/internal/domain"
	"github.com/issuemint/debtors-agent/internal/store"
	"github.com/issuemint/debtors-agent/pkg/rabbitmq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.MinDebtorID > cfg.MaxDebtorID {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid debtor interval\" min=%d max=%d",
			cfg.MinDebtorID, cfg.MaxDebtorID)
	}

	log.Printf("level=info component=bootstrap msg=\"starting debtors-agent\" port=%s min_debtor_id=%d max_debtor_id=%d",
		cfg.ServerPort, cfg.MinDebtorID, cfg.MaxDebtorID)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	repository := store.NewPostgresStore(dbpool)
	service := app.NewService(repository, cfg)

	// Pin the node's debtor interval. A mismatch against an earlier boot is
	// a deployment error.
	if err := service.ConfigureNode(context.Background(), cfg.MinDebtorID, cfg.MaxDebtorID); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"node configuration failed\" err=%v", err)
	}
	nodeCfg := domain.NodeConfig{MinDebtorID: cfg.MinDebtorID, MaxDebtorID: cfg.MaxDebtorID}

	// The confirming publisher used by the outbox flusher.
	publisher, err := rabbitmq.NewSignalPublisher(cfg.RabbitMQURL, cfg.OutSignalExchange)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq publisher init failed\" err=%v", err)
	}
	defer publisher.Close()
	log.Println("level=info component=bootstrap msg=\"rabbitmq publisher connected\"")

	// The inbound signal consumer.
	signalConsumer := app.NewSignalConsumer(service, nodeCfg)
	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, cfg.ConsumerPrefetch)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer consumer.Close()

	err = consumer.Consume(cfg.SignalExchange, cfg.SignalQueue, cfg.SignalBindingKey, func(body []byte) bool {
		return signalConsumer.HandleMessage(context.Background(), body)
	})
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"signal consumer start failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"signal consumer started\"")

	// Periodic sweeps and outbox flushing.
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	scanner := app.NewScanner(service, logger)
	flusher := app.NewFlusher(repository, publisher, cfg.OutboxBatchSize)
	scheduler := app.NewScheduler(scanner, flusher, logger, cfg)
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// Set up the HTTP router and start the server.
	handlers := api.NewDebtorHandlers(service)
	router := api.DebtorRoutes(handlers)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
