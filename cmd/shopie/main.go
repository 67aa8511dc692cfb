package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Markide1/shopie-app/internal/cart"
	"github.com/Markide1/shopie-app/internal/catalog"
	"github.com/Markide1/shopie-app/internal/config"
	"github.com/Markide1/shopie-app/internal/db"
	"github.com/Markide1/shopie-app/internal/events"
	httpapi "github.com/Markide1/shopie-app/internal/http"
	"github.com/Markide1/shopie-app/internal/inventory"
	"github.com/Markide1/shopie-app/internal/order"
)

func main() {
	cfg := config.Load()

	logger := log.New(os.Stdout, "[shopie] ", log.LstdFlags|log.Lmicroseconds)

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("connect database: %v", err)
	}
	defer pool.Close()

	rabbitConn := events.MustDial(cfg.RabbitURL)
	defer rabbitConn.Close()

	publisher, err := events.NewPublisher(rabbitConn)
	if err != nil {
		logger.Fatalf("rabbitmq publisher: %v", err)
	}
	defer publisher.Close()

	ledger := inventory.NewLedger()
	monitor := inventory.NewMonitor(publisher, logger)

	carts := cart.NewService(pool, ledger, monitor, logger)
	orders := order.NewService(pool, order.NewRepository(pool), ledger, monitor, publisher, logger)
	products := catalog.NewService(pool, ledger, monitor, logger)

	router := httpapi.NewRouter(
		httpapi.NewCatalogHandler(products),
		httpapi.NewCartHandler(carts),
		httpapi.NewOrderHandler(orders),
	)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
