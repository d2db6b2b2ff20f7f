package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fruitfresh/internal/bootstrap"
	"fruitfresh/internal/config"
	httptransport "fruitfresh/internal/transport/http"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("close resources failed: %v", err)
		}
	}()

	router := httptransport.NewRouter(app)
	server := &http.Server{
		Addr:              app.Config.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	app.Logger.Info("server starting",
		zap.String("addr", server.Addr),
		zap.String("model_path", cfg.Model.Path),
		zap.Bool("history_enabled", cfg.History.Enabled),
	)
	if err := serve(server, nil, nil, app.Logger); err != nil {
		app.Logger.Error("server failed", zap.Error(err))
	}
}

// serve runs server until it fails or a shutdown signal arrives. A nil
// listener means ListenAndServe; a nil signals channel means SIGINT/SIGTERM.
func serve(server *http.Server, listener net.Listener, signals <-chan os.Signal, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	if signals == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(ch)
		signals = ch
	}

	select {
	case err := <-errCh:
		return err
	case sig := <-signals:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return <-errCh
}
