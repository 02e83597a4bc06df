package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"bibleai-be/internal/bootstrap"
	"bibleai-be/internal/config"
	"bibleai-be/internal/server"
	"bibleai-be/internal/tracer"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(ctx, cfg.App.OtelEndpoint)

	// 3. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to bootstrap: %v", err)
	}

	// 4. Load the corpus before accepting traffic
	if _, err := container.LoadCorpus(ctx); err != nil {
		log.Fatalf("Unable to load corpus: %v", err)
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run server and background services until a signal arrives
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		container.Sessions.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := container.AnalyticsService.Consume(gctx); err != nil {
			log.Printf("Background analytics consumer error: %v", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Println("Shutting down...")
		errs := []error{
			srv.Shutdown(shutdownCtx),
			container.Sessions.Shutdown(shutdownCtx),
			container.Close(shutdownCtx),
			shutdownTracer(shutdownCtx),
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Printf("Exited with error: %v", err)
	}
}
