package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/claim-verifier/internal/bootstrap"
	"github.com/kirillkom/claim-verifier/internal/config"
	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/observability/metrics"
)

func main() {
	cfg := config.MustLoad()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "worker")
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	app.Logger.Info("worker_subscribed",
		"evidence_subject", cfg.NATSEvidenceSubject,
		"claim_subject", cfg.NATSClaimSubject,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return app.Queue.SubscribeEvidenceIngested(groupCtx, func(handlerCtx context.Context, documentID string) error {
			return workerMetrics.ObserveJob("evidence_ingest", func() error {
				processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
				defer cancel()
				return app.ProcessUC.ProcessByID(processCtx, documentID)
			})
		})
	})

	group.Go(func() error {
		return app.Queue.SubscribeClaimSubmitted(groupCtx, func(handlerCtx context.Context, job domain.ClaimJob) error {
			return workerMetrics.ObserveJob("claim_verify", func() error {
				req := domain.NewVerificationRequest(job.ClaimID, job.ClaimText)
				req.TenantID = job.TenantID
				_, err := app.VerifyUC.Verify(handlerCtx, req)
				return err
			})
		})
	})

	if err := group.Wait(); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
