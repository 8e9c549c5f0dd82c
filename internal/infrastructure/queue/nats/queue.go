package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
	"github.com/kirillkom/claim-verifier/internal/infrastructure/resilience"
)

// Queue carries the two asynchronous flows of the service: evidence-ingested
// events (document IDs) and submitted claim jobs (JSON payloads).
type Queue struct {
	conn            *nats.Conn
	evidenceSubject string
	claimSubject    string
	executor        *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, evidenceSubject, claimSubject string) (*Queue, error) {
	return NewWithOptions(url, evidenceSubject, claimSubject, Options{})
}

func NewWithOptions(url, evidenceSubject, claimSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("claim-verifier"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:            conn,
		evidenceSubject: evidenceSubject,
		claimSubject:    claimSubject,
		executor:        options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishEvidenceIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.evidenceSubject, []byte(documentID))
}

func (q *Queue) PublishClaimSubmitted(ctx context.Context, job domain.ClaimJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal claim job: %w", err)
	}
	return q.publish(ctx, q.claimSubject, payload)
}

func (q *Queue) publish(ctx context.Context, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) SubscribeEvidenceIngested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.evidenceSubject, func(handlerCtx context.Context, msg *nats.Msg) {
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			slog.Error("evidence_handler_failed", "document_id", string(msg.Data), "error", err)
		}
	})
}

func (q *Queue) SubscribeClaimSubmitted(ctx context.Context, handler func(context.Context, domain.ClaimJob) error) error {
	return q.subscribe(ctx, q.claimSubject, func(handlerCtx context.Context, msg *nats.Msg) {
		var job domain.ClaimJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			slog.Error("claim_job_unmarshal_failed", "error", err)
			return
		}
		if err := handler(handlerCtx, job); err != nil {
			slog.Error("claim_handler_failed", "claim_id", job.ClaimID, "error", err)
		}
	})
}

func (q *Queue) subscribe(ctx context.Context, subject string, dispatch func(context.Context, *nats.Msg)) error {
	sub, err := q.conn.QueueSubscribe(subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		dispatch(handlerCtx, msg)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
