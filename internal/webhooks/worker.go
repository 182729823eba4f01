package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"tollfee/internal/metrics"
	"tollfee/internal/store"
)

const (
	pollInterval = time.Second
	batchSize    = 50
	maxBackoff   = time.Hour
)

// Worker drains the delivery queue: due deliveries are POSTed, failures are retried
// with exponential backoff and dead-lettered after MaxAttempts.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Logger      *zap.Logger
	MaxAttempts int
	Stop        chan struct{}
	done        chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
}

func NewWorker(s store.Store, maxAttempts int, logger *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		Logger:      logger,
		MaxAttempts: maxAttempts,
		Stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (w *Worker) Start() {
	w.startOnce.Do(func() { go w.loop() })
}

func (w *Worker) loop() {
	defer close(w.done)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.Stop:
			return
		case <-ticker.C:
			w.processOnce()
		}
	}
}

// Shutdown stops polling and waits for the current batch, or for ctx. It is safe
// to call more than once and on a worker that was never started.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() {
		close(w.Stop)
		w.startOnce.Do(func() { close(w.done) })
	})
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) stopping() bool {
	select {
	case <-w.Stop:
		return true
	default:
		return false
	}
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, batchSize)
	cancel()
	if err != nil {
		w.Logger.Warn("fetch webhook deliveries", zap.Error(err))
		return
	}
	for _, it := range items {
		// Unsent items stay due and are picked up by the next poll.
		if w.stopping() {
			return
		}
		w.deliverOne(it)
	}
}

// deliverOne gives each delivery, bookkeeping included, its own deadline.
func (w *Worker) deliverOne(it store.WebhookDelivery) {
	ctx, cancel := context.WithTimeout(context.Background(), w.deliveryTimeout())
	defer cancel()
	w.deliver(ctx, it)
}

func (w *Worker) deliveryTimeout() time.Duration {
	if w.HTTP == nil || w.HTTP.Timeout <= 0 {
		return 10 * time.Second
	}
	return w.HTTP.Timeout + time.Second
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	code, latency, err := w.post(ctx, it)
	success := err == nil && code >= 200 && code < 300
	lastErr := ""
	switch {
	case err != nil:
		lastErr = err.Error()
	case !success:
		lastErr = "unexpected status " + strconv.Itoa(code)
	}

	status := "delivered"
	switch {
	case success:
		if err := w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency); err != nil {
			w.Logger.Warn("mark webhook delivery", zap.String("id", it.ID), zap.Error(err))
		}
	case it.Attempts+1 >= w.MaxAttempts:
		status = "failed"
		if err := w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency); err != nil {
			w.Logger.Warn("fail webhook delivery", zap.String("id", it.ID), zap.Error(err))
		}
		w.Logger.Error("webhook delivery dead-lettered",
			zap.String("id", it.ID), zap.String("event_type", it.EventType), zap.String("url", it.URL),
			zap.Int("attempts", it.Attempts+1), zap.String("last_error", lastErr))
	default:
		status = "retry"
		next := time.Now().Add(nextBackoff(it.Attempts))
		if err := w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency); err != nil {
			w.Logger.Warn("mark webhook delivery", zap.String("id", it.ID), zap.Error(err))
		}
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
}

func (w *Worker) post(ctx context.Context, it store.WebhookDelivery) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err != nil {
		return 0, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", it.EventType)
	if it.Secret != "" {
		req.Header.Set("X-Signature", SignHMAC(it.Secret, it.Payload))
	}
	start := time.Now()
	resp, err := w.HTTP.Do(req)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		return 0, latency, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, latency, nil
}

// nextBackoff is 1s doubled per previous attempt, capped at maxBackoff.
func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 12 {
		return maxBackoff
	}
	d := time.Second * time.Duration(1<<attempts)
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
