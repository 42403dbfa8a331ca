package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/pipeline"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Summarizer runs the summarization pipeline.
type Summarizer interface {
	Summarize(ctx context.Context, method summarizer.Method, text string, opts summarizer.Options) (pipeline.Output, error)
}

// TextLoader loads the text at a location.
type TextLoader interface {
	Load(ctx context.Context, location string) (string, error)
}

// Exporter stores a finished result and returns its key.
type Exporter interface {
	Export(ctx context.Context, jobID string, v any) (string, error)
}

// Locker runs fn while holding an exclusive lease on key.
type Locker interface {
	WithLease(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Worker processes summarize jobs. Store, Exporter, Publisher and Locker
// are optional.
type Worker struct {
	pipeline    Summarizer
	loader      TextLoader
	store       store.JobStore
	exporter    Exporter
	publisher   Publisher
	locker      Locker
	queue       string
	resultQueue string
	maxRetries  int
	concurrency int
}

type NewWorkerParams struct {
	Pipeline    Summarizer
	Loader      TextLoader
	Store       store.JobStore
	Exporter    Exporter
	Publisher   Publisher
	Locker      Locker
	Queue       string
	ResultQueue string
	MaxRetries  int
	Concurrency int
}

func NewWorker(params NewWorkerParams) *Worker {
	w := &Worker{
		pipeline:    params.Pipeline,
		loader:      params.Loader,
		store:       params.Store,
		exporter:    params.Exporter,
		publisher:   params.Publisher,
		locker:      params.Locker,
		queue:       params.Queue,
		resultQueue: params.ResultQueue,
		maxRetries:  params.MaxRetries,
		concurrency: params.Concurrency,
	}
	if w.queue == "" {
		w.queue = "summarize_queue"
	}
	if w.resultQueue == "" {
		w.resultQueue = "summarize_result_queue"
	}
	if w.maxRetries <= 0 {
		w.maxRetries = 5
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	return w
}

// Handle runs one job to completion and records its state in the store.
// The returned result carries the failure when err is not nil.
func (w *Worker) Handle(ctx context.Context, msg SummarizeMsg) (ResultMsg, error) {
	start := time.Now()
	method, opts, err := msg.Request()
	if err != nil {
		return w.fail(ctx, msg, start, err)
	}

	if err := w.ensureJob(ctx, msg, method, opts); err != nil {
		return ResultMsg{ID: msg.ID, Status: store.JobFailed, Error: err.Error()}, err
	}
	w.update(ctx, msg.ID, store.JobUpdate{Status: store.JobRunning})

	text := msg.Text
	if text == "" {
		if w.loader == nil {
			return w.fail(ctx, msg, start, fmt.Errorf("no loader configured for %s", msg.URL))
		}
		text, err = w.loader.Load(ctx, msg.URL)
		if err != nil {
			return w.fail(ctx, msg, start, fmt.Errorf("failed to load %s: %w", msg.URL, err))
		}
	}

	out, err := w.pipeline.Summarize(ctx, method, text, opts)
	if err != nil {
		return w.fail(ctx, msg, start, err)
	}

	res := ResultMsg{
		ID:         msg.ID,
		Status:     store.JobCompleted,
		Summary:    &out.Summary,
		Graph:      out.GraphStats(),
		Mode:       string(out.Mode),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if w.exporter != nil {
		key, err := w.exporter.Export(ctx, msg.ID, res)
		if err != nil {
			logger.Error("[Queue] Export failed", "id", msg.ID, "err", err)
		} else {
			res.ExportKey = key
		}
	}

	graph := res.Graph
	mode := res.Mode
	w.update(ctx, msg.ID, store.JobUpdate{
		Status:     store.JobCompleted,
		Result:     res.Summary,
		Graph:      &graph,
		Mode:       &mode,
		ExportKey:  &res.ExportKey,
		DurationMs: &res.DurationMs,
	})
	logger.Info("[Queue] Job completed", "id", msg.ID, "mode", res.Mode, "duration_ms", res.DurationMs)
	return res, nil
}

func (w *Worker) ensureJob(ctx context.Context, msg SummarizeMsg, method summarizer.Method, opts summarizer.Options) error {
	if w.store == nil {
		return nil
	}
	_, err := w.store.GetJob(ctx, msg.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load job %s: %w", msg.ID, err)
	}
	return w.store.CreateJob(ctx, store.Job{
		ID:      msg.ID,
		Source:  msg.Source(),
		Method:  method,
		Options: opts,
	})
}

func (w *Worker) update(ctx context.Context, id string, u store.JobUpdate) {
	if w.store == nil {
		return
	}
	if err := w.store.UpdateJob(ctx, id, u); err != nil {
		logger.Error("[Queue] Failed to update job", "id", id, "err", err)
	}
}

func (w *Worker) fail(ctx context.Context, msg SummarizeMsg, start time.Time, err error) (ResultMsg, error) {
	res := ResultMsg{
		ID:         msg.ID,
		Status:     store.JobFailed,
		Error:      err.Error(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	w.update(ctx, msg.ID, store.JobUpdate{Status: store.JobFailed, Error: &res.Error, DurationMs: &res.DurationMs})
	logger.Error("[Queue] Job failed", "id", msg.ID, "err", err)
	return res, err
}

func (w *Worker) publishResult(ctx context.Context, res ResultMsg) error {
	if w.publisher == nil {
		return nil
	}
	body, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return w.publisher.Publish(ctx, w.resultQueue, body, nil)
}

// Process handles one delivery: success publishes the result and acks,
// malformed messages go straight to the dead letter queue and failures
// are retried through the retry queue up to the retry limit.
func (w *Worker) Process(ctx context.Context, d amqp.Delivery) {
	msg, err := DecodeSummarizeMsg(d.Body)
	if err != nil {
		logger.Error("[Queue] Dropping malformed message", "err", err)
		w.deadLetter(ctx, d)
		return
	}

	res, err := w.handleLocked(ctx, msg)
	if err != nil {
		if retries(d) >= w.maxRetries {
			if perr := w.publishResult(ctx, res); perr != nil {
				logger.Error("[Queue] Failed to publish result", "id", msg.ID, "err", perr)
			}
			w.deadLetter(ctx, d)
			return
		}
		w.retry(ctx, d)
		return
	}

	if err := w.publishResult(ctx, res); err != nil {
		logger.Error("[Queue] Failed to publish result", "id", msg.ID, "err", err)
		_ = d.Nack(false, true)
		return
	}
	if err := d.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
}

// handleLocked runs Handle under the job's lease. A job leased by another
// worker is treated as a failure so the message comes back later.
func (w *Worker) handleLocked(ctx context.Context, msg SummarizeMsg) (ResultMsg, error) {
	if w.locker == nil {
		return w.Handle(ctx, msg)
	}
	var res ResultMsg
	err := w.locker.WithLease(ctx, "job:"+msg.ID, func(ctx context.Context) error {
		var err error
		res, err = w.Handle(ctx, msg)
		return err
	})
	if err != nil && res.ID == "" {
		logger.Warn("[Queue] Job is leased elsewhere", "id", msg.ID, "err", err)
		res = ResultMsg{ID: msg.ID, Status: store.JobFailed, Error: err.Error()}
	}
	return res, err
}

func retries(d amqp.Delivery) int {
	switch v := d.Headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (w *Worker) deadLetter(ctx context.Context, d amqp.Delivery) {
	dlq := w.queue + dlqSuffix
	logger.Info("[Queue] Sending message to DLQ", "dlq", dlq)
	if w.publisher == nil {
		_ = d.Nack(false, false)
		return
	}
	if err := w.publisher.Publish(ctx, dlq, d.Body, d.Headers); err != nil {
		logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlq, "err", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (w *Worker) retry(ctx context.Context, d amqp.Delivery) {
	retryQueue := w.queue + retrySuffix
	if w.publisher == nil {
		_ = d.Nack(false, true)
		return
	}
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries(d) + 1)
	if err := w.publisher.Publish(ctx, retryQueue, d.Body, headers); err != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryQueue, "err", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// Run consumes the work queue until ctx is done, processing up to the
// configured number of messages at a time.
func (w *Worker) Run(ctx context.Context, ch *amqp.Channel) error {
	if err := ch.Qos(w.concurrency, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, w.queue, w.queue+"_consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", w.queue, err)
	}
	logger.Info("[Queue] Listening for messages", "queue", w.queue, "concurrency", w.concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for range w.concurrency {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case d, ok := <-deliveries:
					if !ok {
						return fmt.Errorf("delivery channel closed")
					}
					w.Process(ctx, d)
				}
			}
		})
	}
	return g.Wait()
}
