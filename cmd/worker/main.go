package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"resucheck/internal/bootstrap"
	"resucheck/internal/queue"
	"resucheck/internal/shared/config"
	"resucheck/internal/shared/metrics"
	"resucheck/internal/shared/telemetry"
	"resucheck/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 1200
	defaultWorkerConcurrency  = 4
	defaultShutdownTimeoutSec = 30
	defaultMaxReceives        = 5
	retryBaseDelay            = 15 * time.Second
)

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// exportWorker pulls export jobs from SQS and renders them. A message the
// worker holds stays invisible for visibility; a failed render is made
// visible again after a backoff so transient Chrome or storage errors do
// not wait out the full render window.
type exportWorker struct {
	client      sqsAPI
	queueURL    string
	proc        workerproc.Processor
	visibility  time.Duration
	maxReceives int
}

func main() {
	cfg := config.Load()

	queueURL := strings.TrimSpace(cfg.ExportQueueURL)
	if queueURL == "" {
		log.Fatal("RC_SQS_QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	concurrency := max(1, envInt("RC_WORKER_CONCURRENCY", defaultWorkerConcurrency))
	shutdownTimeout := time.Duration(envInt("RC_WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	client, err := queue.LoadSQS(ctx, cfg.AWSRegion)
	if err != nil {
		log.Fatalf("sqs client: %v", err)
	}

	// The worker renders jobs itself; it must not re-enqueue them.
	cfg.ExportQueueURL = ""
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	w := &exportWorker{
		client:      client,
		queueURL:    queueURL,
		proc:        app.Exports,
		visibility:  time.Duration(envInt("RC_WORKER_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)) * time.Second,
		maxReceives: envInt("RC_WORKER_MAX_RECEIVES", defaultMaxReceives),
	}
	log.Printf("worker started queue=%s concurrency=%d visibility=%s", queueURL, concurrency, w.visibility)

	var wg sync.WaitGroup
	w.run(ctx, concurrency, &wg)

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

// run long-polls until ctx is done, handling at most concurrency messages at
// once. It never asks for more messages than it has free slots for, so
// nothing sits invisible in a local buffer.
func (w *exportWorker) run(ctx context.Context, concurrency int, wg *sync.WaitGroup) {
	sem := make(chan struct{}, concurrency)
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		free := 1
	fill:
		for free < min(concurrency, 10) {
			select {
			case sem <- struct{}{}:
				free++
			default:
				break fill
			}
		}

		resp, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: int32(free),
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(w.visibility / time.Second),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		var msgs []sqstypes.Message
		if err == nil {
			msgs = resp.Messages
		}
		for i := len(msgs); i < free; i++ {
			<-sem
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range msgs {
			metrics.IncExportJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				w.handle(ctx, m)
			}(msg)
		}
	}
}

// verdict is what happens to a message after one delivery.
type verdict int

const (
	verdictDone  verdict = iota // rendered: delete
	verdictDrop                 // can never succeed: delete
	verdictRetry                // redeliver after a backoff
)

// classify maps a delivery outcome to a verdict. Malformed payloads and
// unrecoverable exports are dropped at once; other failures retry until the
// message has been received maxReceives times.
func classify(err error, receives, maxReceives int) verdict {
	if err == nil {
		return verdictDone
	}
	var procErr workerproc.ErrProcess
	if !errors.As(err, &procErr) || procErr.Unrecoverable() {
		return verdictDrop
	}
	if maxReceives > 0 && receives >= maxReceives {
		return verdictDrop
	}
	return verdictRetry
}

// backoff doubles from retryBaseDelay per receive and is capped by the
// visibility window.
func backoff(receives int, visibility time.Duration) time.Duration {
	delay := retryBaseDelay
	for i := 1; i < receives && delay < visibility; i++ {
		delay *= 2
	}
	return min(delay, visibility)
}

func (w *exportWorker) handle(ctx context.Context, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	receives := receiveCount(msg)

	job, meta, err := workerproc.ParseMessage(body)
	fields := map[string]any{
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receives,
		"body_len":       meta.BodyLen,
	}
	if job.RequestID != "" {
		fields["request_id"] = job.RequestID
	}
	if err == nil {
		fields["export_id"] = job.ExportID
		telemetry.Info("worker.export.received", fields)
		err = workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, job), w.proc, body)
	} else if meta.BodySHA != "" {
		fields["body_sha256"] = meta.BodySHA
	}

	switch classify(err, receives, w.maxReceives) {
	case verdictDone:
		if w.delete(ctx, msg, fields) {
			telemetry.Info("worker.export.completed", fields)
			metrics.IncExportJobsCompleted()
		}
	case verdictDrop:
		fields["error"] = err.Error()
		telemetry.Error("worker.export.dropped", fields)
		if _, ok := err.(workerproc.ErrProcess); ok {
			metrics.IncExportJobsFailed()
		}
		if w.delete(ctx, msg, fields) {
			metrics.IncExportJobsDeletedUnrecoverable()
		}
	case verdictRetry:
		delay := backoff(receives, w.visibility)
		fields["error"] = err.Error()
		fields["retry_in_ms"] = delay.Milliseconds()
		telemetry.Error("worker.export.failed", fields)
		metrics.IncExportJobsFailed()
		w.release(ctx, msg, delay, fields)
	}
}

func (w *exportWorker) delete(ctx context.Context, msg sqstypes.Message, fields map[string]any) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		telemetry.Error("worker.export.delete_failed", withError(fields, "missing receipt handle"))
		return false
	}
	if _, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		telemetry.Error("worker.export.delete_failed", withError(fields, err.Error()))
		return false
	}
	return true
}

// release shortens the message's invisibility to delay. If that fails the
// message still comes back once the full visibility window lapses.
func (w *exportWorker) release(ctx context.Context, msg sqstypes.Message, delay time.Duration, fields map[string]any) {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		return
	}
	if _, err := w.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(w.queueURL),
		ReceiptHandle:     aws.String(receipt),
		VisibilityTimeout: int32(delay / time.Second),
	}); err != nil {
		telemetry.Warn("worker.export.release_failed", withError(fields, err.Error()))
	}
}

func withError(fields map[string]any, msg string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["error"] = msg
	return out
}

func receiveCount(msg sqstypes.Message) int {
	n, err := strconv.Atoi(msg.Attributes["ApproximateReceiveCount"])
	if err != nil {
		return 0
	}
	return n
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
