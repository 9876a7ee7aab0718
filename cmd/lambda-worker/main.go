package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"resucheck/internal/bootstrap"
	"resucheck/internal/shared/config"
	"resucheck/internal/shared/metrics"
	"resucheck/internal/shared/telemetry"
	"resucheck/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	// Jobs arrive through the event source; never enqueue from here.
	cfg.ExportQueueURL = ""
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return processBatch(ctx, app.Exports, event), nil
}

// processBatch reports only retryable failures; malformed messages and
// unrecoverable exports are acknowledged so SQS drops them.
func processBatch(ctx context.Context, proc workerproc.Processor, event events.SQSEvent) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncExportJobsReceived()
		err := workerproc.HandleMessage(ctx, proc, record.Body)
		if err == nil {
			metrics.IncExportJobsCompleted()
			continue
		}
		telemetry.Error("worker.export.failed", map[string]any{
			"message_id": record.MessageId,
			"error":      err.Error(),
		})
		if retryable(err) {
			metrics.IncExportJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}
		metrics.IncExportJobsDeletedUnrecoverable()
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

func retryable(err error) bool {
	var procErr workerproc.ErrProcess
	if errors.As(err, &procErr) {
		return !procErr.Unrecoverable()
	}
	return false
}

func main() {
	lambda.Start(handler)
}
