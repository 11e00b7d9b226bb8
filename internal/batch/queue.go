package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

const (
	defaultReceiveBatch = 5
	defaultReceiveWait  = 10
	deleteTimeout       = 5 * time.Second
	maxReceiveBackoff   = 5 * time.Second
)

// SQSAPI is the subset of the SQS client the queue uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Queue carries day jobs between the enqueuer and QueueWorker.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// QueueMessage is one received job.
type QueueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Job asks a worker to classify one day.
type Job struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

// EncodeJob validates date and renders the job body.
func EncodeJob(date string) (string, error) {
	if err := daystore.ValidateDate(date); err != nil {
		return "", err
	}
	body, err := json.Marshal(Job{ID: uuid.NewString(), Date: date})
	if err != nil {
		return "", fmt.Errorf("batch: encode job: %w", err)
	}
	return string(body), nil
}

// SQSQueue implements Queue on top of SQS.
type SQSQueue struct {
	client   SQSAPI
	queueURL string
}

// NewSQSQueue wraps client for queueURL.
func NewSQSQueue(client SQSAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("batch: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("batch: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL}
}

func (q *SQSQueue) Send(ctx context.Context, body string) error {
	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("batch: failed to send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]QueueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(maxMessages),
		WaitTimeSeconds:     int32(waitSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("batch: failed to receive SQS messages: %w", err)
	}

	messages := make([]QueueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		messages = append(messages, QueueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("batch: failed to delete SQS message: %w", err)
	}
	return nil
}

// DayRunner is what a QueueWorker needs from Runner.
type DayRunner interface {
	RunDate(ctx context.Context, date string) (Report, error)
}

// QueueWorker consumes day jobs and runs them one at a time.
type QueueWorker struct {
	queue       Queue
	runner      DayRunner
	logger      *logging.Logger
	batchSize   int
	waitSeconds int
}

// NewQueueWorker creates a worker for queue.
func NewQueueWorker(queue Queue, runner DayRunner, logger *logging.Logger) *QueueWorker {
	if logger == nil {
		logger = logging.Default()
	}
	return &QueueWorker{
		queue:       queue,
		runner:      runner,
		logger:      logger,
		batchSize:   defaultReceiveBatch,
		waitSeconds: defaultReceiveWait,
	}
}

// Run polls until ctx is cancelled.
func (w *QueueWorker) Run(ctx context.Context) error {
	w.logger.Info("analyzer worker started")
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("analyzer worker stopping")
			return nil
		default:
		}

		n, err := w.ProcessOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			w.logger.Error("failed to receive day jobs", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff < maxReceiveBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		w.logger.Debug("day jobs handled", "count", n)
	}
}

// ProcessOnce receives one batch and handles it. It returns the number of
// messages received.
func (w *QueueWorker) ProcessOnce(ctx context.Context) (int, error) {
	messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSeconds)
	if err != nil {
		return 0, err
	}
	for _, msg := range messages {
		w.handleMessage(ctx, msg)
	}
	return len(messages), nil
}

func (w *QueueWorker) handleMessage(ctx context.Context, msg QueueMessage) {
	var job Job
	if err := json.Unmarshal([]byte(msg.Body), &job); err != nil {
		w.logger.Error("failed to decode day job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}
	if err := daystore.ValidateDate(job.Date); err != nil {
		w.logger.Error("day job rejected", "error", err, "job_id", job.ID, "msg_id", msg.ID)
		w.deleteMessage(msg.ReceiptHandle)
		return
	}

	w.logger.Info("worker processing day", "job_id", job.ID, "date", job.Date, "msg_id", msg.ID)
	rep, err := w.runner.RunDate(ctx, job.Date)
	if err != nil {
		// Left on the queue; SQS redelivers after the visibility timeout.
		w.logger.Error("day job failed", "error", err, "job_id", job.ID, "date", job.Date)
		return
	}
	w.logger.Info("day job finished",
		"job_id", job.ID,
		"date", job.Date,
		"conversations", rep.Conversations,
		"risky", rep.Risky,
		"failed", rep.Failed,
	)
	w.deleteMessage(msg.ReceiptHandle)
}

func (w *QueueWorker) deleteMessage(receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete day job", "error", err)
	}
}
