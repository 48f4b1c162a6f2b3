package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const jobTTL = 7 * 24 * time.Hour

// JobStatus represents the lifecycle of a calendar job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ErrJobNotFound indicates the requested job ID does not exist.
var ErrJobNotFound = errors.New("calendarsync: job not found")

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// JobRecord is the audit trail of one calendar job across its retries.
type JobRecord struct {
	JobID        string    `dynamodbav:"jobId" json:"jobId"`
	BookingID    string    `dynamodbav:"bookingId" json:"bookingId"`
	Kind         string    `dynamodbav:"kind" json:"kind"`
	Status       JobStatus `dynamodbav:"status" json:"status"`
	Attempts     int       `dynamodbav:"attempts" json:"attempts"`
	EventID      string    `dynamodbav:"eventId,omitempty" json:"eventId,omitempty"`
	ErrorMessage string    `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	CreatedAt    string    `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt    string    `dynamodbav:"updatedAt" json:"updatedAt"`
	ExpiresAt    int64     `dynamodbav:"expiresAt,omitempty" json:"-"`
}

// JobRecorder persists calendar job state.
type JobRecorder interface {
	PutPending(ctx context.Context, job *JobRecord) error
	MarkRetrying(ctx context.Context, jobID string, attempts int, errMsg string) error
	MarkCompleted(ctx context.Context, jobID string, attempts int, eventID string) error
	MarkFailed(ctx context.Context, jobID string, attempts int, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

// JobStore persists job records to DynamoDB.
type JobStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ JobRecorder = (*JobStore)(nil)

// NewJobStore builds a store backed by the provided DynamoDB client.
func NewJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *JobStore {
	if client == nil {
		panic("calendarsync: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("calendarsync: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// PutPending inserts a new pending job record.
func (s *JobStore) PutPending(ctx context.Context, job *JobRecord) error {
	if job == nil {
		return errors.New("calendarsync: job cannot be nil")
	}
	now := time.Now().UTC()
	job.Status = JobStatusPending
	job.CreatedAt = now.Format(time.RFC3339Nano)
	job.UpdatedAt = job.CreatedAt
	if job.ExpiresAt == 0 {
		job.ExpiresAt = now.Add(jobTTL).Unix()
	}

	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("calendarsync: failed to marshal job: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("calendarsync: failed to persist job: %w", err)
	}
	return nil
}

// MarkRetrying records a failed attempt that will be retried.
func (s *JobStore) MarkRetrying(ctx context.Context, jobID string, attempts int, errMsg string) error {
	return s.setStatus(ctx, jobID, JobStatusRetrying, attempts, errMsg, "")
}

// MarkCompleted records the job's success.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, attempts int, eventID string) error {
	return s.setStatus(ctx, jobID, JobStatusCompleted, attempts, "", eventID)
}

// MarkFailed records that the job exhausted its retries.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, attempts int, errMsg string) error {
	return s.setStatus(ctx, jobID, JobStatusFailed, attempts, errMsg, "")
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, errors.New("calendarsync: jobID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calendarsync: failed to fetch job: %w", err)
	}
	if out.Item == nil {
		return nil, ErrJobNotFound
	}

	var job JobRecord
	if err := attributevalue.UnmarshalMap(out.Item, &job); err != nil {
		return nil, fmt.Errorf("calendarsync: failed to decode job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) setStatus(ctx context.Context, jobID string, status JobStatus, attempts int, errMsg, eventID string) error {
	if jobID == "" {
		return errors.New("calendarsync: jobID required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"jobId": &types.AttributeValueMemberS{Value: jobID},
		},
		UpdateExpression: aws.String("SET #status = :status, attempts = :attempts, #error = :error, eventId = :event, #updated = :updated"),
		ExpressionAttributeNames: map[string]string{
			"#status":  "status",
			"#error":   "errorMessage",
			"#updated": "updatedAt",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: string(status)},
			":attempts": &types.AttributeValueMemberN{Value: strconv.Itoa(attempts)},
			":error":    &types.AttributeValueMemberS{Value: errMsg},
			":event":    &types.AttributeValueMemberS{Value: eventID},
			":updated":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(jobId)"),
	})
	if err != nil {
		return fmt.Errorf("calendarsync: failed to update job %s: %w", jobID, err)
	}
	return nil
}
