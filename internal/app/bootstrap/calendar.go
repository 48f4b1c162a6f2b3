package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"google.golang.org/api/option"

	"github.com/wolfman30/clinic-booking/internal/calendarsync"
	appconfig "github.com/wolfman30/clinic-booking/internal/config"
	"github.com/wolfman30/clinic-booking/internal/notify"
	"github.com/wolfman30/clinic-booking/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildCalendarQueue returns the in-process queue when USE_MEMORY_QUEUE is set
// and the SQS queue otherwise.
func BuildCalendarQueue(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (calendarsync.Queue, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UseMemoryQueue {
		logger.Info("calendar jobs use the in-memory queue")
		return calendarsync.NewMemoryQueue(memoryQueueBuffer), nil
	}
	if strings.TrimSpace(cfg.CalendarQueueURL) == "" {
		return nil, fmt.Errorf("bootstrap: CALENDAR_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: aws config is required for the sqs queue")
	}
	logger.Info("calendar jobs use sqs", "queue_url", cfg.CalendarQueueURL)
	return calendarsync.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.CalendarQueueURL), nil
}

// BuildJobRecorder returns the DynamoDB job audit store, or nil when no table
// is configured.
func BuildJobRecorder(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) calendarsync.JobRecorder {
	if strings.TrimSpace(cfg.CalendarJobsTable) == "" || awsCfg == nil {
		return nil
	}
	return calendarsync.NewJobStore(dynamodb.NewFromConfig(*awsCfg), cfg.CalendarJobsTable, logger)
}

// BuildBridge returns the Google Calendar bridge when credentials are
// configured and a logging bridge otherwise.
func BuildBridge(ctx context.Context, cfg *appconfig.Config, services calendarsync.ServiceLookup, logger *logging.Logger) (calendarsync.Bridge, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.GoogleCredentialsFile) == "" {
		logger.Warn("GOOGLE_CREDENTIALS_FILE not set; calendar events are only logged")
		return calendarsync.NewLogBridge(logger), nil
	}
	policy, err := BuildPolicy(cfg)
	if err != nil {
		return nil, err
	}
	bridge, err := calendarsync.NewGoogleBridge(ctx, calendarsync.GoogleConfig{
		CalendarID:  cfg.GoogleCalendarID,
		Location:    policy.Location,
		MeetEnabled: cfg.GoogleMeetEnabled,
	}, services, logger, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
	if err != nil {
		return nil, err
	}
	logger.Info("google calendar bridge enabled", "calendar_id", cfg.GoogleCalendarID, "meet", cfg.GoogleMeetEnabled)
	return bridge, nil
}

// WorkerOptions maps config onto calendar worker options.
func WorkerOptions(cfg *appconfig.Config, jobs calendarsync.JobRecorder, alerter calendarsync.StaffAlerter, m *metrics.BookingMetrics) []calendarsync.WorkerOption {
	opts := []calendarsync.WorkerOption{
		calendarsync.WithWorkerCount(cfg.CalendarWorkerCount),
		calendarsync.WithCallTimeout(cfg.CalendarSyncTimeout),
		calendarsync.WithRetryPolicy(cfg.CalendarSyncMaxAttempts, cfg.CalendarSyncBaseDelay, cfg.CalendarSyncMaxDelay),
		calendarsync.WithMetrics(m),
	}
	if jobs != nil {
		opts = append(opts, calendarsync.WithJobRecorder(jobs))
	}
	if alerter != nil {
		opts = append(opts, calendarsync.WithStaffAlerter(alerter))
	}
	return opts
}

// BuildEmailSender prefers SendGrid, then SES, then a logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if sender := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
	}, logger); sender != nil {
		logger.Info("email delivery via sendgrid")
		return sender
	}
	if strings.TrimSpace(cfg.SESFromEmail) != "" && awsCfg != nil {
		logger.Info("email delivery via ses")
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.EmailFromName,
		}, logger)
	}
	logger.Warn("no email provider configured; emails are only logged")
	return notify.NewStubEmailSender(logger)
}

// BuildStaffAlerter returns nil when STAFF_ALERT_EMAIL is unset.
func BuildStaffAlerter(cfg *appconfig.Config, email notify.EmailSender, logger *logging.Logger) calendarsync.StaffAlerter {
	alerter := notify.NewStaffAlerter(email, cfg.StaffAlertEmail, logger)
	if alerter == nil {
		return nil
	}
	return alerter
}

// NeedsAWS reports whether any configured component talks to AWS.
func NeedsAWS(cfg *appconfig.Config) bool {
	return !cfg.UseMemoryQueue ||
		strings.TrimSpace(cfg.CalendarJobsTable) != "" ||
		(strings.TrimSpace(cfg.SESFromEmail) != "" && strings.TrimSpace(cfg.SendGridAPIKey) == "")
}
