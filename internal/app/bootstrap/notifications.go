package bootstrap

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/echannel-booking/internal/config"
	"github.com/wolfman30/echannel-booking/internal/notify"
	"github.com/wolfman30/echannel-booking/pkg/logging"
)

const memoryQueueBuffer = 1024

// BuildNotificationQueue picks the in-process queue when USE_MEMORY_QUEUE is
// set and SQS otherwise. awsCfg is only read for SQS.
func BuildNotificationQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.QueueClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.UseMemoryQueue {
		logger.Info("using in-memory notification queue")
		return notify.NewMemoryQueue(memoryQueueBuffer), nil
	}
	if strings.TrimSpace(cfg.NotificationURL) == "" {
		return nil, fmt.Errorf("bootstrap: NOTIFICATION_QUEUE_URL is required unless USE_MEMORY_QUEUE is set")
	}
	logger.Info("using SQS notification queue", "queue_url", cfg.NotificationURL)
	return notify.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.NotificationURL), nil
}

// BuildEmailSender selects the provider named by EMAIL_PROVIDER. A provider
// that is missing credentials falls back to the stub so the worker still
// drains its queue.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender != nil {
			logger.Info("email provider configured", "provider", "sendgrid")
			return sender
		}
		logger.Warn("SENDGRID_API_KEY missing; using stub email sender")
	case "ses":
		if cfg.EmailFromAddress == "" {
			logger.Warn("EMAIL_FROM_ADDRESS missing; using stub email sender")
			break
		}
		logger.Info("email provider configured", "provider", "ses")
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
	}
	return notify.NewStubEmailSender(logger)
}

// BuildArchive returns the S3 archive of sent notifications, or nil when no
// bucket is configured.
func BuildArchive(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) *notify.Archive {
	if cfg == nil || strings.TrimSpace(cfg.NotificationBucket) == "" {
		return nil
	}
	return notify.NewArchive(s3.NewFromConfig(awsCfg), cfg.NotificationBucket, logger)
}
