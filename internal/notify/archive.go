package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/echannel-booking/pkg/logging"
)

// S3API is the subset of the S3 client used by Archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// SentRecord is what the archive keeps for every delivered notification.
type SentRecord struct {
	EventID       string       `json:"event_id"`
	EventType     string       `json:"event_type"`
	Aggregate     string       `json:"aggregate"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	Message       EmailMessage `json:"message"`
	SentAt        time.Time    `json:"sent_at"`
}

// Archive stores a copy of each sent message in S3. With no bucket
// configured every call is a no-op.
type Archive struct {
	client S3API
	bucket string
	logger *logging.Logger
}

func NewArchive(client S3API, bucket string, logger *logging.Logger) *Archive {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archive{client: client, bucket: bucket, logger: logger}
}

// Enabled reports whether a bucket and client are configured.
func (a *Archive) Enabled() bool {
	return a != nil && a.client != nil && a.bucket != ""
}

func archiveKey(rec SentRecord) string {
	ts := rec.SentAt.UTC()
	return fmt.Sprintf("notifications/v1/by-date/%d/%02d/%02d/%s.json", ts.Year(), ts.Month(), ts.Day(), rec.EventID)
}

// Put writes rec under a date-partitioned key and returns the key. Contact
// details in the message are hashed or scrubbed before upload.
func (a *Archive) Put(ctx context.Context, rec SentRecord) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	rec.Message = redactMessage(rec.Message)
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("notify: marshal archive record: %w", err)
	}
	key := archiveKey(rec)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("notify: s3 put %s: %w", key, err)
	}
	a.logger.Debug("archived notification", "event_id", rec.EventID, "s3_key", key)
	return key, nil
}
