package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func TestArchivePut(t *testing.T) {
	client := newFakeS3()
	archive := NewArchive(client, "echannel-notifications", nil)
	require.True(t, archive.Enabled())

	rec := SentRecord{
		EventID:   "0b7c6f1e-1111-4c1a-9a55-2a8f6f9d0c01",
		EventType: "appointments.appointment.booked.v1",
		Message:   EmailMessage{To: "nimal@example.com", Subject: "Confirmed"},
		SentAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	key, err := archive.Put(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "notifications/v1/by-date/2026/03/01/0b7c6f1e-1111-4c1a-9a55-2a8f6f9d0c01.json", key)

	var stored SentRecord
	require.NoError(t, json.Unmarshal(client.objects["echannel-notifications/"+key], &stored))
	assert.Equal(t, "Confirmed", stored.Message.Subject)
	assert.Equal(t, HashContact("nimal@example.com"), stored.Message.To)
	assert.NotContains(t, string(client.objects["echannel-notifications/"+key]), "nimal@example.com")

	client.err = errors.New("bucket missing")
	_, err = archive.Put(context.Background(), rec)
	assert.Error(t, err)
}

func TestArchiveDisabled(t *testing.T) {
	for _, a := range []*Archive{nil, NewArchive(nil, "bucket", nil), NewArchive(newFakeS3(), "", nil)} {
		assert.False(t, a.Enabled())
		key, err := a.Put(context.Background(), SentRecord{})
		assert.NoError(t, err)
		assert.Empty(t, key)
	}
}
