package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"propsync/models"
)

type fakePutter struct {
	key  string
	body []byte
	err  error
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = *params.Key
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestRawArchive_ArchiveRaw(t *testing.T) {
	putter := &fakePutter{}
	archive := NewRawArchiveWithClient(putter, "bucket")

	rec := &models.RawRecord{
		AgencyID:    3,
		ExternalID:  "GAL 4521",
		Provider:    models.ProviderAcquaint,
		Data:        models.Tree{"price": "300000"},
		LastFetched: time.Unix(1709287200, 0),
	}
	if err := archive.ArchiveRaw(context.Background(), rec); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if putter.key != "raw/acquaint_crm/3/GAL_4521/1709287200.json" {
		t.Fatalf("unexpected key %q", putter.key)
	}

	var decoded models.RawRecord
	if err := json.Unmarshal(putter.body, &decoded); err != nil {
		t.Fatalf("archived body is not json: %v", err)
	}
	if decoded.Data["price"] != "300000" {
		t.Fatalf("unexpected archived data %v", decoded.Data)
	}
}

func TestRawArchive_PutError(t *testing.T) {
	archive := NewRawArchiveWithClient(&fakePutter{err: errors.New("denied")}, "bucket")
	err := archive.ArchiveRaw(context.Background(), &models.RawRecord{Provider: models.ProviderDaft, ExternalID: "1"})
	if err == nil {
		t.Fatalf("expected put error")
	}
}
