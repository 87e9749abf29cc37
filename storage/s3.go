package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"propsync/config"
	"propsync/models"
)

// ObjectPutter is the subset of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// RawArchive keeps a copy of every freshly fetched provider payload in
// S3-compatible storage.
type RawArchive struct {
	client ObjectPutter
	bucket string
}

func NewRawArchive(ctx context.Context, cfg config.S3Config) (*RawArchive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var client *s3.Client
	if cfg.Endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return NewRawArchiveWithClient(client, cfg.Bucket), nil
}

func NewRawArchiveWithClient(client ObjectPutter, bucket string) *RawArchive {
	return &RawArchive{client: client, bucket: bucket}
}

// ArchiveKey is raw/{provider}/{agency}/{external_id}/{unix}.json.
func ArchiveKey(rec *models.RawRecord) string {
	id := strings.NewReplacer("/", "_", " ", "_").Replace(rec.ExternalID)
	return fmt.Sprintf("raw/%s/%d/%s/%d.json", rec.Provider, rec.AgencyID, id, rec.LastFetched.Unix())
}

func (a *RawArchive) ArchiveRaw(ctx context.Context, rec *models.RawRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", rec.Provider, rec.ExternalID, err)
	}
	return a.upload(ctx, ArchiveKey(rec), bytes.NewReader(data), "application/json")
}

func (a *RawArchive) upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
