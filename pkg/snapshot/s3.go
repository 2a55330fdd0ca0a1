package snapshot

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lithe-dev/lithe/internal/errors"
)

// S3API is the subset of the S3 client the backend uses. *s3.Client
// satisfies it; tests supply a fake.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3 is a snapshot backend over an S3 bucket. Each store is one object
// under "<prefix><name>" with the revision carried in object metadata.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 creates an S3 backend. Prefix may be empty, in which case
// "lithe/snapshots/" is used.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	backend := snapshot.NewS3(s3.NewFromConfig(cfg), "my-bucket", "")
func NewS3(client S3API, bucket, prefix string) *S3 {
	if prefix == "" {
		prefix = "lithe/snapshots/"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3) key(name string) string {
	return s.prefix + name
}

// Save implements Store.
func (s *S3) Save(ctx context.Context, name string, data []byte, rev uint64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"rev": strconv.FormatUint(rev, 10),
		},
	})
	if err != nil {
		return errors.New("E201").WithDetail("save %q: %v", name, err).Wrap(err)
	}
	return nil
}

// Load implements Store.
func (s *S3) Load(ctx context.Context, name string) ([]byte, uint64, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, 0, nil
		}
		return nil, 0, errors.New("E201").WithDetail("load %q: %v", name, err).Wrap(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, 0, errors.New("E201").WithDetail("read %q: %v", name, err).Wrap(err)
	}

	var rev uint64
	if raw, ok := out.Metadata["rev"]; ok {
		rev, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, 0, errors.New("E201").WithDetail("load %q: bad rev %q", name, raw).Wrap(err)
		}
	}
	return data, rev, nil
}

// LoadAll implements Store.
func (s *S3) LoadAll(ctx context.Context) (map[string]Record, error) {
	out := make(map[string]Record)

	var token *string
	for {
		page, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(s.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, errors.New("E201").WithDetail("list snapshots: %v", err).Wrap(err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			name := strings.TrimPrefix(*obj.Key, s.prefix)
			data, rev, err := s.Load(ctx, name)
			if err != nil {
				return nil, err
			}
			if data != nil {
				out[name] = Record{Data: data, Rev: rev}
			}
		}

		if page.IsTruncated == nil || !*page.IsTruncated {
			return out, nil
		}
		token = page.NextContinuationToken
	}
}

// Delete implements Store.
func (s *S3) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return errors.New("E201").WithDetail("delete %q: %v", name, err).Wrap(err)
	}
	return nil
}

// Close implements Store.
func (s *S3) Close() error {
	return nil
}
