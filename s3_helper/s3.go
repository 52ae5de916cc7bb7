package s3_helper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/medata/medrecords/config"
	"github.com/medata/medrecords/gologger"
	"github.com/medata/medrecords/utils"
	"github.com/rs/zerolog"
	s3_pq "github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
)

var logger = gologger.NewLogger()

type Client struct {
	Bucket string

	s3         *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

// NewClient builds the S3 session once and probes the bucket. A 403 on the
// probe means restricted credentials and is survivable, a missing bucket is
// not.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	s3Config := &aws.Config{
		Region: aws.String(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		s3Config.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, "")
	}
	if cfg.S3Endpoint != "" {
		s3Config.Endpoint = aws.String(cfg.S3Endpoint)
		s3Config.S3ForcePathStyle = aws.Bool(true)
	}

	s3Session, err := session.NewSession(s3Config)
	if err != nil {
		return nil, fmt.Errorf("error making new session: %w", err)
	}

	c := &Client{
		Bucket:     cfg.S3Bucket,
		s3:         s3.New(s3Session),
		uploader:   s3manager.NewUploader(s3Session),
		downloader: s3manager.NewDownloader(s3Session),
	}

	_, err = c.s3.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.Bucket)})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) {
			switch aerr.Code() {
			case "Forbidden", "AccessDenied":
				logger.Warn().Str("bucket", c.Bucket).Msg("limited permissions detected, proceeding with restricted access")
				return c, nil
			case "NotFound", s3.ErrCodeNoSuchBucket:
				return nil, fmt.Errorf("bucket %s does not exist", c.Bucket)
			}
		}
		return nil, fmt.Errorf("error in HeadBucket for %s: %w", c.Bucket, err)
	}

	return c, nil
}

// S3 exposes the raw API client, the parquet S3 file source needs it.
func (c *Client) S3() *s3.S3 {
	return c.s3
}

func (c *Client) WriteBytes(ctx context.Context, key string, byteStream io.Reader, contentType *string) (*s3manager.UploadOutput, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	input := &s3manager.UploadInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(key),
		Body:        byteStream,
		ContentType: contentType,
	}

	s := time.Now()
	output, err := c.uploader.UploadWithContext(ctx, input)
	if err != nil {
		if isAccessDenied(err) {
			return nil, utils.PermError(fmt.Sprintf("access denied writing s3://%s/%s", c.Bucket, key))
		}
		return nil, fmt.Errorf("error uploading to s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("key", key).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("uploaded object to s3")

	return output, nil
}

func (c *Client) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	buf := &aws.WriteAtBuffer{}

	s := time.Now()
	_, err := c.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, fmt.Errorf("s3://%s/%s: %w", c.Bucket, key, utils.ErrNotFound)
		}
		if isAccessDenied(err) {
			return nil, utils.PermError(fmt.Sprintf("access denied reading s3://%s/%s", c.Bucket, key))
		}
		return nil, fmt.Errorf("error downloading from s3: %w", err)
	}

	d := time.Since(s)
	logger.Debug().Str("key", key).Int64("durationNS", d.Nanoseconds()).Str("durationHuman", d.String()).Msg("downloaded object from s3")

	return buf.Bytes(), nil
}

// ListKeys lists object keys under a prefix. Access denied degrades to an
// empty listing with a warning so a restricted read-only consumer still
// works; writes and deletes do not get that leniency.
func (c *Client) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := c.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, *obj.Key)
		}
		return true
	})
	if err != nil {
		if isAccessDenied(err) {
			logger.Warn().Str("prefix", prefix).Msg("access denied listing objects, returning empty")
			return nil, nil
		}
		return nil, fmt.Errorf("error listing s3 objects: %w", err)
	}
	return keys, nil
}

func (c *Client) DeleteObject(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isAccessDenied(err) {
			return utils.PermError(fmt.Sprintf("access denied deleting s3://%s/%s", c.Bucket, key))
		}
		return fmt.Errorf("error deleting s3 object: %w", err)
	}
	return nil
}

func (c *Client) CopyObject(ctx context.Context, sourceKey, destKey string) error {
	_, err := c.s3.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.Bucket),
		CopySource: aws.String(c.Bucket + "/" + sourceKey),
		Key:        aws.String(destKey),
	})
	if err != nil {
		if isAccessDenied(err) {
			return utils.PermError(fmt.Sprintf("access denied copying s3://%s/%s to %s", c.Bucket, sourceKey, destKey))
		}
		return fmt.Errorf("error copying s3 object: %w", err)
	}
	return nil
}

// GetParquetSchema reads a parquet object's footer and reports each field's
// columnar type name ("string", "double", "int64").
func (c *Client) GetParquetSchema(ctx context.Context, key string) (map[string]string, error) {
	fr, err := s3_pq.NewS3FileReaderWithParams(ctx, s3_pq.S3FileReaderParams{
		Bucket:   c.Bucket,
		Key:      key,
		S3Client: c.s3,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating s3 file reader for %s: %w", key, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("error reading parquet footer for %s: %w", key, err)
	}
	defer pr.ReadStop()

	types := make(map[string]string)
	for _, se := range pr.Footer.Schema {
		if se.Type == nil {
			// group node, the root
			continue
		}
		switch se.GetType() {
		case parquet.Type_DOUBLE, parquet.Type_FLOAT:
			types[se.Name] = "double"
		case parquet.Type_INT64, parquet.Type_INT32:
			types[se.Name] = "int64"
		default:
			types[se.Name] = "string"
		}
	}
	return types, nil
}

func isAccessDenied(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case "AccessDenied", "Forbidden":
		return true
	}
	return false
}
