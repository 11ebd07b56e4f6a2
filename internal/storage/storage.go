package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/helper"
)

// Location is an object in a bucket.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// ParseS3URI splits s3://bucket/key. ok is false for anything that is not an s3 URI.
func ParseS3URI(uri string) (loc Location, ok bool, err error) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return Location{}, false, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, true, fmt.Errorf("invalid s3 uri %q: want s3://bucket/key", uri)
	}
	return Location{Bucket: bucket, Key: key}, true, nil
}

// LocalName is the working-directory file name used for a remote object.
func LocalName(loc Location) string {
	return filepath.Base(loc.Key)
}

type Remote struct {
	client *s3.Client
}

// NewRemote uses the default AWS credential chain.
func NewRemote(ctx context.Context, region string) (*Remote, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Remote{client: s3.NewFromConfig(cfg)}, nil
}

// Download copies the object to localPath.
func (r *Remote) Download(ctx context.Context, loc Location, localPath string) error {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", loc, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", loc, err)
	}
	log.Info().Str("from", loc.String()).Str("to", localPath).Int("bytes", len(data)).Msg("Downloaded input")
	return helper.WriteFileAtomic(localPath, data)
}

// Upload puts localPath at loc.
func (r *Remote) Upload(ctx context.Context, localPath string, loc Location) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", loc, err)
	}
	log.Info().Str("from", localPath).Str("to", loc.String()).Msg("Uploaded output")
	return nil
}
