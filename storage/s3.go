package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"

	"github.com/quickgpt/quickgpt-server/utils"
)

// S3Storage uploads generated images to S3 and hands back the CloudFront URL
// that gets stored as the message content.
type S3Storage struct {
	Uploader         s3manageriface.UploaderAPI
	Bucket           string
	CloudFrontDomain string
	Folder           string
}

func (s *S3Storage) UploadPNG(ctx context.Context, data []byte) (string, error) {
	name, err := utils.GenerateKey(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate object key: %w", err)
	}

	key := fmt.Sprintf("%s/%s-%d.png", s.Folder, name, time.Now().UnixMilli())

	_, err = s.Uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	return fmt.Sprintf("https://%s/%s", s.CloudFrontDomain, key), nil
}
