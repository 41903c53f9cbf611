package filestorage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const (
	defaultRegion = "ap-south-1"
	acl           = "public-read"
)

// S3Client is a client for AWS S3 service
type S3Client struct {
	uploader *s3manager.Uploader
}

// NewAWSClient returns a client with implementation for S3.
func NewAWSClient(region, accessKeyID, secretAccessKey string) (*S3Client, error) {
	if accessKeyID == "" || secretAccessKey == "" {
		return nil, fmt.Errorf("missing S3 access key id or secret access key")
	}
	if region == "" {
		region = defaultRegion
	}
	config := aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKeyID, secretAccessKey, ""),
	}
	sess, err := session.NewSession(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session, error %v", err)
	}
	return &S3Client{
		uploader: s3manager.NewUploader(sess),
	}, nil
}

// Upload sends b to bucket under fileName, readable by anyone with the
// returned location.
func (awsClient *S3Client) Upload(ctx context.Context, b []byte, bucket, fileName string) (string, error) {
	up, err := awsClient.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(bucket),
		ACL:         aws.String(acl),
		Key:         aws.String(fileName),
		ContentType: aws.String(contentType(b)),
		Body:        bytes.NewReader(b),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send file [%s] to bucket [%s], error %v", fileName, bucket, err)
	}
	return up.Location, nil
}
