package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/vela-games/lfsserver/lfs"
)

type S3 interface {
	HeadObjectWithContext(ctx aws.Context, input *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error)
	GetObjectRequest(input *s3.GetObjectInput) (req *request.Request, output *s3.GetObjectOutput)
	PutObjectRequest(input *s3.PutObjectInput) (req *request.Request, output *s3.PutObjectOutput)
}

// S3Storage hands out presigned S3 URLs.
type S3Storage struct {
	bucket            string
	useAccelerate     bool
	presignEnabled    bool
	presignExpiration time.Duration
	s3Client          S3
	awsRegion         string
}

func NewS3Storage(bucket string, useAccelerate bool, presignEnabled bool, presignExpiration time.Duration) (*S3Storage, error) {
	session, err := GetAWSSession()
	if err != nil {
		return nil, err
	}

	s3Client := s3.New(session, &aws.Config{
		DisableRestProtocolURICleaning: aws.Bool(true),
		S3UseAccelerate:                aws.Bool(useAccelerate),
	})

	return &S3Storage{
		bucket:            bucket,
		useAccelerate:     useAccelerate,
		presignEnabled:    presignEnabled,
		presignExpiration: presignExpiration,
		s3Client:          s3Client,
		awsRegion:         aws.StringValue(session.Config.Region),
	}, nil
}

func GetAWSSession() (*session.Session, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})

	if err != nil {
		return nil, err
	}

	return sess, nil
}

func (a *S3Storage) Exists(ctx context.Context, oid string) (bool, error) {
	// S3 rejects empty keys before sending the request.
	if oid == "" {
		return false, nil
	}

	_, err := a.s3Client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(oid),
	})

	if err != nil {
		if aerr, ok := err.(awserr.Error); ok { //nolint:errorlint
			switch aerr.Code() {
			case "NotFound", s3.ErrCodeNoSuchKey:
				return false, nil
			}
		}

		return false, fmt.Errorf("checking s3 object %s: %w", oid, err)
	}

	return true, nil
}

// PrepareDownload presigns a GetObject request. With presigning disabled the
// bucket must be publicly readable and the plain object URL is returned.
func (a *S3Storage) PrepareDownload(ctx context.Context, oid string, size int64) (*lfs.Action, error) {
	if oid == "" {
		return nil, errInvalidOID
	}

	if !a.presignEnabled {
		return &lfs.Action{Href: a.objectURL(oid)}, nil
	}

	req, _ := a.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(oid),
	})

	return a.presign(req)
}

// PrepareUpload presigns a PutObject request. Uploads are always presigned.
func (a *S3Storage) PrepareUpload(ctx context.Context, oid string, size int64) (*lfs.Action, error) {
	if oid == "" {
		return nil, errInvalidOID
	}

	req, _ := a.s3Client.PutObjectRequest(&s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(oid),
	})

	return a.presign(req)
}

func (a *S3Storage) presign(req *request.Request) (*lfs.Action, error) {
	urlStr, err := req.Presign(a.presignExpiration)
	if err != nil {
		return nil, fmt.Errorf("presigning s3 %s: %w", req.Operation.Name, err)
	}

	return &lfs.Action{
		Href:      urlStr,
		ExpiresIn: int(a.presignExpiration.Seconds()),
	}, nil
}

func (a *S3Storage) objectURL(oid string) string {
	if a.useAccelerate {
		return fmt.Sprintf("https://%s.s3-accelerate.amazonaws.com/%s", a.bucket, oid)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.bucket, a.awsRegion, oid)
}
