// Package documents stores uploaded files: provider credentials and the
// medical documents patients keep on record.
package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// MaxUploadBytes caps a single document.
const MaxUploadBytes = 10 << 20

var ErrNotConfigured = errors.New("documents: storage not configured")

// Uploader stores a document under key and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// S3API is the subset of the S3 client used by S3Uploader.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client  S3API
	bucket  string
	baseURL string
	logger  *logging.Logger
}

// NewS3Uploader builds object URLs from baseURL when set, otherwise from the
// bucket's virtual-hosted endpoint in region.
func NewS3Uploader(client S3API, bucket, region, baseURL string, logger *logging.Logger) *S3Uploader {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" && bucket != "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3Uploader{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if u == nil || u.client == nil || u.bucket == "" {
		return "", ErrNotConfigured
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("documents: s3 put %s: %w", key, err)
	}
	u.logger.Info("document uploaded", "key", key, "content_type", contentType)
	return u.baseURL + "/" + key, nil
}

// StubUploader keeps nothing and returns a local URL.
type StubUploader struct {
	BaseURL string
	logger  *logging.Logger
}

func NewStubUploader(logger *logging.Logger) *StubUploader {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubUploader{BaseURL: "http://localhost/documents", logger: logger}
}

func (u *StubUploader) Upload(_ context.Context, key, _ string, body io.Reader) (string, error) {
	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return "", fmt.Errorf("documents: read body: %w", err)
	}
	u.logger.Info("stub uploader: discarded document", "key", key, "bytes", n)
	return u.BaseURL + "/" + key, nil
}

// CredentialKey names the object holding a provider's credential document.
func CredentialKey(providerID, documentID, filename string) string {
	return objectKey("credentials/"+providerID, documentID, filename)
}

// PatientDocumentKey names the object holding one of a patient's medical
// documents.
func PatientDocumentKey(patientID, documentID, filename string) string {
	return objectKey("patients/"+patientID+"/documents", documentID, filename)
}

// objectKey keeps only the extension of the client's file name.
func objectKey(prefix, documentID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	return fmt.Sprintf("%s/%s%s", prefix, documentID, ext)
}

var (
	_ Uploader = (*S3Uploader)(nil)
	_ Uploader = (*StubUploader)(nil)
)
