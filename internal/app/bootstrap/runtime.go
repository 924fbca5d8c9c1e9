package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	"github.com/wolfman30/careconnect-platform/internal/documents"
	"github.com/wolfman30/careconnect-platform/internal/notifications"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// OpenDatabase connects a pgx pool and verifies it with a ping. It returns
// nil, nil when no DATABASE_URL is configured.
func OpenDatabase(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// LoadAWSConfig centralizes AWS SDK initialization so S3 and SES share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}
	return awsCfg, nil
}

// BuildEmailSender picks the notification email transport named by
// EMAIL_PROVIDER. Misconfigured providers fall back to the stub sender.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notifications.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notifications.NewSendGridSender(notifications.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender != nil {
			return sender
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; emails will be logged only")
	case "ses":
		if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
			return notifications.NewSESSender(sesv2.NewFromConfig(*awsCfg), notifications.SESConfig{
				FromEmail: cfg.SESFromEmail,
				FromName:  cfg.SendGridFromName,
			}, logger)
		}
		logger.Warn("ses selected but SES_FROM_EMAIL or AWS config missing; emails will be logged only")
	case "", "stub":
	default:
		logger.Warn("unknown email provider; emails will be logged only", "provider", cfg.EmailProvider)
	}
	return notifications.NewStubEmailSender(logger)
}

// BuildUploader returns the S3 credential uploader when a bucket is
// configured. Outside production a stub keeps uploads working locally; in
// production a missing bucket disables uploads.
func BuildUploader(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) documents.Uploader {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.DocumentsBucket) != "" && awsCfg != nil {
		client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
			if cfg.AWSEndpointOverride != "" {
				o.UsePathStyle = true
			}
		})
		return documents.NewS3Uploader(client, cfg.DocumentsBucket, cfg.AWSRegion, cfg.DocumentsBaseURL, logger)
	}
	if strings.EqualFold(cfg.Env, "production") {
		logger.Warn("DOCUMENTS_BUCKET not set; document uploads disabled")
		return nil
	}
	return documents.NewStubUploader(logger)
}
