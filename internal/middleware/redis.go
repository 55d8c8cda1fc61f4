package middleware

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/autenticador/accounts-api/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient creates the Redis client backing session state and rate
// limiting
func NewRedisClient(cfg *config.RedisConfig, awsCfg *config.AWSConfig, logger *logrus.Logger) (*redis.Client, error) {
	options := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,

		// Connection pool settings
		MinIdleConns:    10,
		MaxIdleConns:    50,
		ConnMaxIdleTime: 10 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,

		// Retry settings
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	}

	// Fetch password from AWS Secrets Manager if enabled
	if cfg.PasswordFromSecrets {
		password, err := getSecretValue(awsCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to get Redis password from secrets: %w", err)
		}
		options.Password = password
		logger.Info("Redis password fetched from AWS Secrets Manager")
	}

	// TLS for managed Redis in-transit encryption
	if cfg.TLSEnabled {
		options.TLSConfig = &tls.Config{
			ServerName: extractHostname(cfg.Address),
		}
		logger.WithField("address", cfg.Address).Info("Redis TLS encryption enabled")
	}

	rdb := redis.NewClient(options)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"address": cfg.Address,
		"db":      cfg.Database,
	}).Info("Connected to Redis")

	return rdb, nil
}

// RedisHealthCheck returns a function that checks Redis connectivity
func RedisHealthCheck(redisClient *redis.Client, logger *logrus.Logger) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Error("Redis health check failed")
			return err
		}
		return nil
	}
}

func getSecretValue(awsCfg *config.AWSConfig, logger *logrus.Logger) (string, error) {
	if awsCfg.SecretName == "" {
		return "", fmt.Errorf("AWS secret name is not configured")
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(awsCfg.Region),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc := secretsmanager.New(sess)
	out, err := svc.GetSecretValue(&secretsmanager.GetSecretValueInput{
		SecretId: aws.String(awsCfg.SecretName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret value: %w", err)
	}

	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", awsCfg.SecretName)
	}

	logger.WithField("secret", awsCfg.SecretName).Debug("Secret retrieved")
	return *out.SecretString, nil
}

func extractHostname(address string) string {
	if idx := strings.Index(address, ":"); idx > 0 {
		return address[:idx]
	}
	return address
}
