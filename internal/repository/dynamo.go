package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/config"
)

// Sentinel errors raised by the repositories. Services translate these into
// user-facing result messages, everything else is a backend/transport error.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// NewDynamoClient initializes the DynamoDB client the repositories share
func NewDynamoClient(cfg *config.Config, logger *logrus.Logger) (*dynamodb.Client, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error

	if cfg.AWS.Profile != "" {
		// Use specific profile for local development
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
			awsconfig.WithSharedConfigProfile(cfg.AWS.Profile),
		)
	} else {
		// IRSA in Kubernetes: the SDK picks up AWS_WEB_IDENTITY_TOKEN_FILE
		// and AWS_ROLE_ARN on its own
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg)

	logger.WithFields(logrus.Fields{
		"region":        cfg.DynamoDB.Region,
		"users_table":   cfg.DynamoDB.UsersTableName,
		"records_table": cfg.DynamoDB.RecordsTableName,
	}).Info("DynamoDB client initialized")

	return client, nil
}

// countTable runs a COUNT-only scan over a table, following pagination
func countTable(ctx context.Context, client *dynamodb.Client, table string) (int, error) {
	var total int
	var startKey map[string]types.AttributeValue

	for {
		out, err := client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(table),
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, fmt.Errorf("count scan on %s: %w", table, err)
		}

		total += int(out.Count)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return total, nil
}
