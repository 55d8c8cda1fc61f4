package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/autenticador/accounts-api/internal/metrics"
	"github.com/autenticador/accounts-api/internal/models"
)

// RecordRepository surfaces typed CRUD over the data_records table
type RecordRepository interface {
	List(ctx context.Context) ([]models.DataRecord, error)
	Create(ctx context.Context, record *models.DataRecord) error
	Update(ctx context.Context, id, key, value string) (*models.DataRecord, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int, error)
}

type DynamoRecordRepository struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

func NewDynamoRecordRepository(client *dynamodb.Client, tableName string) *DynamoRecordRepository {
	return &DynamoRecordRepository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// List returns every record ordered by last update, then record ID
func (r *DynamoRecordRepository) List(ctx context.Context) ([]models.DataRecord, error) {
	start := time.Now()
	records := []models.DataRecord{}

	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			metrics.RecordBackendCall(r.tableName, "scan", err, time.Since(start))
			return nil, fmt.Errorf("list records: %w", err)
		}

		var page []models.DataRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		records = append(records, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	metrics.RecordBackendCall(r.tableName, "scan", nil, time.Since(start))

	sort.Slice(records, func(i, j int) bool {
		if !records[i].UpdatedAt.Equal(records[j].UpdatedAt) {
			return records[i].UpdatedAt.Before(records[j].UpdatedAt)
		}
		return records[i].RecordID < records[j].RecordID
	})

	return records, nil
}

// Create inserts a new record, stamping UpdatedAt server-side
func (r *DynamoRecordRepository) Create(ctx context.Context, record *models.DataRecord) error {
	record.UpdatedAt = r.now().UTC()

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	start := time.Now()
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(record_id)"),
	})
	metrics.RecordBackendCall(r.tableName, "put", err, time.Since(start))
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConflict
		}
		return fmt.Errorf("create record: %w", err)
	}

	return nil
}

// Update rewrites key and value of an existing record, refreshing UpdatedAt.
// Returns ErrNotFound when no row matched the id.
func (r *DynamoRecordRepository) Update(ctx context.Context, id, key, value string) (*models.DataRecord, error) {
	start := time.Now()
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"record_id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET record_key = :k, record_value = :v, updated_at = :t"),
		ConditionExpression: aws.String("attribute_exists(record_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":k": &types.AttributeValueMemberS{Value: key},
			":v": &types.AttributeValueMemberS{Value: value},
			":t": &types.AttributeValueMemberS{Value: r.now().UTC().Format(time.RFC3339Nano)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	metrics.RecordBackendCall(r.tableName, "update", err, time.Since(start))
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update record: %w", err)
	}

	var record models.DataRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}

	return &record, nil
}

// Delete removes a record and reports whether a row was actually deleted
func (r *DynamoRecordRepository) Delete(ctx context.Context, id string) (bool, error) {
	start := time.Now()
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"record_id": &types.AttributeValueMemberS{Value: id},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	metrics.RecordBackendCall(r.tableName, "delete", err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}

	return len(out.Attributes) > 0, nil
}

// Count reports the number of record rows
func (r *DynamoRecordRepository) Count(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := countTable(ctx, r.client, r.tableName)
	metrics.RecordBackendCall(r.tableName, "count", err, time.Since(start))
	return n, err
}
