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

const (
	emailIndex    = "email-index"
	usernameIndex = "username-index"
)

// UserRepository surfaces typed CRUD over the users table
type UserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error
	DeleteByEmail(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// DynamoUserRepository stores profiles in a DynamoDB table with GSIs on
// email and username
type DynamoUserRepository struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoUserRepository(client *dynamodb.Client, tableName string) *DynamoUserRepository {
	return &DynamoUserRepository{
		client:    client,
		tableName: tableName,
	}
}

// List returns every profile ordered by creation time, then user ID
func (r *DynamoUserRepository) List(ctx context.Context) ([]models.User, error) {
	start := time.Now()
	users := []models.User{}

	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			metrics.RecordBackendCall(r.tableName, "scan", err, time.Since(start))
			return nil, fmt.Errorf("list users: %w", err)
		}

		var page []models.User
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		users = append(users, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	metrics.RecordBackendCall(r.tableName, "scan", nil, time.Since(start))

	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].UserID < users[j].UserID
	})

	return users, nil
}

// GetByEmail looks a profile up through the email GSI. Returns ErrNotFound
// when no row matches.
func (r *DynamoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.queryOne(ctx, emailIndex, "email", email)
}

// GetByUsername looks a profile up through the username GSI
func (r *DynamoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.queryOne(ctx, usernameIndex, "username", username)
}

func (r *DynamoUserRepository) queryOne(ctx context.Context, index, attr, value string) (*models.User, error) {
	start := time.Now()
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String(fmt.Sprintf("%s = :v", attr)),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
		Limit: aws.Int32(1),
	})
	metrics.RecordBackendCall(r.tableName, "query", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("query users by %s: %w", attr, err)
	}

	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(out.Items[0], &user); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}

	return &user, nil
}

// Create inserts a new profile, fencing on the primary key
func (r *DynamoUserRepository) Create(ctx context.Context, user *models.User) error {
	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	start := time.Now()
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	metrics.RecordBackendCall(r.tableName, "put", err, time.Since(start))
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// UpdatePasswordByEmail replaces the stored credential hash. Returns
// ErrNotFound when no profile carries the email.
func (r *DynamoUserRepository) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: user.UserID},
		},
		UpdateExpression:    aws.String("SET password_hash = :h"),
		ConditionExpression: aws.String("attribute_exists(user_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":h": &types.AttributeValueMemberS{Value: passwordHash},
		},
	})
	metrics.RecordBackendCall(r.tableName, "update", err, time.Since(start))
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

// DeleteByEmail removes the profile with the given email and reports whether
// a row was actually deleted
func (r *DynamoUserRepository) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	start := time.Now()
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: user.UserID},
		},
		ReturnValues: types.ReturnValueAllOld,
	})
	metrics.RecordBackendCall(r.tableName, "delete", err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}

	return len(out.Attributes) > 0, nil
}

// Count reports the number of profile rows
func (r *DynamoUserRepository) Count(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := countTable(ctx, r.client, r.tableName)
	metrics.RecordBackendCall(r.tableName, "count", err, time.Since(start))
	return n, err
}
