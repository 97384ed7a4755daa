// Package kv pkg/kv/dynamodb.go provides the DynamoDB backend of the status table.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoItem is the table layout: pk (hash key), rk (range key).
type dynamoItem struct {
	PK        string `dynamodbav:"pk"`
	RK        string `dynamodbav:"rk"`
	Data      string `dynamodbav:"data"`
	Version   int64  `dynamodbav:"version"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// DynamoStore implements Store on a DynamoDB table keyed by (pk, rk).
type DynamoStore struct {
	client DynamoAPI
	table  string
	now    func() time.Time
}

// DynamoOptions configure NewDynamoStore.
type DynamoOptions struct {
	Table    string
	Region   string
	Endpoint string // optional, e.g. DynamoDB Local
}

// NewDynamoStore builds a client from the default AWS credential chain.
func NewDynamoStore(ctx context.Context, opts DynamoOptions) (*DynamoStore, error) {
	if opts.Table == "" {
		return nil, fmt.Errorf("%w: dynamodb table name is required", ErrInvalidConnectionString)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return NewDynamoStoreWithClient(client, opts.Table), nil
}

// NewDynamoStoreWithClient wraps an existing client.
func NewDynamoStoreWithClient(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table, now: time.Now}
}

func dynamoKey(partition, row string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: partition},
		"rk": &types.AttributeValueMemberS{Value: row},
	}
}

func (s *DynamoStore) Get(ctx context.Context, partition, row string) (*Entity, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            dynamoKey(partition, row),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w entity %s/%s: %w", ErrFailedToQuery, partition, row, err)
	}

	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	return decodeDynamoItem(out.Item)
}

func (s *DynamoStore) Upsert(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	now := s.now().UTC()

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              dynamoKey(e.PartitionKey, e.RowKey),
		UpdateExpression: aws.String("SET #data = :data, updated_at = :ts ADD #version :one"),
		ExpressionAttributeNames: map[string]string{
			"#data":    "data",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":data": &types.AttributeValueMemberS{Value: string(e.Data)},
			":ts":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return fmt.Errorf("%w upsert %s/%s: %w", ErrFailedToWrite, e.PartitionKey, e.RowKey, err)
	}

	version, err := versionAttribute(out.Attributes)
	if err != nil {
		return err
	}

	e.Version = version
	e.Timestamp = now

	return nil
}

func (s *DynamoStore) Insert(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	now := s.now().UTC()

	item, err := attributevalue.MarshalMap(dynamoItem{
		PK:        e.PartitionKey,
		RK:        e.RowKey,
		Data:      string(e.Data),
		Version:   1,
		UpdatedAt: now.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToEncode, err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if isConditionFailed(err) {
		return ErrAlreadyExists
	}

	if err != nil {
		return fmt.Errorf("%w insert %s/%s: %w", ErrFailedToWrite, e.PartitionKey, e.RowKey, err)
	}

	e.Version = 1
	e.Timestamp = now

	return nil
}

func (s *DynamoStore) Update(ctx context.Context, e *Entity) error {
	if err := e.validateKeys(); err != nil {
		return err
	}

	now := s.now().UTC()

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 dynamoKey(e.PartitionKey, e.RowKey),
		ConditionExpression: aws.String("attribute_exists(pk) AND #version = :expected"),
		UpdateExpression:    aws.String("SET #data = :data, updated_at = :ts ADD #version :one"),
		ExpressionAttributeNames: map[string]string{
			"#data":    "data",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":data":     &types.AttributeValueMemberS{Value: string(e.Data)},
			":ts":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			":one":      &types.AttributeValueMemberN{Value: "1"},
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(e.Version, 10)},
		},
	})
	if isConditionFailed(err) {
		// Either the row is gone or someone else bumped the version.
		if _, getErr := s.Get(ctx, e.PartitionKey, e.RowKey); getErr != nil {
			return getErr
		}

		return ErrConflict
	}

	if err != nil {
		return fmt.Errorf("%w update %s/%s: %w", ErrFailedToWrite, e.PartitionKey, e.RowKey, err)
	}

	e.Version++
	e.Timestamp = now

	return nil
}

func (s *DynamoStore) List(ctx context.Context, partition string) ([]Entity, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partition},
		},
		ConsistentRead: aws.Bool(true),
	})

	var entities []Entity

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w partition %s: %w", ErrFailedToQuery, partition, err)
		}

		for _, item := range page.Items {
			e, err := decodeDynamoItem(item)
			if err != nil {
				return nil, err
			}

			entities = append(entities, *e)
		}
	}

	return entities, nil
}

func (*DynamoStore) Close() error {
	return nil
}

func decodeDynamoItem(item map[string]types.AttributeValue) (*Entity, error) {
	var it dynamoItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToDecode, err)
	}

	e := &Entity{
		PartitionKey: it.PK,
		RowKey:       it.RK,
		Data:         []byte(it.Data),
		Version:      it.Version,
	}

	if it.UpdatedAt != "" {
		ts, err := time.Parse(time.RFC3339Nano, it.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w %s/%s timestamp: %w", ErrFailedToDecode, it.PK, it.RK, err)
		}

		e.Timestamp = ts
	}

	return e, nil
}

func versionAttribute(attrs map[string]types.AttributeValue) (int64, error) {
	n, ok := attrs["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("%w: missing version attribute", ErrFailedToDecode)
	}

	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: version %q: %w", ErrFailedToDecode, n.Value, err)
	}

	return v, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException

	return errors.As(err, &ccf)
}
