package replicastore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"

	"github.com/dreamware/ambry-coordinator/internal/wire"
)

// MetadataStore persists the message metadata (size, expiry, tombstone)
// that backs every GetBlobProperties response and the Get decision logic's
// deleted/expired checks.
type MetadataStore interface {
	Get(ctx context.Context, blobID string) (*wire.MessageInfo, error)
	Put(ctx context.Context, info wire.MessageInfo) error
	MarkDeleted(ctx context.Context, blobID string) error
}

// ErrMetadataNotFound is returned by Get when no record exists for the blob id.
var ErrMetadataNotFound = fmt.Errorf("replicastore: message metadata not found")

// dynamoMessageItem is the DynamoDB item shape for one blob's metadata, one
// item per blob id, partition-keyed on blob_id.
type dynamoMessageItem struct {
	BlobID    string `dynamodbav:"blob_id"`
	Size      int64  `dynamodbav:"size"`
	ExpiresAt int64  `dynamodbav:"expires_at_unix_ms"`
	Deleted   bool   `dynamodbav:"deleted"`
}

// DynamoDBMetadataStore implements MetadataStore using AWS DynamoDB.
type DynamoDBMetadataStore struct {
	client *dynamodb.DynamoDB
	table  string
}

// NewDynamoDBMetadataStore builds a DynamoDBMetadataStore over the given table.
func NewDynamoDBMetadataStore(region, table string) (*DynamoDBMetadataStore, error) {
	if table == "" {
		return nil, fmt.Errorf("replicastore: dynamodb table name is required")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("replicastore: opening aws session: %w", err)
	}
	return &DynamoDBMetadataStore{client: dynamodb.New(sess), table: table}, nil
}

// Get retrieves one blob's metadata.
func (s *DynamoDBMetadataStore) Get(ctx context.Context, blobID string) (*wire.MessageInfo, error) {
	result, err := s.client.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"blob_id": {S: aws.String(blobID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("replicastore: getting metadata for %s: %w", blobID, err)
	}
	if result.Item == nil {
		return nil, ErrMetadataNotFound
	}

	var item dynamoMessageItem
	if err := dynamodbattribute.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("replicastore: unmarshalling metadata for %s: %w", blobID, err)
	}

	return &wire.MessageInfo{
		BlobID:    item.BlobID,
		Size:      item.Size,
		ExpiresAt: item.ExpiresAt,
		Deleted:   item.Deleted,
	}, nil
}

// Put creates or replaces one blob's metadata record.
func (s *DynamoDBMetadataStore) Put(ctx context.Context, info wire.MessageInfo) error {
	item := dynamoMessageItem{
		BlobID:    info.BlobID,
		Size:      info.Size,
		ExpiresAt: info.ExpiresAt,
		Deleted:   info.Deleted,
	}
	av, err := dynamodbattribute.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("replicastore: marshalling metadata for %s: %w", info.BlobID, err)
	}

	_, err = s.client.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("replicastore: putting metadata for %s: %w", info.BlobID, err)
	}
	return nil
}

// MarkDeleted sets the tombstone flag on an existing metadata record.
func (s *DynamoDBMetadataStore) MarkDeleted(ctx context.Context, blobID string) error {
	_, err := s.client.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key: map[string]*dynamodb.AttributeValue{
			"blob_id": {S: aws.String(blobID)},
		},
		UpdateExpression:    aws.String("SET deleted = :deleted"),
		ConditionExpression: aws.String("attribute_exists(blob_id)"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":deleted": {BOOL: aws.Bool(true)},
		},
	})
	if err != nil {
		return fmt.Errorf("replicastore: marking %s deleted: %w", blobID, err)
	}
	return nil
}
