// Package ddbiface provides the DynamoDB client surface the row pipeline needs.
// It is satisfied by both the AWS SDK v2 DynamoDB client and by ddbstore.Store,
// so objects can be loaded from real DynamoDB or local BadgerDB-backed storage.
package ddbiface

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// AWSDynamoClientV2 mirrors the subset of *dynamodb.Client method signatures used
// for loading and seeding objects.
type AWSDynamoClientV2 interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}
