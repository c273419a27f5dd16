package ddbsdk

import (
	"context"
	"fmt"

	"github.com/acksell/ddbrows/dynamodb/table"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// getItem retrieves a single item by primary key. A missing item is returned as nil.
func (c *Client) getItem(ctx context.Context, def table.TableDefinition, key table.PrimaryKey) (Item, error) {
	ddbKey, err := key.DDB()
	if err != nil {
		return nil, fmt.Errorf("failed to render key: %w", err)
	}
	res, err := c.awsddb.GetItem(ctx, &dynamodbv2.GetItemInput{
		TableName:      &def.Name,
		Key:            ddbKey,
		ConsistentRead: ptr(!c.opts.eventuallyConsistent),
	})
	if err != nil {
		return nil, fmt.Errorf("get item failed: %w", err)
	}
	if res.Item == nil {
		return nil, nil
	}
	return res.Item, nil
}
