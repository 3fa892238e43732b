package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Item represents a retrieved DynamoDB item with its managed fields.
type Item struct {
	// Raw is the raw DynamoDB item, managed fields included.
	Raw map[string]types.AttributeValue

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string
}

// UpdateInput describes a partial update of a single item.
type UpdateInput struct {
	// Set maps attribute names to their new values.
	Set map[string]types.AttributeValue

	// Remove lists attribute names to delete from the item.
	Remove []string
}

// ScanInput defines parameters for scanning the table.
type ScanInput struct {
	// FilterExpression is an optional DynamoDB filter expression.
	FilterExpression string

	// ExpressionAttributeNames maps expression attribute name placeholders.
	ExpressionAttributeNames map[string]string

	// ExpressionAttributeValues maps expression attribute value placeholders.
	ExpressionAttributeValues map[string]types.AttributeValue

	// ConsistentRead requests strongly consistent reads.
	ConsistentRead bool
}

// managed reports whether an attribute is maintained by the store and must
// not be written by callers.
func managed(attr, keyAttr string) bool {
	switch attr {
	case keyAttr, "created_at", "updated_at":
		return true
	}
	return false
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
