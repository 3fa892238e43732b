package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by Store.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	dynamodb.ScanAPIClient
}

// Store provides DynamoDB operations over a single table.
type Store struct {
	client API
	config Config
}

// New creates a new Store instance.
func New(client API, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// Key builds the primary key for id.
func (s *Store) Key(id string) PK {
	return PK{
		s.config.KeyAttribute: &types.AttributeValueMemberS{Value: id},
	}
}

// Put inserts a new item. The item must carry the key attribute.
// Returns ErrAlreadyExists if an item with the same key is already stored.
func (s *Store) Put(ctx context.Context, item map[string]types.AttributeValue) error {
	if _, ok := item[s.config.KeyAttribute]; !ok {
		return fmt.Errorf("put: item has no %q attribute", s.config.KeyAttribute)
	}

	nowISO := time.Now().UTC().Format(time.RFC3339)
	item["created_at"] = &types.AttributeValueMemberS{Value: nowISO}
	item["updated_at"] = &types.AttributeValueMemberS{Value: nowISO}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.config.TableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#key)"),
		ExpressionAttributeNames: map[string]string{"#key": s.config.KeyAttribute},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Get retrieves an item by key, returning ErrNotFound if missing.
func (s *Store) Get(ctx context.Context, key PK) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       key,
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	return s.unmarshalItem(result.Item), nil
}

// Update applies a partial update to an existing item and returns the item
// as stored afterwards. Managed attributes in the input are ignored.
// Returns ErrNotFound if no item holds the key when the write is applied.
func (s *Store) Update(ctx context.Context, key PK, input UpdateInput) (*Item, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	exprNames := map[string]string{
		"#key":        s.config.KeyAttribute,
		"#updated_at": "updated_at",
	}
	exprValues := map[string]types.AttributeValue{
		":updated_at": &types.AttributeValueMemberS{Value: now},
	}

	// Sorted so the generated expression is stable
	setAttrs := make([]string, 0, len(input.Set))
	for k := range input.Set {
		if managed(k, s.config.KeyAttribute) {
			continue
		}
		setAttrs = append(setAttrs, k)
	}
	sort.Strings(setAttrs)

	var setClauses []string
	setNames := make(map[string]string, len(setAttrs))
	for i, k := range setAttrs {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		setNames[nameKey] = k
		exprValues[valueKey] = input.Set[k]
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	setClauses = append(setClauses, "#updated_at = :updated_at")

	var removeClauses []string
	removeNames := make(map[string]string, len(input.Remove))
	for i, k := range input.Remove {
		if managed(k, s.config.KeyAttribute) {
			continue
		}
		if _, alsoSet := input.Set[k]; alsoSet {
			continue
		}
		nameKey := fmt.Sprintf("#rm%d", i)
		removeNames[nameKey] = k
		removeClauses = append(removeClauses, nameKey)
	}

	updateExpr := "SET " + joinStrings(setClauses, ", ")
	if len(removeClauses) > 0 {
		updateExpr += " REMOVE " + joinStrings(removeClauses, ", ")
	}

	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.TableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ConditionExpression:       aws.String("attribute_exists(#key)"),
		ExpressionAttributeNames:  mergeExprNames(exprNames, setNames, removeNames),
		ExpressionAttributeValues: exprValues,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.unmarshalItem(result.Attributes), nil
}

// Delete removes an item and returns it as it was immediately before removal.
// Returns ErrNotFound if no item holds the key.
func (s *Store) Delete(ctx context.Context, key PK) (*Item, error) {
	result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.config.TableName),
		Key:                      key,
		ConditionExpression:      aws.String("attribute_exists(#key)"),
		ExpressionAttributeNames: map[string]string{"#key": s.config.KeyAttribute},
		ReturnValues:             types.ReturnValueAllOld,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.unmarshalItem(result.Attributes), nil
}

// Scan returns every item matching the optional filter, in table order.
// With ScanSegments > 1 the segments are scanned concurrently and their
// results concatenated in segment order.
func (s *Store) Scan(ctx context.Context, input ScanInput) ([]*Item, error) {
	numSegments := s.config.ScanSegments
	if numSegments < 1 {
		numSegments = 1
	}

	// Fast path for a single segment (default)
	if numSegments == 1 {
		return s.scanSegment(ctx, input, nil)
	}

	// Multi-segment fan-out; the first failing segment cancels the rest
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]*Item, numSegments)
	errs := make(chan error, numSegments)
	var wg sync.WaitGroup

	for segment := 0; segment < numSegments; segment++ {
		wg.Add(1)
		go func(segment int) {
			defer wg.Done()

			items, err := s.scanSegment(ctx, input, &segmentRange{
				segment: int32(segment),
				total:   int32(numSegments),
			})
			if err != nil {
				errs <- fmt.Errorf("segment %d: %w", segment, err)
				cancel()
				return
			}
			results[segment] = items
		}(segment)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}

	var all []*Item
	for _, items := range results {
		all = append(all, items...)
	}
	return all, nil
}

type segmentRange struct {
	segment int32
	total   int32
}

func (s *Store) scanSegment(ctx context.Context, input ScanInput, seg *segmentRange) ([]*Item, error) {
	scanInput := &dynamodb.ScanInput{
		TableName: aws.String(s.config.TableName),
	}
	if input.FilterExpression != "" {
		scanInput.FilterExpression = aws.String(input.FilterExpression)
	}
	if len(input.ExpressionAttributeNames) > 0 {
		scanInput.ExpressionAttributeNames = mergeExprNames(input.ExpressionAttributeNames)
	}
	if len(input.ExpressionAttributeValues) > 0 {
		scanInput.ExpressionAttributeValues = mergeExprValues(input.ExpressionAttributeValues)
	}
	if input.ConsistentRead {
		scanInput.ConsistentRead = aws.Bool(true)
	}
	if seg != nil {
		scanInput.Segment = aws.Int32(seg.segment)
		scanInput.TotalSegments = aws.Int32(seg.total)
	}

	// Paginate through all results
	items := []*Item{}
	paginator := dynamodb.NewScanPaginator(s.client, scanInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			items = append(items, s.unmarshalItem(raw))
		}
	}

	return items, nil
}

// unmarshalItem converts a DynamoDB item to an Item struct.
func (s *Store) unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}

	if v, ok := raw["created_at"].(*types.AttributeValueMemberS); ok {
		item.CreatedAt = v.Value
	}
	if v, ok := raw["updated_at"].(*types.AttributeValueMemberS); ok {
		item.UpdatedAt = v.Value
	}

	return item
}

// joinStrings joins strings with a separator (avoiding strings package import).
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
