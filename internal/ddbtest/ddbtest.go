// Package ddbtest provides an in-memory stand-in for the DynamoDB client,
// for tests that exercise the store without a live table.
//
// It understands the expression subset the store emits: conditions built
// from attribute_exists / attribute_not_exists and comparisons joined by
// AND, and update expressions with SET and REMOVE clauses on top-level
// attributes.
package ddbtest

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is a single-key, multi-table in-memory DynamoDB.
type Client struct {
	// PageSize caps the number of items evaluated per Scan page (0 = unlimited).
	PageSize int

	// BeforeUpdate, when set, runs before an UpdateItem is applied.
	BeforeUpdate func(input *dynamodb.UpdateItemInput)

	mu      sync.Mutex
	keyAttr string
	tables  map[string]*table
	errs    map[string]error
	calls   map[string]int
}

type table struct {
	order []string
	items map[string]map[string]types.AttributeValue
}

// New creates a client whose tables are keyed by the string attribute keyAttr.
func New(keyAttr string) *Client {
	return &Client{
		keyAttr: keyAttr,
		tables:  make(map[string]*table),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// FailNext makes the next call to op ("GetItem", "Scan", ...) return err.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[op] = err
}

// Calls returns how many times op has been invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Items returns a copy of every item in tableName, in insertion order.
func (c *Client) Items(tableName string) []map[string]types.AttributeValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[tableName]
	if t == nil {
		return nil
	}
	out := make([]map[string]types.AttributeValue, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, copyItem(t.items[k]))
	}
	return out
}

// Seed stores item directly, bypassing conditions and managed fields.
func (c *Client) Seed(tableName string, item map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, err := c.keyOf(item)
	if err != nil {
		panic(err)
	}
	c.table(tableName).put(key, copyItem(item))
}

func (c *Client) enter(op string) error {
	c.mu.Lock()
	c.calls[op]++
	err := c.errs[op]
	delete(c.errs, op)
	if err != nil {
		c.mu.Unlock()
	}
	return err
}

func (c *Client) table(name string) *table {
	t, ok := c.tables[name]
	if !ok {
		t = &table{items: make(map[string]map[string]types.AttributeValue)}
		c.tables[name] = t
	}
	return t
}

func (c *Client) keyOf(m map[string]types.AttributeValue) (string, error) {
	v, ok := m[c.keyAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("ddbtest: missing string key attribute %q", c.keyAttr)
	}
	return v.Value, nil
}

func (t *table) put(key string, item map[string]types.AttributeValue) {
	if _, exists := t.items[key]; !exists {
		t.order = append(t.order, key)
	}
	t.items[key] = item
}

func (t *table) remove(key string) {
	delete(t.items, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// GetItem implements the DynamoDB GetItem call.
func (c *Client) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := c.enter("GetItem"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := c.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := c.table(aws.ToString(in.TableName)).items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

// PutItem implements the DynamoDB PutItem call.
func (c *Client) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := c.enter("PutItem"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := c.keyOf(in.Item)
	if err != nil {
		return nil, err
	}
	t := c.table(aws.ToString(in.TableName))
	existing := t.items[key]
	if err := checkCondition(in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.put(key, copyItem(in.Item))
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem implements the DynamoDB UpdateItem call.
func (c *Client) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if hook := c.BeforeUpdate; hook != nil {
		hook(in)
	}
	if err := c.enter("UpdateItem"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := c.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	t := c.table(aws.ToString(in.TableName))
	existing := t.items[key]
	if err := checkCondition(in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}

	old := copyItem(existing)
	updated := copyItem(existing)
	if updated == nil {
		updated = copyItem(in.Key)
	}
	if err := applyUpdate(aws.ToString(in.UpdateExpression), updated, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.put(key, updated)

	out := &dynamodb.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = copyItem(updated)
	case types.ReturnValueAllOld:
		out.Attributes = old
	}
	return out, nil
}

// DeleteItem implements the DynamoDB DeleteItem call.
func (c *Client) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := c.enter("DeleteItem"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := c.keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	t := c.table(aws.ToString(in.TableName))
	existing := t.items[key]
	if err := checkCondition(in.ConditionExpression, existing, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.remove(key)

	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld && existing != nil {
		out.Attributes = copyItem(existing)
	}
	return out, nil
}

// Scan implements the DynamoDB Scan call, honoring Segment/TotalSegments
// and paging by PageSize.
func (c *Client) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if err := c.enter("Scan"); err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := c.table(aws.ToString(in.TableName))

	start := 0
	if in.ExclusiveStartKey != nil {
		after, err := c.keyOf(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		for i, k := range t.order {
			if k == after {
				start = i + 1
				break
			}
		}
	}

	out := &dynamodb.ScanOutput{}
	var lastKey string
	for _, k := range t.order[start:] {
		if in.TotalSegments != nil && segmentOf(k, *in.TotalSegments) != aws.ToInt32(in.Segment) {
			continue
		}
		if c.PageSize > 0 && int(out.ScannedCount) == c.PageSize {
			out.LastEvaluatedKey = map[string]types.AttributeValue{
				c.keyAttr: &types.AttributeValueMemberS{Value: lastKey},
			}
			break
		}
		out.ScannedCount++
		lastKey = k

		item := t.items[k]
		if in.FilterExpression != nil {
			ok, err := evaluate(*in.FilterExpression, item, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out.Items = append(out.Items, copyItem(item))
		out.Count++
	}
	return out, nil
}

func segmentOf(key string, total int32) int32 {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int32(h.Sum32() % uint32(total))
}

func checkCondition(expr *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	if expr == nil {
		return nil
	}
	ok, err := evaluate(*expr, item, names, values)
	if err != nil {
		return err
	}
	if !ok {
		return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	return nil
}

// evaluate interprets clauses joined by AND.
func evaluate(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		clause = strings.TrimSpace(clause)

		switch {
		case strings.HasPrefix(clause, "attribute_exists(") || strings.HasPrefix(clause, "attribute_not_exists("):
			open := strings.IndexByte(clause, '(')
			path := strings.TrimSuffix(clause[open+1:], ")")
			_, found, err := resolve(path, item, names)
			if err != nil {
				return false, err
			}
			want := strings.HasPrefix(clause, "attribute_exists(")
			if found != want {
				return false, nil
			}

		default:
			parts := strings.Fields(clause)
			if len(parts) != 3 {
				return false, fmt.Errorf("ddbtest: unsupported clause %q", clause)
			}
			left, found, err := resolve(parts[0], item, names)
			if err != nil {
				return false, err
			}
			right, ok := values[parts[2]]
			if !ok {
				return false, fmt.Errorf("ddbtest: missing value %s", parts[2])
			}
			if !found {
				return false, nil
			}
			cmp, comparable := compare(left, right)
			if !comparable {
				return false, nil
			}
			var match bool
			switch parts[1] {
			case "=":
				match = cmp == 0
			case "<>":
				match = cmp != 0
			case ">=":
				match = cmp >= 0
			case ">":
				match = cmp > 0
			case "<=":
				match = cmp <= 0
			case "<":
				match = cmp < 0
			default:
				return false, fmt.Errorf("ddbtest: unsupported operator %q", parts[1])
			}
			if !match {
				return false, nil
			}
		}
	}
	return true, nil
}

// resolve follows a dotted path of name placeholders into item.
func resolve(path string, item map[string]types.AttributeValue, names map[string]string) (types.AttributeValue, bool, error) {
	var current types.AttributeValue = &types.AttributeValueMemberM{Value: item}
	for _, segment := range strings.Split(path, ".") {
		name := segment
		if strings.HasPrefix(segment, "#") {
			n, ok := names[segment]
			if !ok {
				return nil, false, fmt.Errorf("ddbtest: missing name %s", segment)
			}
			name = n
		}
		m, ok := current.(*types.AttributeValueMemberM)
		if !ok || m.Value == nil {
			return nil, false, nil
		}
		next, ok := m.Value[name]
		if !ok {
			return nil, false, nil
		}
		current = next
	}
	return current, true, nil
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		if !ok || av.Value != bv.Value {
			return 1, ok
		}
		return 0, true
	}
	return 0, false
}

// applyUpdate interprets "SET #a = :a, #b = :b REMOVE #c, #d" on top-level attributes.
func applyUpdate(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	var setPart, removePart string
	rest := strings.TrimSpace(expr)
	if i := strings.Index(rest, "REMOVE "); i >= 0 {
		removePart = rest[i+len("REMOVE "):]
		rest = strings.TrimSpace(rest[:i])
	}
	if strings.HasPrefix(rest, "SET ") {
		setPart = rest[len("SET "):]
	} else if rest != "" {
		return fmt.Errorf("ddbtest: unsupported update expression %q", expr)
	}

	lookup := func(placeholder string) (string, error) {
		placeholder = strings.TrimSpace(placeholder)
		if !strings.HasPrefix(placeholder, "#") {
			return placeholder, nil
		}
		n, ok := names[placeholder]
		if !ok {
			return "", fmt.Errorf("ddbtest: missing name %s", placeholder)
		}
		return n, nil
	}

	if setPart != "" {
		for _, assignment := range strings.Split(setPart, ",") {
			lhs, rhs, ok := strings.Cut(assignment, "=")
			if !ok {
				return fmt.Errorf("ddbtest: bad assignment %q", assignment)
			}
			name, err := lookup(lhs)
			if err != nil {
				return err
			}
			v, ok := values[strings.TrimSpace(rhs)]
			if !ok {
				return fmt.Errorf("ddbtest: missing value %s", strings.TrimSpace(rhs))
			}
			item[name] = copyValue(v)
		}
	}
	if removePart != "" {
		for _, placeholder := range strings.Split(removePart, ",") {
			name, err := lookup(placeholder)
			if err != nil {
				return err
			}
			delete(item, name)
		}
	}
	return nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v types.AttributeValue) types.AttributeValue {
	switch tv := v.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: tv.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: tv.Value}
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), tv.Value...)}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: tv.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: tv.Value}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), tv.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), tv.Value...)}
	case *types.AttributeValueMemberM:
		m := make(map[string]types.AttributeValue, len(tv.Value))
		for k, inner := range tv.Value {
			m[k] = copyValue(inner)
		}
		return &types.AttributeValueMemberM{Value: m}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(tv.Value))
		for i, inner := range tv.Value {
			l[i] = copyValue(inner)
		}
		return &types.AttributeValueMemberL{Value: l}
	}
	return v
}
