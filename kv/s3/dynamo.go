package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/recordkv/kv"
)

const (
	// Attribute names of the DynamoDB table.
	attrKey   = "k"
	attrValue = "v"

	maxBatchGet     = 100
	maxTransactItem = 100
)

// ErrTransactionConflict is returned when a DynamoDB transaction is canceled,
// typically by a concurrent write to one of its items.
var ErrTransactionConflict = errors.New("s3: dynamodb transaction canceled")

// DDBClient is the subset of the DynamoDB API used by DynamoStore.
type DDBClient interface {
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore implements kv.Store and kv.Lister on a DynamoDB table.
// Writes of more than 100 keys are split into several transactions.
type DynamoStore struct {
	client DDBClient
	table  string
}

// NewDynamoStore creates a store on table.
func NewDynamoStore(client DDBClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// Get fetches keys with BatchGetItem, 100 keys per request.
func (s *DynamoStore) Get(ctx context.Context, keys ...string) (kv.Items, error) {
	items := make(kv.Items, len(keys))
	unique := dedupe(keys)

	for start := 0; start < len(unique); start += maxBatchGet {
		end := min(start+maxBatchGet, len(unique))

		reqKeys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, k := range unique[start:end] {
			reqKeys = append(reqKeys, itemKey(k))
		}

		pending := map[string]types.KeysAndAttributes{
			s.table: {Keys: reqKeys, ConsistentRead: aws.Bool(true)},
		}
		for len(pending) > 0 {
			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("s3: dynamodb batch get: %w", err)
			}
			for _, item := range out.Responses[s.table] {
				k, v, err := decodeItem(item)
				if err != nil {
					return nil, err
				}
				items[k] = v
			}
			pending = out.UnprocessedKeys
		}
	}
	return items, nil
}

// Set puts all items in one transaction per 100 keys.
func (s *DynamoStore) Set(ctx context.Context, items kv.Items) error {
	keys := items.Keys()
	return s.transact(ctx, len(keys), func(i int) types.TransactWriteItem {
		k := keys[i]
		return types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(s.table),
			Item: map[string]types.AttributeValue{
				attrKey:   &types.AttributeValueMemberS{Value: k},
				attrValue: &types.AttributeValueMemberB{Value: items[k]},
			},
		}}
	})
}

// Remove deletes all keys in one transaction per 100 keys.
func (s *DynamoStore) Remove(ctx context.Context, keys ...string) error {
	unique := dedupe(keys)
	return s.transact(ctx, len(unique), func(i int) types.TransactWriteItem {
		return types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(s.table),
			Key:       itemKey(unique[i]),
		}}
	})
}

func (s *DynamoStore) transact(ctx context.Context, n int, item func(int) types.TransactWriteItem) error {
	for start := 0; start < n; start += maxTransactItem {
		end := min(start+maxTransactItem, n)

		writes := make([]types.TransactWriteItem, 0, end-start)
		for i := start; i < end; i++ {
			writes = append(writes, item(i))
		}

		_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
		if err != nil {
			var canceled *types.TransactionCanceledException
			if errors.As(err, &canceled) {
				return fmt.Errorf("%w: %s", ErrTransactionConflict, aws.ToString(canceled.Message))
			}
			return fmt.Errorf("s3: dynamodb transact write: %w", err)
		}
	}
	return nil
}

// Keys scans the table for keys starting with prefix.
func (s *DynamoStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	input := &dynamodb.ScanInput{
		TableName:            aws.String(s.table),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]string{
			"#k": attrKey,
		},
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#k, :p)")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	var keys []string
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3: dynamodb scan: %w", err)
		}
		for _, item := range page.Items {
			k, ok := item[attrKey].(*types.AttributeValueMemberS)
			if !ok {
				return nil, errors.New("s3: invalid key attribute in DynamoDB")
			}
			keys = append(keys, k.Value)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func itemKey(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: k},
	}
}

func decodeItem(item map[string]types.AttributeValue) (string, []byte, error) {
	k, ok := item[attrKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", nil, errors.New("s3: invalid key attribute in DynamoDB")
	}
	switch v := item[attrValue].(type) {
	case *types.AttributeValueMemberB:
		return k.Value, v.Value, nil
	case nil:
		return k.Value, []byte{}, nil
	default:
		return "", nil, fmt.Errorf("s3: invalid value attribute for %q in DynamoDB", k.Value)
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
