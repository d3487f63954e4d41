// Package dynamo implements store.Store on a single DynamoDB table with string
// attributes PK and SK.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"scoop_backend/internal/store"
)

const (
	attrPK = "PK"
	attrSK = "SK"

	batchGetMax = 100
	scanPage    = 500
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type ddbStore struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// New returns a store bound to tableName.
func New(client API, tableName string, logger *zap.Logger) store.Store {
	return &ddbStore{
		client:    client,
		tableName: tableName,
		logger:    logger.Named("dynamo").With(zap.String("table", tableName)),
	}
}

func keyAV(k store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: k.PK},
		attrSK: &types.AttributeValueMemberS{Value: k.SK},
	}
}

// serverErrorCodes are 5xx DynamoDB faults worth retrying on top of the SDK's
// throttle and timeout codes.
var serverErrorCodes = map[string]struct{}{
	"InternalServerError": {},
	"ServiceUnavailable":  {},
}

var transient = retry.IsErrorRetryables(retry.DefaultRetryables)

// classify maps SDK errors onto the store's error kinds. Only throttling,
// timeouts, server faults and connection errors become ErrUnavailable;
// validation and missing-resource errors are returned as they are.
func classify(op string, key store.Key, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.ErrConditionFailed
	}
	if isTransient(err) {
		return fmt.Errorf("%w: dynamo %s %s: %w", store.ErrUnavailable, op, key, err)
	}
	return fmt.Errorf("dynamo %s %s: %w", op, key, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		_, throttled := retry.DefaultThrottleErrorCodes[code]
		_, timeout := retry.DefaultRetryableErrorCodes[code]
		_, fault := serverErrorCodes[code]
		if throttled || timeout || fault {
			return true
		}
	}
	return transient.IsErrorRetryable(err) == aws.TrueTernary
}

func toItem(av map[string]types.AttributeValue) (store.Item, error) {
	var it store.Item
	pk, ok := av[attrPK].(*types.AttributeValueMemberS)
	if !ok {
		return it, errors.New("item without string PK")
	}
	sk, ok := av[attrSK].(*types.AttributeValueMemberS)
	if !ok {
		return it, errors.New("item without string SK")
	}
	attrs := map[string]any{}
	if err := attributevalue.UnmarshalMap(av, &attrs); err != nil {
		return it, fmt.Errorf("unmarshal %s/%s: %w", pk.Value, sk.Value, err)
	}
	delete(attrs, attrPK)
	delete(attrs, attrSK)
	return store.Item{PK: pk.Value, SK: sk.Value, Attrs: attrs}, nil
}

func fromItem(it store.Item) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(it.Attrs)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", it.Key(), err)
	}
	if av == nil {
		av = map[string]types.AttributeValue{}
	}
	av[attrPK] = &types.AttributeValueMemberS{Value: it.PK}
	av[attrSK] = &types.AttributeValueMemberS{Value: it.SK}
	return av, nil
}

func (s *ddbStore) Get(ctx context.Context, key store.Key, opts ...store.ReadOption) (store.Item, bool, error) {
	o := store.ApplyReadOptions(opts...)
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            keyAV(key),
		ConsistentRead: aws.Bool(o.Consistent),
	})
	if err != nil {
		return store.Item{}, false, classify("get", key, err)
	}
	if len(out.Item) == 0 {
		return store.Item{}, false, nil
	}
	it, err := toItem(out.Item)
	if err != nil {
		return store.Item{}, false, err
	}
	return it, true, nil
}

func (s *ddbStore) Put(ctx context.Context, item store.Item, cond *store.Condition) error {
	av, err := fromItem(item)
	if err != nil {
		return err
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if c, ok := conditionExpr(cond); ok {
		expr, err := expression.NewBuilder().WithCondition(c).Build()
		if err != nil {
			return fmt.Errorf("build condition: %w", err)
		}
		in.ConditionExpression = expr.Condition()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}
	if _, err := s.client.PutItem(ctx, in); err != nil {
		return classify("put", item.Key(), err)
	}
	return nil
}

func conditionExpr(cond *store.Condition) (expression.ConditionBuilder, bool) {
	if cond == nil {
		return expression.ConditionBuilder{}, false
	}
	var (
		c   expression.ConditionBuilder
		set bool
	)
	if cond.MustNotExist {
		c = expression.AttributeNotExists(expression.Name(attrPK))
		set = true
	}
	if cond.AttrName != "" {
		eq := expression.Name(cond.AttrName).Equal(expression.Value(cond.AttrValue))
		if set {
			c = c.Or(eq)
		} else {
			c = eq
		}
		set = true
	}
	return c, set
}

func (s *ddbStore) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	kc := expression.Key(attrPK).Equal(expression.Value(in.PK))
	switch {
	case in.SKFrom != "" && in.SKTo != "":
		kc = kc.And(expression.Key(attrSK).Between(expression.Value(in.SKFrom), expression.Value(in.SKTo)))
	case in.SKFrom != "":
		kc = kc.And(expression.Key(attrSK).GreaterThanEqual(expression.Value(in.SKFrom)))
	case in.SKTo != "":
		kc = kc.And(expression.Key(attrSK).LessThanEqual(expression.Value(in.SKTo)))
	case in.SKPrefix != "":
		kc = kc.And(expression.Key(attrSK).BeginsWith(in.SKPrefix))
	}
	builder := expression.NewBuilder().WithKeyCondition(kc)
	// a range plus a prefix cannot share one key condition, so the prefix becomes a filter
	if in.SKPrefix != "" && (in.SKFrom != "" || in.SKTo != "") {
		builder = builder.WithFilter(expression.Name(attrSK).BeginsWith(in.SKPrefix))
	}
	expr, err := builder.Build()
	if err != nil {
		return store.Page{}, fmt.Errorf("build query: %w", err)
	}

	qi := &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(!in.Descending),
		ConsistentRead:            aws.Bool(in.Consistent),
	}
	if in.Limit > 0 {
		qi.Limit = aws.Int32(int32(in.Limit))
	}
	if in.Cursor != "" {
		qi.ExclusiveStartKey = keyAV(store.Key{PK: in.PK, SK: in.Cursor})
	}

	var page store.Page
	for {
		out, err := s.client.Query(ctx, qi)
		if err != nil {
			return store.Page{}, classify("query", store.Key{PK: in.PK}, err)
		}
		for _, av := range out.Items {
			it, err := toItem(av)
			if err != nil {
				s.logger.Warn("skipping malformed item", zap.String("pk", in.PK), zap.Error(err))
				continue
			}
			page.Items = append(page.Items, it)
		}
		if len(out.LastEvaluatedKey) == 0 {
			page.Next = ""
			return page, nil
		}
		if sk, ok := out.LastEvaluatedKey[attrSK].(*types.AttributeValueMemberS); ok {
			page.Next = sk.Value
		}
		// filters can leave a short page; keep reading until the page is full
		if in.Limit <= 0 || len(page.Items) >= in.Limit {
			return page, nil
		}
		qi.ExclusiveStartKey = out.LastEvaluatedKey
		qi.Limit = aws.Int32(int32(in.Limit - len(page.Items)))
	}
}

func (s *ddbStore) BatchGet(ctx context.Context, keys []store.Key) ([]store.Item, error) {
	seen := make(map[store.Key]bool, len(keys))
	unique := make([]store.Key, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}

	var out []store.Item
	for start := 0; start < len(unique); start += batchGetMax {
		end := min(start+batchGetMax, len(unique))
		req := make([]map[string]types.AttributeValue, 0, end-start)
		for _, k := range unique[start:end] {
			req = append(req, keyAV(k))
		}
		items, err := s.batchChunk(ctx, req)
		if err != nil {
			if len(out) > 0 {
				s.logger.Warn("batch get chunk failed, returning partial results", zap.Int("returned", len(out)), zap.Error(err))
				return out, nil
			}
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

// batchChunk fetches up to 100 keys, retrying unprocessed keys once.
func (s *ddbStore) batchChunk(ctx context.Context, keys []map[string]types.AttributeValue) ([]store.Item, error) {
	var out []store.Item
	request := map[string]types.KeysAndAttributes{s.tableName: {Keys: keys}}
	for attempt := 0; attempt < 2 && len(request) > 0; attempt++ {
		resp, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return out, classify("batch_get", store.Key{}, err)
		}
		for _, av := range resp.Responses[s.tableName] {
			it, err := toItem(av)
			if err != nil {
				s.logger.Warn("skipping malformed item", zap.Error(err))
				continue
			}
			out = append(out, it)
		}
		request = resp.UnprocessedKeys
	}
	if n := len(request[s.tableName].Keys); n > 0 {
		s.logger.Warn("batch get left keys unprocessed", zap.Int("unprocessed", n))
	}
	return out, nil
}

func (s *ddbStore) Delete(ctx context.Context, key store.Key) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       keyAV(key),
	})
	if err != nil {
		return classify("delete", key, err)
	}
	return nil
}

func (s *ddbStore) Scan(ctx context.Context, f store.Filter, limit int) ([]store.Item, error) {
	si := &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
		Limit:     aws.Int32(scanPage),
	}
	if c, ok := filterExpr(f); ok {
		expr, err := expression.NewBuilder().WithFilter(c).Build()
		if err != nil {
			return nil, fmt.Errorf("build scan filter: %w", err)
		}
		si.FilterExpression = expr.Filter()
		si.ExpressionAttributeNames = expr.Names()
		si.ExpressionAttributeValues = expr.Values()
	}

	var out []store.Item
	for {
		resp, err := s.client.Scan(ctx, si)
		if err != nil {
			return out, classify("scan", store.Key{}, err)
		}
		for _, av := range resp.Items {
			it, err := toItem(av)
			if err != nil {
				continue
			}
			out = append(out, it)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		si.ExclusiveStartKey = resp.LastEvaluatedKey
	}
}

func filterExpr(f store.Filter) (expression.ConditionBuilder, bool) {
	var conds []expression.ConditionBuilder
	if f.PKPrefix != "" {
		conds = append(conds, expression.Name(attrPK).BeginsWith(f.PKPrefix))
	}
	if f.SKPrefix != "" {
		conds = append(conds, expression.Name(attrSK).BeginsWith(f.SKPrefix))
	}
	if f.SKEquals != "" {
		conds = append(conds, expression.Name(attrSK).Equal(expression.Value(f.SKEquals)))
	}
	for name, v := range f.Equals {
		conds = append(conds, expression.Name(name).Equal(expression.Value(v)))
	}
	switch len(conds) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return conds[0], true
	default:
		return expression.And(conds[0], conds[1], conds[2:]...), true
	}
}

func (s *ddbStore) Add(ctx context.Context, key store.Key, attr string, delta int64) (int64, error) {
	update := expression.Add(expression.Name(attr), expression.Value(delta))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       keyAV(key),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, classify("add", key, err)
	}
	n, ok := out.Attributes[attr].(*types.AttributeValueMemberN)
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", attr, err)
	}
	return v, nil
}
