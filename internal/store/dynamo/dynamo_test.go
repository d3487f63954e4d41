package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scoop_backend/internal/store"
)

// fakeAPI embeds the interface so unimplemented calls panic loudly.
type fakeAPI struct {
	API
	putFn      func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	getFn      func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	updateFn   func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	batchGetFn func(*dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error)
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putFn(in)
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getFn(in)
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateFn(in)
}

func (f *fakeAPI) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return f.batchGetFn(in)
}

func TestPut_ConditionFailureMapsToConflict(t *testing.T) {
	api := &fakeAPI{putFn: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		require.NotNil(t, in.ConditionExpression)
		assert.Contains(t, *in.ConditionExpression, "attribute_not_exists")
		return nil, &types.ConditionalCheckFailedException{}
	}}
	s := New(api, "scoop", zap.NewNop())

	item, err := store.NewItem(store.HandleKey("bob"), map[string]string{"userId": "u1"})
	require.NoError(t, err)

	err = s.Put(context.Background(), item, store.NotExists())
	assert.ErrorIs(t, err, store.ErrConditionFailed)
}

func TestGet_TransportErrorIsUnavailable(t *testing.T) {
	api := &fakeAPI{getFn: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return nil, errors.New("connection reset")
	}}
	s := New(api, "scoop", zap.NewNop())

	_, _, err := s.Get(context.Background(), store.UserKey("u1"))
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"throughput exceeded", &types.ProvisionedThroughputExceededException{}, true},
		{"request limit", &types.RequestLimitExceeded{}, true},
		{"internal server error", &types.InternalServerError{}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"missing table", &types.ResourceNotFoundException{}, false},
		{"validation", &smithy.GenericAPIError{Code: "ValidationException", Message: "bad key"}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("get", store.UserKey("u1"), tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, store.ErrUnavailable))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPut_ValidationErrorIsNotUnavailable(t *testing.T) {
	api := &fakeAPI{putFn: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "item too large"}
	}}
	s := New(api, "scoop", zap.NewNop())

	item, err := store.NewItem(store.HandleKey("bob"), map[string]string{"userId": "u1"})
	require.NoError(t, err)

	err = s.Put(context.Background(), item, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrUnavailable)
	assert.NotErrorIs(t, err, store.ErrConditionFailed)
}

func TestGet_DecodesAttributes(t *testing.T) {
	api := &fakeAPI{getFn: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: "USER#u1"},
			"SK":     &types.AttributeValueMemberS{Value: "PROFILE"},
			"handle": &types.AttributeValueMemberS{Value: "bob"},
			"count":  &types.AttributeValueMemberN{Value: "3"},
		}}, nil
	}}
	s := New(api, "scoop", zap.NewNop())

	it, found, err := s.Get(context.Background(), store.UserKey("u1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "bob", it.String("handle"))
	assert.Equal(t, int64(3), it.Int("count"))
	assert.NotContains(t, it.Attrs, "PK")
}

func TestAdd_ReturnsUpdatedValue(t *testing.T) {
	api := &fakeAPI{updateFn: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		assert.Contains(t, *in.UpdateExpression, "ADD")
		return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
			"count": &types.AttributeValueMemberN{Value: "7"},
		}}, nil
	}}
	s := New(api, "scoop", zap.NewNop())

	n, err := s.Add(context.Background(), store.ReactionCountKey("p1", "🔥"), "count", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestBatchGet_ChunksAndRetriesUnprocessed(t *testing.T) {
	calls := 0
	api := &fakeAPI{batchGetFn: func(in *dynamodb.BatchGetItemInput) (*dynamodb.BatchGetItemOutput, error) {
		calls++
		keys := in.RequestItems["scoop"].Keys
		assert.LessOrEqual(t, len(keys), batchGetMax)
		out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
		for i, k := range keys {
			// leave the first key of the first chunk unprocessed once
			if calls == 1 && i == 0 {
				out.UnprocessedKeys = map[string]types.KeysAndAttributes{"scoop": {Keys: []map[string]types.AttributeValue{k}}}
				continue
			}
			out.Responses["scoop"] = append(out.Responses["scoop"], k)
		}
		return out, nil
	}}
	s := New(api, "scoop", zap.NewNop())

	keys := make([]store.Key, 0, 150)
	for i := 0; i < 150; i++ {
		keys = append(keys, store.UserKey(string(rune('a'+i%26))+string(rune('0'+i/26))))
	}
	items, err := s.BatchGet(context.Background(), keys)
	require.NoError(t, err)
	assert.Len(t, items, 150)
	assert.Equal(t, 3, calls)
}
