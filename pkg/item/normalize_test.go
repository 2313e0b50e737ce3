package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func rawValue(t *testing.T, v interface{}) bson.RawValue {
	t.Helper()
	typ, data, err := bson.MarshalValue(v)
	require.NoError(t, err)
	return bson.RawValue{Type: typ, Value: data}
}

func TestNormalizeComments(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		comments, err := NormalizeComments(bson.RawValue{})
		assert.NoError(t, err)
		assert.Empty(t, comments)
		assert.NotNil(t, comments)
	})

	t.Run("key/value mapping keeps document order", func(t *testing.T) {
		raw := rawValue(t, bson.D{
			{Key: "b2", Value: bson.D{{Key: "userEmail", Value: "first@x.com"}, {Key: "text", Value: "first"}}},
			{Key: "a1", Value: bson.D{{Key: "userEmail", Value: "second@x.com"}, {Key: "text", Value: "second"}}},
		})
		comments, err := NormalizeComments(raw)
		assert.NoError(t, err)
		assert.Equal(t, []*Comment{
			{Id: "b2", UserEmail: "first@x.com", Text: "first"},
			{Id: "a1", UserEmail: "second@x.com", Text: "second"},
		}, comments)
	})

	t.Run("array-like with holes", func(t *testing.T) {
		raw := rawValue(t, bson.A{
			bson.D{{Key: "userEmail", Value: "a@x.com"}, {Key: "text", Value: "zero"}},
			nil,
			bson.D{{Key: "userEmail", Value: "b@x.com"}, {Key: "text", Value: "two"}},
		})
		comments, err := NormalizeComments(raw)
		assert.NoError(t, err)
		assert.Equal(t, []*Comment{
			{Id: "0", UserEmail: "a@x.com", Text: "zero"},
			{Id: "2", UserEmail: "b@x.com", Text: "two"},
		}, comments)
	})

	t.Run("unexpected type", func(t *testing.T) {
		_, err := NormalizeComments(rawValue(t, "nope"))
		assert.Error(t, err)
	})
}
