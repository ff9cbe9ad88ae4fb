package attrvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderTree() Tree {
	return Tree{
		"orderId":       String("ORD-000001"),
		"customerEmail": String("cust@example.com"),
		"amount":        Number("1499.90"),
		"paid":          Bool(true),
		"items": List(
			Map(map[string]Value{
				"name":  String("Кроссовки"),
				"price": Number("999.90"),
			}),
			Map(map[string]Value{
				"name":  String("Футболка"),
				"price": Number("500"),
			}),
		),
		"delivery": Map(map[string]Value{
			"city": String("Moscow"),
			"zip":  String("101000"),
		}),
	}
}

func TestNormalizeScalarsAndNesting(t *testing.T) {
	doc, err := Normalize(orderTree())
	require.NoError(t, err)

	assert.Equal(t, "ORD-000001", doc["orderId"])
	assert.Equal(t, 1499.90, doc["amount"])
	assert.Equal(t, true, doc["paid"])

	items, ok := doc["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Кроссовки", first["name"])
	assert.Equal(t, 999.90, first["price"])

	delivery, ok := doc["delivery"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Moscow", delivery["city"])
}

func TestNormalizeDeterministic(t *testing.T) {
	a, err := Normalize(orderTree())
	require.NoError(t, err)
	b, err := Normalize(orderTree())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNormalizeListOrderPreserved(t *testing.T) {
	tree := Tree{
		"seq": List(Number("1"), Number("2"), Number("3")),
	}
	doc, err := Normalize(tree)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, doc["seq"])
}

func TestNormalizeEmptyContainers(t *testing.T) {
	doc, err := Normalize(Tree{
		"items": List(),
		"meta":  Map(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, []any{}, doc["items"])
	assert.Equal(t, map[string]any{}, doc["meta"])
}

func TestNormalizeNoTag(t *testing.T) {
	_, err := Normalize(Tree{"bad": {}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestNormalizeBadNumber(t *testing.T) {
	_, err := Normalize(Tree{"amount": Number("not-a-number")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeTreeRoundTrip(t *testing.T) {
	raw := []byte(`{
		"orderId": {"S": "ORD-42"},
		"amount": {"N": "100.5"},
		"paid": {"BOOL": false},
		"tags": {"L": [{"S": "new"}, {"S": "web"}]},
		"delivery": {"M": {"city": {"S": "Kazan"}}}
	}`)
	tree, err := DecodeTree(raw)
	require.NoError(t, err)

	doc, err := Normalize(tree)
	require.NoError(t, err)
	assert.Equal(t, "ORD-42", doc["orderId"])
	assert.Equal(t, 100.5, doc["amount"])
	assert.Equal(t, false, doc["paid"])
	assert.Equal(t, []any{"new", "web"}, doc["tags"])

	// и обратно в JSON без потери тегов
	out, err := json.Marshal(tree)
	require.NoError(t, err)
	again, err := DecodeTree(out)
	require.NoError(t, err)
	doc2, err := Normalize(again)
	require.NoError(t, err)
	assert.Equal(t, doc, doc2)
}

func TestDecodeTreeUnknownTag(t *testing.T) {
	_, err := DecodeTree([]byte(`{"x": {"BS": ["abc"]}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeTreeMultipleTags(t *testing.T) {
	_, err := DecodeTree([]byte(`{"x": {"S": "a", "N": "1"}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)
}
