package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"shop-assist-go/internal/model"
)

func TestExtractDirective_TrailingObject(t *testing.T) {
	raw := "I'm sorry to hear that your headphones arrived damaged. I have raised a support case for you.\n" +
		`{"createCase": true, "orderId": "ORD-1001", "productIndex": 0, "description": "Headphones arrived damaged", "priority": "low"}`

	clean, d := ExtractDirective(raw)

	require.NotNil(t, d)
	assert.Equal(t, "ORD-1001", d.OrderID)
	assert.Equal(t, 0, d.ProductIndex)
	assert.Equal(t, "Headphones arrived damaged", d.Description)
	assert.Equal(t, model.PriorityLow, d.Priority)
	assert.Equal(t, "I'm sorry to hear that your headphones arrived damaged. I have raised a support case for you.", clean)
}

func TestExtractDirective_FencedObject(t *testing.T) {
	raw := "Here you go.\n```json\n" +
		`{"createCase": true, "orderId": "A1", "productIndex": 2, "description": "broken screen"}` +
		"\n```"

	clean, d := ExtractDirective(raw)

	require.NotNil(t, d)
	assert.Equal(t, "A1", d.OrderID)
	assert.Equal(t, 2, d.ProductIndex)
	assert.Equal(t, "Here you go.", clean)
	// priority 缺失时留空，由调用方的分类器兜底
	assert.Empty(t, d.Priority)
}

func TestExtractDirective_MidMessageObjectIgnored(t *testing.T) {
	raw := `A case directive looks like {"createCase": true, "orderId": "X", "productIndex": 0, "description": "d"} and is appended at the end.`

	clean, d := ExtractDirective(raw)

	assert.Nil(t, d)
	assert.Equal(t, raw, clean)
}

func TestExtractDirective_MalformedJSON(t *testing.T) {
	raw := "Sure.\n{\"createCase\": true, \"orderId\": \"A1\", \"productIndex\":}"

	clean, d := ExtractDirective(raw)

	assert.Nil(t, d)
	assert.Equal(t, raw, clean)
}

func TestExtractDirective_MissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"createCase false":      `{"createCase": false, "orderId": "A1", "productIndex": 0, "description": "d"}`,
		"missing orderId":       `{"createCase": true, "productIndex": 0, "description": "d"}`,
		"missing productIndex":  `{"createCase": true, "orderId": "A1", "description": "d"}`,
		"negative productIndex": `{"createCase": true, "orderId": "A1", "productIndex": -1, "description": "d"}`,
		"missing description":   `{"createCase": true, "orderId": "A1", "productIndex": 0}`,
	}
	for name, candidate := range cases {
		t.Run(name, func(t *testing.T) {
			raw := "Reply text.\n" + candidate
			clean, d := ExtractDirective(raw)
			assert.Nil(t, d)
			assert.Equal(t, raw, clean)
		})
	}
}

func TestExtractDirective_InvalidPriorityIgnored(t *testing.T) {
	raw := "Done.\n" + `{"createCase": true, "orderId": "A1", "productIndex": 0, "description": "d", "priority": "urgent"}`

	_, d := ExtractDirective(raw)

	require.NotNil(t, d)
	assert.Empty(t, d.Priority)
}

func TestExtractDirective_BracesInsideStrings(t *testing.T) {
	raw := "Noted.\n" + `{"createCase": true, "orderId": "A1", "productIndex": 1, "description": "box printed with } and { symbols"}`

	clean, d := ExtractDirective(raw)

	require.NotNil(t, d)
	assert.Equal(t, "box printed with } and { symbols", d.Description)
	assert.Equal(t, "Noted.", clean)
}

func TestExtractDirective_EmptyInput(t *testing.T) {
	clean, d := ExtractDirective("   ")
	assert.Empty(t, clean)
	assert.Nil(t, d)
}

func TestExtractDirective_PlainReply(t *testing.T) {
	raw := "Your order will be delivered on Friday."
	clean, d := ExtractDirective(raw)
	assert.Nil(t, d)
	assert.Equal(t, raw, clean)
}
