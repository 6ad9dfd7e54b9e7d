package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmanup/invoicing-api/internal/domain"
)

func TestItemInput_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		malformed string
		quantity  *int
		price     string
	}{
		{"numbers", `{"description":"Work","quantity":2,"unitPrice":10.5}`, "", intPtr(2), "10.5"},
		{"quoted price", `{"description":"Work","quantity":-1,"unitPrice":"99.90"}`, "", intPtr(-1), "99.9"},
		{"missing values", `{"description":"Work"}`, "", nil, ""},
		{"null values", `{"description":"Work","quantity":null,"unitPrice":null}`, "", nil, ""},
		{"text quantity", `{"description":"Work","quantity":"abc","unitPrice":1}`, "quantity", nil, ""},
		{"fractional quantity", `{"description":"Work","quantity":1.5,"unitPrice":1}`, "quantity", nil, ""},
		{"text price", `{"description":"Work","quantity":1,"unitPrice":"x"}`, "unitPrice", intPtr(1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in domain.ItemInput
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			assert.Equal(t, "Work", in.Description)
			assert.Equal(t, tt.malformed, in.MalformedField)
			assert.Equal(t, tt.quantity, in.Quantity)
			if tt.price == "" {
				assert.Nil(t, in.UnitPrice)
			} else {
				require.NotNil(t, in.UnitPrice)
				assert.Equal(t, tt.price, in.UnitPrice.String())
			}
		})
	}
}

func TestItemInput_UnmarshalJSON_BadDescriptionFailsTheBody(t *testing.T) {
	var in domain.ItemInput
	assert.Error(t, json.Unmarshal([]byte(`{"description":7,"quantity":1,"unitPrice":1}`), &in))
}

func intPtr(n int) *int {
	return &n
}
