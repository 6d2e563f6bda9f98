package orders

import (
	"testing"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewItems() []OrderItem {
	return []OrderItem{{ID: "i-1", ProductID: "p-1"}, {ID: "i-2", ProductID: "p-2"}, {ID: "i-3", ProductID: "p-3"}}
}

func TestValidateReview_MeanSkipsZeros(t *testing.T) {
	rated, mean, err := validateReview(ReviewInput{
		Items: []ItemReview{
			{OrderItemID: "i-1", Rating: 5},
			{OrderItemID: "i-2", Rating: 0},
			{OrderItemID: "i-3", Rating: 4},
		},
		ServiceRating: 3,
	}, reviewItems())
	require.NoError(t, err)
	assert.Len(t, rated, 2)
	assert.True(t, mean.Equal(d("4.5")))
}

func TestValidateReview_RoundsToTwoPlaces(t *testing.T) {
	_, mean, err := validateReview(ReviewInput{
		Items: []ItemReview{
			{OrderItemID: "i-1", Rating: 5},
			{OrderItemID: "i-2", Rating: 5},
			{OrderItemID: "i-3", Rating: 4},
		},
		ServiceRating: 5,
	}, reviewItems())
	require.NoError(t, err)
	assert.True(t, mean.Equal(d("4.67")), mean.String())
}

func TestValidateReview_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   ReviewInput
	}{
		{"no ratings", ReviewInput{Items: []ItemReview{{OrderItemID: "i-1"}}, ServiceRating: 4}},
		{"empty", ReviewInput{ServiceRating: 4}},
		{"rating too high", ReviewInput{Items: []ItemReview{{OrderItemID: "i-1", Rating: 6}}, ServiceRating: 4}},
		{"negative rating", ReviewInput{Items: []ItemReview{{OrderItemID: "i-1", Rating: -1}}, ServiceRating: 4}},
		{"missing service rating", ReviewInput{Items: []ItemReview{{OrderItemID: "i-1", Rating: 4}}}},
		{"service rating too high", ReviewInput{Items: []ItemReview{{OrderItemID: "i-1", Rating: 4}}, ServiceRating: 9}},
		{"foreign item", ReviewInput{Items: []ItemReview{{OrderItemID: "other", Rating: 4}}, ServiceRating: 4}},
		{"duplicate item", ReviewInput{Items: []ItemReview{{OrderItemID: "i-1", Rating: 4}, {OrderItemID: "i-1", Rating: 2}}, ServiceRating: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := validateReview(tt.in, reviewItems())
			assert.ErrorIs(t, err, ErrInvalidReview)
		})
	}
}

func TestMergeLines(t *testing.T) {
	const (
		a = "0a4a6b1e-0000-4000-8000-000000000001"
		b = "bf6d2c3a-0000-4000-8000-000000000002"
	)
	lines, err := mergeLines([]LineInput{
		{ProductID: b, Quantity: 1},
		{ProductID: a, Quantity: 2},
		{ProductID: "BF6D2C3A-0000-4000-8000-000000000002", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []LineInput{{ProductID: a, Quantity: 2}, {ProductID: b, Quantity: 4}}, lines)

	_, err = mergeLines(nil)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = mergeLines([]LineInput{{ProductID: a, Quantity: 0}})
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)

	_, err = mergeLines([]LineInput{{ProductID: "not-a-uuid", Quantity: 1}})
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}
