package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		coupon   *Coupon
		subtotal decimal.Decimal
		want     decimal.Decimal
	}{
		{
			name:     "percentage",
			coupon:   &Coupon{Type: DiscountPercentage, Value: dec("10")},
			subtotal: dec("100.00"),
			want:     dec("10.00"),
		},
		{
			name:     "percentage rounds to 2dp",
			coupon:   &Coupon{Type: DiscountPercentage, Value: dec("15")},
			subtotal: dec("9.99"),
			want:     dec("1.50"),
		},
		{
			name:     "percentage clamped to max discount",
			coupon:   &Coupon{Type: DiscountPercentage, Value: dec("10"), MaxDiscount: decPtr("5.00")},
			subtotal: dec("100.00"),
			want:     dec("5.00"),
		},
		{
			name:     "percentage under max discount unclamped",
			coupon:   &Coupon{Type: DiscountPercentage, Value: dec("10"), MaxDiscount: decPtr("50.00")},
			subtotal: dec("100.00"),
			want:     dec("10.00"),
		},
		{
			name:     "fixed",
			coupon:   &Coupon{Type: DiscountFixed, Value: dec("7.50")},
			subtotal: dec("100.00"),
			want:     dec("7.50"),
		},
		{
			name:     "fixed clamped to subtotal",
			coupon:   &Coupon{Type: DiscountFixed, Value: dec("20.00")},
			subtotal: dec("12.00"),
			want:     dec("12.00"),
		},
		{
			name:     "hundred percent equals subtotal",
			coupon:   &Coupon{Type: DiscountPercentage, Value: dec("100")},
			subtotal: dec("33.33"),
			want:     dec("33.33"),
		},
		{
			name:     "zero subtotal yields zero discount",
			coupon:   &Coupon{Type: DiscountFixed, Value: dec("5.00")},
			subtotal: decimal.Zero,
			want:     decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.coupon, tt.subtotal)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
			assert.False(t, got.IsNegative())
			assert.True(t, got.LessThanOrEqual(tt.subtotal))
		})
	}
}

func TestApply_UnsupportedType(t *testing.T) {
	_, err := Apply(&Coupon{Type: "bogus", Value: dec("5")}, dec("10.00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount type")
}
