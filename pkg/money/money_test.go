package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "105", want: 10500},
		{in: "105.5", want: 10550},
		{in: "0.01", want: 1},
		{in: "-5.00", want: -500},
		{in: "10.005", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ToCents(decimal.RequireFromString(tc.in))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "105.00", Format(10500))
	assert.Equal(t, "0.07", Format(7))
	assert.Equal(t, "1234.50", Format(123450))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("ten")
	assert.Error(t, err)

	cents, err := Parse("99.99")
	require.NoError(t, err)
	assert.Equal(t, int64(9999), cents)
}
