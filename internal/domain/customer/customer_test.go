package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "plain ten digits", raw: "5551234567", want: "5551234567"},
		{name: "formatted with country code", raw: "+1 (555) 123-4567", want: "15551234567"},
		{name: "dots and dashes", raw: "555.123-4567", want: "5551234567"},
		{name: "eleven digits", raw: "15551234567", want: "15551234567"},
		{name: "too short", raw: "555123", wantErr: true},
		{name: "too long", raw: "555123456789", wantErr: true},
		{name: "letters", raw: "555CALLNOW", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
