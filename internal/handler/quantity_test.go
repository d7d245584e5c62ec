package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/ticket-sales/internal/repository"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw     string
		strict  bool
		want    int
		wantErr bool
	}{
		{raw: `3`, want: 3},
		{raw: `"4"`, want: 4},
		{raw: ``, want: 1},
		{raw: `null`, want: 1},
		{raw: `"abc"`, want: 1},
		{raw: `2.5`, want: 1},
		{raw: `0`, wantErr: true},
		{raw: `-2`, wantErr: true},
		{raw: `"-1"`, wantErr: true},
		{raw: ``, strict: true, wantErr: true},
		{raw: `"abc"`, strict: true, wantErr: true},
		{raw: `5`, strict: true, want: 5},
		{raw: `99999999999999999999`, wantErr: true},
		{raw: `"-99999999999999999999"`, wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseQuantity(json.RawMessage(tt.raw), tt.strict)
		if tt.wantErr {
			assert.ErrorIs(t, err, repository.ErrInvalidQuantity, "raw=%q strict=%v", tt.raw, tt.strict)
			continue
		}
		assert.NoError(t, err, "raw=%q", tt.raw)
		assert.Equal(t, tt.want, got, "raw=%q strict=%v", tt.raw, tt.strict)
	}
}
