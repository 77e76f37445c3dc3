package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPAN(t *testing.T) {
	tests := []struct {
		name string
		pan  string
		want string
	}{
		{"typical 16-digit PAN", "4000510010065678", "4000****5678"},
		{"13-digit PAN", "4111111111111", "4111****1111"},
		{"19-digit PAN", "6011000990139424786", "6011****4786"},
		{"nine characters masked", "123456789", "1234****6789"},
		{"eight characters unchanged", "12345678", "12345678"},
		{"short value unchanged", "1234", "1234"},
		{"empty unchanged", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskPAN(tt.pan))
		})
	}
}
