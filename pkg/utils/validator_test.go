package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePathSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Verde Farms", "Verde Farms"},
		{"AT&T / Wireless", "AT&T - Wireless"},
		{"  Acme:  Inc.  ", "Acme- Inc"},
		{"../etc", "etc"},
		{"\x00", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizePathSegment(tt.in), tt.in)
	}
}

func TestSanitizePath(t *testing.T) {
	assert.Equal(t, "Invoices/2026/Verde Farms", SanitizePath("Invoices/2026/Verde Farms"))
	assert.Equal(t, "a/b", SanitizePath("/../a//./b/"))
	assert.Equal(t, "x/y", SanitizePath(`x\y`))
	assert.Equal(t, "", SanitizePath("../.."))
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "All Files/Invoices/2026", JoinPath("All Files", "/Invoices/", "", "2026"))
}

func TestValidateAmountAndDate(t *testing.T) {
	assert.NoError(t, ValidateAmount(0))
	assert.NoError(t, ValidateAmount(12.5))
	assert.Error(t, ValidateAmount(-1))
	assert.Error(t, ValidateAmount(math.NaN()))

	assert.NoError(t, ValidateDate(""))
	assert.NoError(t, ValidateDate("2026-01-10"))
	assert.Error(t, ValidateDate("01/10/2026"))
}
