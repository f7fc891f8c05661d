package cnpj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{
			name:     "valid bare digits",
			input:    "11222333000181",
			expected: true,
		},
		{
			name:     "valid second fixture",
			input:    "45678901000175",
			expected: true,
		},
		{
			name:     "valid with mask",
			input:    "11.222.333/0001-81",
			expected: true,
		},
		{
			name:     "wrong first check digit",
			input:    "11222333000191",
			expected: false,
		},
		{
			name:     "wrong second check digit",
			input:    "11222333000180",
			expected: false,
		},
		{
			name:     "uniform digits pass arithmetic but are rejected",
			input:    "00000000000000",
			expected: false,
		},
		{
			name:     "too short",
			input:    "1122233300018",
			expected: false,
		},
		{
			name:     "too long",
			input:    "112223330001810",
			expected: false,
		},
		{
			name:     "empty",
			input:    "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValid(tt.input))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "11.222.333/0001-81", Format("11222333000181"))
	assert.Equal(t, "11.222.333/0001-81", Format("11.222.333/0001-81"))
	assert.Equal(t, "1122233", Format("1122233"))
}

func TestCleanFormatRoundTrip(t *testing.T) {
	masked := Format("11222333000181")
	assert.Equal(t, "11222333000181", Clean(masked))
	assert.Equal(t, masked, Format(Clean(masked)))
}

func TestRootAndBranch(t *testing.T) {
	assert.Equal(t, "11222333", Root("11.222.333/0001-81"))
	assert.Equal(t, "0001", Branch("11222333000181"))
	assert.True(t, IsHeadquarters("11222333000181"))

	other := "11222333000262"
	assert.Equal(t, Root("11222333000181"), Root(other))
	assert.False(t, IsHeadquarters(other))

	assert.Equal(t, "", Root("123"))
	assert.Equal(t, "", Branch("123"))
}
