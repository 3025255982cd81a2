package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatEntryNumber(t *testing.T) {
	assert.Equal(t, "JV-2025-0001", FormatEntryNumber("2025", 1))
	assert.Equal(t, "JV-2025-0123", FormatEntryNumber("2025", 123))
	assert.Equal(t, "JV-2025-26-0007", FormatEntryNumber("2025-26", 7))
}

func TestFormatLineID(t *testing.T) {
	tests := []struct {
		line int
		want string
	}{
		{0, "JV-2025-0001a"},
		{1, "JV-2025-0001b"},
		{25, "JV-2025-0001z"},
		{26, "JV-2025-0001aa"},
		{27, "JV-2025-0001ab"},
		{51, "JV-2025-0001az"},
		{52, "JV-2025-0001ba"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLineID("JV-2025-0001", tt.line), "line %d", tt.line)
	}
}

func TestParseEntryNumber(t *testing.T) {
	year, seq, err := ParseEntryNumber("JV-2025-0042")
	require.NoError(t, err)
	assert.Equal(t, "2025", year)
	assert.Equal(t, 42, seq)

	year, seq, err = ParseEntryNumber("JV-2025-26-0003ab")
	require.NoError(t, err)
	assert.Equal(t, "2025-26", year)
	assert.Equal(t, 3, seq)
}

func TestParseEntryNumber_Invalid(t *testing.T) {
	for _, s := range []string{"", "2025-01-001", "JV-", "JV-2025-abc", "INV-000001"} {
		_, _, err := ParseEntryNumber(s)
		assert.Error(t, err, "%q should fail", s)
	}
}

func TestEntryGroup(t *testing.T) {
	assert.Equal(t, "JV-2025-0001", EntryGroup("JV-2025-0001a"))
	assert.Equal(t, "JV-2025-0001", EntryGroup("JV-2025-0001aa"))
	assert.Equal(t, "JV-2025-0001", EntryGroup("JV-2025-0001"))
	assert.Equal(t, "", EntryGroup(""))
}

func TestSerials(t *testing.T) {
	assert.Equal(t, "INV-000042", FormatSerial(PrefixInvoice, 42))
	n, err := ParseSerial(PrefixInvoice, "INV-000042")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = ParseSerial(PrefixReceipt, "INV-000042")
	assert.Error(t, err)
	_, err = ParseSerial(PrefixInvoice, "INV-x")
	assert.Error(t, err)
}
