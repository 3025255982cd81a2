package journal

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/model"
)

func TestEntriesRoundTrip(t *testing.T) {
	approved := time.Date(2025, 9, 2, 10, 30, 0, 0, time.UTC)
	entries := []model.JournalEntry{
		{
			ID: "e1", Number: 1, Date: date(2025, 9, 1), Description: "Invoices, term 1",
			Source: model.SourceInvoices, Reference: "batch-1", Status: model.StatusApproved,
			CreatedBy: "clerk", CreatedAt: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC),
			ApprovedBy: "head", ApprovedAt: &approved, Applied: true,
			Lines: []model.JournalLine{debit("ar", "5000"), credit("tuition", "5000")},
		},
		{
			ID: "e2", Number: 2, Date: date(2025, 9, 3), Description: "Draft",
			Source: model.SourceManual, Status: model.StatusDraft, CreatedBy: "clerk",
			Lines: []model.JournalLine{{AccountID: "cash", Debit: dec("12.5"), Note: "petty"}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, "2025", entries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "JV-2025-0001a,e1,"))
	assert.True(t, strings.HasPrefix(lines[2], "JV-2025-0001b,e1,"))
	assert.True(t, strings.HasPrefix(lines[3], "JV-2025-0002a,e2,"))

	got, err := ReadEntries(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, model.StatusApproved, got[0].Status)
	assert.Equal(t, "Invoices, term 1", got[0].Description)
	require.NotNil(t, got[0].ApprovedAt)
	assert.True(t, approved.Equal(*got[0].ApprovedAt))
	assert.True(t, got[0].Applied)
	assert.True(t, got[0].IsBalanced)
	assert.True(t, got[0].TotalDebit.Equal(dec("5000")))
	require.Len(t, got[0].Lines, 2)

	assert.Nil(t, got[1].ApprovedAt)
	assert.Equal(t, "petty", got[1].Lines[0].Note)
	assert.True(t, got[1].Lines[0].Debit.Equal(dec("12.50")))
	assert.False(t, got[1].IsBalanced)
}

func TestReadEntries_Errors(t *testing.T) {
	bad := []string{
		"x,e1,one,2025-09-01,manual,,DRAFT,d,cash,1,,,,,,,,,,false",
		"x,e1,1,09/01/2025,manual,,DRAFT,d,cash,1,,,,,,,,,,false",
		"x,e1,1,2025-09-01,manual,,DRAFT,d,cash,abc,,,,,,,,,,false",
		"x,e1,1,2025-09-01,manual,,DRAFT,d,cash,1,,,,,,,,,,perhaps",
	}
	for _, row := range bad {
		_, err := ReadEntries(strings.NewReader(Header + "\n" + row + "\n"))
		assert.Error(t, err, row)
	}
}

func TestReadEntries_Empty(t *testing.T) {
	got, err := ReadEntries(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}
