package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bursar/internal/model"
)

func TestRoundTrip(t *testing.T) {
	accounts := []model.Account{
		{ID: "acct-1", Code: "1", Name: "Assets", Type: model.AccountTypeAsset, Level: 1, IsMain: true},
		{
			ID: "acct-1103", Code: "1103", Name: "Student Receivables", Type: model.AccountTypeAsset,
			Level: 3, ParentID: "acct-11", Balance: decimal.RequireFromString("5000.5"),
			IsSystem: true, SystemTag: model.TagStudentAR, Locked: true, Description: "fees owed, by student",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, accounts[0].ID, got[0].ID)
	assert.True(t, got[0].IsMain)
	assert.True(t, got[0].IsRoot())

	assert.Equal(t, "acct-11", got[1].ParentID)
	assert.Equal(t, 3, got[1].Level)
	assert.True(t, got[1].Balance.Equal(decimal.RequireFromString("5000.50")))
	assert.Equal(t, model.TagStudentAR, got[1].SystemTag)
	assert.True(t, got[1].IsSystem)
	assert.True(t, got[1].Locked)
	assert.Equal(t, "fees owed, by student", got[1].Description)
}

func TestWriteAccounts_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, nil))
	assert.Equal(t, Header+"\n", buf.String())
}

func TestReadAccounts_Empty(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadAccounts_BadRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad level", "a,1,Assets,asset,x,,true,0,false,,false,"},
		{"bad balance", "a,1,Assets,asset,1,,true,abc,false,,false,"},
		{"bad bool", "a,1,Assets,asset,1,,maybe,0,false,,false,"},
		{"short row", "a,1,Assets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAccounts(strings.NewReader(Header + "\n" + tt.row + "\n"))
			assert.Error(t, err)
		})
	}
}

func TestDefaultChart_RoundTrip(t *testing.T) {
	chart := DefaultChart()

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, chart))
	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(chart))
	for i := range chart {
		assert.Equal(t, chart[i].Code, got[i].Code)
		assert.Equal(t, chart[i].ParentID, got[i].ParentID)
		assert.Equal(t, chart[i].SystemTag, got[i].SystemTag)
	}
}
