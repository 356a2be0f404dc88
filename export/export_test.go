package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perbu/calcat/category"
	"github.com/perbu/calcat/colorize"
)

var rows = []colorize.ResultRow{
	{EventID: "1", Title: "Weekly team sync", Start: "2025-01-31T10:00:00Z", End: "2025-01-31T10:30:00Z", Category: category.Team},
	{EventID: "2", Title: "Office, floor 3", Description: "badge \"required\"\nbring laptop", Start: "2025-01-31", End: "2025-02-01", Category: category.Other, Skipped: true},
	{EventID: "3", Title: "Møte med kunde", Category: category.Client},
}

func TestWriteCSV(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteCSV(&b, rows))

	records, err := csv.NewReader(strings.NewReader(b.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{"Weekly team sync", "", "2025-01-31T10:00:00Z", "2025-01-31T10:30:00Z", "Team", "No"}, records[1])
	assert.Equal(t, "badge \"required\"\nbring laptop", records[2][1])
	assert.Equal(t, "Yes", records[2][5])
	assert.Equal(t, "Møte med kunde", records[3][0])
}

func TestWriteCSVEmpty(t *testing.T) {
	data, err := Bytes(nil)
	require.NoError(t, err)
	assert.Equal(t, "Title,Description,Start,End,Category,Skipped Color Update\n", string(data))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	p1, err := Save(dir, rows, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), p1)

	p2, err := Save(dir, rows, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "categorized_events-20250131-120000.csv"), p2)

	data, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Title,"))

	explicit := filepath.Join(dir, "out.csv")
	p3, err := Save(explicit, rows, now)
	require.NoError(t, err)
	assert.Equal(t, explicit, p3)
}
