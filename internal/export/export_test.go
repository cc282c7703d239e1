package export_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/keygate/internal/export"
	"github.com/kiranshivaraju/keygate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleIssued() []models.IssuedCredential {
	exp := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	return []models.IssuedCredential{
		{ID: 1, Plaintext: "ABCD-EFGH-JKLM-NPQR", Hint: "ABC…PQR", Tag: "beta", OneTime: true, ExpiresAt: &exp},
		{ID: 2, Plaintext: "STUV-WXYZ-2345-6789", Hint: "STU…789", IssuedTo: "a@example.com"},
	}
}

func readCSV(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	body := buf.String()
	require.True(t, strings.HasPrefix(body, "\ufeff"), "missing BOM")
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(body, "\ufeff"))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteIssuedCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteIssuedCSV(&buf, sampleIssued()))

	records := readCSV(t, &buf)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"access_key", "hint", "issued_to", "tag", "is_one_time", "expires_at"}, records[0])
	assert.Equal(t, []string{"ABCD-EFGH-JKLM-NPQR", "ABC…PQR", "", "beta", "true", "2026-04-01T12:00:00Z"}, records[1])
	assert.Equal(t, []string{"STUV-WXYZ-2345-6789", "STU…789", "a@example.com", "", "false", ""}, records[2])
}

func TestWriteIssuedCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteIssuedCSV(&buf, nil))
	assert.Len(t, readCSV(t, &buf), 1)
}

func TestWriteIssuedXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.WriteIssuedXLSX(&buf, sampleIssued()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "access_key", rows[0][0])
	assert.Equal(t, "ABCD-EFGH-JKLM-NPQR", rows[1][0])
	assert.Equal(t, "STUV-WXYZ-2345-6789", rows[2][0])
	assert.Equal(t, "a@example.com", rows[2][2])
}

func TestWriteListCSV_NoSecrets(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	creds := []*models.Credential{
		{ID: 7, Hash: "deadbeef", Hint: "ABC…PQR", OneTime: true, UsedCount: 1, IssuedAt: past, LastUsedAt: &past},
		{ID: 6, Hash: "cafebabe", Hint: "STU…789", IssuedAt: past, ExpiresAt: &past},
		{ID: 5, Hash: "f00dface", Hint: "XYZ…234", IssuedAt: past, Revoked: true},
		{ID: 4, Hash: "0badc0de", Hint: "MNP…QRS", IssuedAt: past},
	}

	var buf bytes.Buffer
	require.NoError(t, export.WriteListCSV(&buf, creds, now))
	assert.NotContains(t, buf.String(), "deadbeef")
	assert.NotContains(t, buf.String(), "cafebabe")

	records := readCSV(t, &buf)
	require.Len(t, records, 5)
	assert.Equal(t, "status", records[0][10])
	assert.Equal(t, "7", records[1][0])
	assert.Equal(t, models.StatusUsed, records[1][10])
	assert.Equal(t, models.StatusExpired, records[2][10])
	assert.Equal(t, models.StatusRevoked, records[3][10])
	assert.Equal(t, models.StatusActive, records[4][10])
}

func TestParseFormat(t *testing.T) {
	tests := map[string]export.Format{
		"":     export.FormatJSON,
		"json": export.FormatJSON,
		"CSV":  export.FormatCSV,
		"xlsx": export.FormatXLSX,
	}
	for in, want := range tests {
		got, err := export.ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := export.ParseFormat("pdf")
	assert.ErrorIs(t, err, export.ErrUnknownFormat)
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, "issued_keys_20260102_150405.csv", export.Filename("issued_keys", now, export.FormatCSV))
	assert.Equal(t, "issued_keys_20260102_150405.xlsx", export.Filename("issued_keys", now, export.FormatXLSX))
}

func TestContentType(t *testing.T) {
	assert.Contains(t, export.FormatCSV.ContentType(), "text/csv")
	assert.Contains(t, export.FormatXLSX.ContentType(), "spreadsheetml")
	assert.Equal(t, "application/json", export.FormatJSON.ContentType())
}
