// Package export renders issuance results and the audit listing as
// downloadable tables.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/keygate/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Format is a download format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var ErrUnknownFormat = errors.New("unknown export format")

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// ParseFormat maps a query value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Filename builds a timestamped download name such as
// issued_keys_20260102_150405.csv.
func Filename(prefix string, now time.Time, f Format) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102_150405"), f)
}

// utf8BOM lets spreadsheet applications detect the encoding.
const utf8BOM = "\ufeff"

var issuedHeader = []string{"access_key", "hint", "issued_to", "tag", "is_one_time", "expires_at"}

func issuedRow(ic models.IssuedCredential) []string {
	return []string{
		ic.Plaintext,
		ic.Hint,
		ic.IssuedTo,
		ic.Tag,
		strconv.FormatBool(ic.OneTime),
		formatTimePtr(ic.ExpiresAt),
	}
}

// WriteIssuedCSV writes issuance results, plaintexts included.
func WriteIssuedCSV(w io.Writer, issued []models.IssuedCredential) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(issuedHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, ic := range issued {
		if err := cw.Write(issuedRow(ic)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteIssuedXLSX writes issuance results to Sheet1 of a workbook.
func WriteIssuedXLSX(w io.Writer, issued []models.IssuedCredential) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	if err := f.SetSheetRow(sheet, "A1", &issuedHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, ic := range issued {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := issuedRow(ic)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

var listHeader = []string{
	"id", "hint", "issued_to", "tag", "is_one_time", "issued_at", "expires_at",
	"used_count", "last_used_at", "is_revoked", "status",
}

// WriteListCSV writes the audit listing. It carries neither plaintexts nor digests.
func WriteListCSV(w io.Writer, creds []*models.Credential, now time.Time) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(listHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range creds {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.Hint,
			c.IssuedTo,
			c.Tag,
			strconv.FormatBool(c.OneTime),
			c.IssuedAt.UTC().Format(time.RFC3339),
			formatTimePtr(c.ExpiresAt),
			strconv.Itoa(c.UsedCount),
			formatTimePtr(c.LastUsedAt),
			strconv.FormatBool(c.Revoked),
			c.Status(now),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
