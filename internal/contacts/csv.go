// Package contacts parses uploaded contact files and partitions the result
// against the stored contact set.
package contacts

import (
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"

	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/phone"
)

// headerKeywords mark a first CSV row as a header rather than data. The
// Korean entries match the spreadsheets this tool is usually fed.
var headerKeywords = []string{"이름", "성명", "name", "전화", "번호", "phone", "tel", "mobile"}

// ParseCSV extracts (name, phone) contacts from an uploaded CSV. The content
// is decoded as UTF-8 with a CP949 fallback. A header row is detected by
// keyword and skipped. Rows need at least two columns; the phone cell is
// stripped to digits, '+' and '-' and must keep at least ten such characters.
func ParseCSV(content []byte) ([]model.Contact, error) {
	text, err := decode(content)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	hasHeader := isHeaderRow(rows[0])
	if hasHeader {
		rows = rows[1:]
	}

	var parsed []model.Contact
	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		name := strings.TrimSpace(row[0])
		rawPhone := strings.TrimSpace(row[1])
		if name == "" || rawPhone == "" {
			continue
		}

		cleaned := cleanPhone(rawPhone)
		if len(cleaned) < 10 {
			continue
		}

		rowNum := i + 1
		if hasHeader {
			rowNum++
		}
		parsed = append(parsed, model.Contact{
			Name:   name,
			Phone:  cleaned,
			Source: fmt.Sprintf("CSV row %d", rowNum),
		})
	}
	return parsed, nil
}

func decode(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	decoded, err := korean.EUCKR.NewDecoder().Bytes(content)
	if err != nil {
		return "", fmt.Errorf("file encoding not readable, save as UTF-8 or CP949: %w", err)
	}
	return string(decoded), nil
}

func isHeaderRow(row []string) bool {
	for _, cell := range row {
		lower := strings.ToLower(cell)
		for _, kw := range headerKeywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// cleanPhone keeps digits, '+' and '-'.
func cleanPhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '+' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Partition splits parsed contacts into new and duplicate against the stored
// set, by normalized phone. A phone seen earlier in the same batch also
// counts as a duplicate.
func Partition(parsed, existing []model.Contact) (fresh, dups []model.Contact) {
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[phone.Normalize(c.Phone)] = true
	}

	for _, c := range parsed {
		key := phone.Normalize(c.Phone)
		if seen[key] {
			dups = append(dups, c)
			continue
		}
		seen[key] = true
		fresh = append(fresh, c)
	}
	return fresh, dups
}
