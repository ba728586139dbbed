package session

import (
	"fmt"
	"regexp"
	"strings"

	"smsbridge-backend/internal/model"
	"smsbridge-backend/internal/phone"
)

// Field names a grid cell.
type Field string

const (
	FieldName  Field = "name"
	FieldPhone Field = "phone"
)

// Row is one draft (name, phone) input pair in the bulk-entry table. Rows are
// transient input buffers, not yet validated contacts.
type Row struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Grid is the bulk-entry table. It always holds at least one row.
type Grid struct {
	rows []Row
}

func NewGrid() *Grid {
	return &Grid{rows: []Row{{}}}
}

func (g *Grid) AddRow() int {
	g.rows = append(g.rows, Row{})
	return len(g.rows) - 1
}

func (g *Grid) SetCell(row int, field Field, value string) bool {
	if row < 0 || row >= len(g.rows) {
		return false
	}
	switch field {
	case FieldName:
		g.rows[row].Name = value
	case FieldPhone:
		g.rows[row].Phone = value
	default:
		return false
	}
	return true
}

func (g *Grid) Rows() []Row {
	out := make([]Row, len(g.rows))
	copy(out, g.rows)
	return out
}

// Reset drops all rows, leaving a single blank one.
func (g *Grid) Reset() {
	g.rows = []Row{{}}
}

var multiSpace = regexp.MustCompile(`  +`)

// Paste interprets clipboard text dropped on the cell (row, field). Text with
// neither a tab nor a newline is placed verbatim into the target cell and
// parsed reports false. Tabular text is split into (name, phone) lines: the
// first valid line fills the row the paste landed in, every further valid
// line appends a new row. applied is how many lines became rows; the caller
// surfaces the count or a "no valid rows" notice.
//
// Only a coarse >=10-digit filter is applied here; full numbering-plan
// validation happens at submission.
func (g *Grid) Paste(row int, field Field, text string) (applied int, parsed bool) {
	if row < 0 || row >= len(g.rows) {
		return 0, false
	}

	if !strings.ContainsAny(text, "\t\n") {
		g.SetCell(row, field, text)
		return 0, false
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		tokens := splitLine(line)
		if len(tokens) < 2 {
			continue
		}

		name := strings.Join(tokens[:len(tokens)-1], " ")
		candidate := cleanPhoneCandidate(tokens[len(tokens)-1])
		if len(phone.Normalize(candidate)) < 10 {
			continue
		}

		target := row
		if applied > 0 {
			target = g.AddRow()
		}
		g.rows[target].Name = name
		g.rows[target].Phone = candidate
		applied++
	}
	return applied, true
}

// splitLine tokenizes one pasted line: by tab when one is present, else by
// runs of two or more spaces, else by single whitespace runs. A line with a
// tab is never re-split on spaces.
func splitLine(line string) []string {
	var parts []string
	switch {
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	case multiSpace.MatchString(line):
		parts = multiSpace.Split(line, -1)
	default:
		return strings.Fields(line)
	}

	tokens := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

// cleanPhoneCandidate keeps digits and hyphens only.
func cleanPhoneCandidate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if (s[i] >= '0' && s[i] <= '9') || s[i] == '-' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// RowError is a recoverable validation failure tied to one grid row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return e.Message
}

// Validate checks the grid for submission: fully blank rows are skipped, a
// row with only one of the two fields filled is an error, and phones must
// pass the numbering plan. All row errors are collected; any error means the
// whole submission is rejected.
func (g *Grid) Validate(plan phone.Plan) ([]model.Contact, []RowError) {
	var drafts []model.Contact
	var errs []RowError

	for i, r := range g.rows {
		name := strings.TrimSpace(r.Name)
		num := strings.TrimSpace(r.Phone)

		if name == "" && num == "" {
			continue
		}
		if name == "" || num == "" {
			errs = append(errs, RowError{Row: i + 1, Message: fmt.Sprintf("row %d: both fields required", i+1)})
			continue
		}
		if !plan.Valid(num) {
			errs = append(errs, RowError{Row: i + 1, Message: fmt.Sprintf("row %d: invalid phone number %q", i+1, num)})
			continue
		}
		drafts = append(drafts, model.Contact{Name: name, Phone: num})
	}
	return drafts, errs
}
