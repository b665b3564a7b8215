// Package rosterio imports and exports the HR roster workbook. Templates are
// CSV files pre-filled from the warehouse; imports run in two stages, first
// validating every row into a list of issues, then staging full replacement
// state only when the file is clean. A workbook with any issue writes nothing.
package rosterio

import (
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ImportIssue is one row-level validation problem. Any issue rejects the
// whole batch.
type ImportIssue struct {
	Location string // input the row came from: member, repo, project, ...
	Row      int    // 1-based file row, 0 for cross-row checks
	Key      string
	Field    string
	Message  string
}

// Stats counts what an import staged. Counters are filled even when issues
// reject the batch, so a dry run still reports what would have happened.
type Stats struct {
	MemberRows         int
	SkippedNoMemberKey int
	DummyMemberKeys    int
	DepartmentsLevel2  int
	DepartmentsLevel3  int
	IdentityBindings   int
	RepoRows           int
	Projects           int
	ProjectRepoRows    int
	ProjectMemberRows  int
}

// stableID derives a deterministic id from name parts, so re-importing the
// same department or project never mints a second id.
func stableID(prefix string, parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(normKey(p)))
		h.Write([]byte{0x1f})
	}
	return prefix + "_" + hex.EncodeToString(h.Sum(nil))[:12]
}

func normKey(v string) string { return strings.ToLower(strings.TrimSpace(v)) }

var (
	idInvalid  = regexp.MustCompile(`[^a-z0-9_]+`)
	idSqueeze  = regexp.MustCompile(`_+`)
	headerStar = regexp.MustCompile(`\*$`)
)

// normID slugs a free-form id: lowercased, runs of anything outside
// [a-z0-9_] collapsed to single underscores.
func normID(v string) string {
	s := strings.ToLower(strings.TrimSpace(v))
	s = idInvalid.ReplaceAllString(s, "_")
	s = idSqueeze.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// record is one CSV data row keyed by normalized header name.
type record struct {
	row    int
	fields map[string]string
}

func (r record) get(name string) string { return strings.TrimSpace(r.fields[name]) }

// readRecords reads a workbook CSV into header-keyed rows. Headers are
// normalized (trimmed, trailing * stripped, lowercased, spaces to
// underscores) and a UTF-8 BOM on the first cell is tolerated, since the
// files round-trip through spreadsheet tools. Fully blank rows are skipped.
// Row numbers start at 2, matching what the spreadsheet shows.
func readRecords(r io.Reader, location string, required ...string) ([]record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s file: empty", location)
	}
	if err != nil {
		return nil, fmt.Errorf("%s file: %w", location, err)
	}
	head[0] = strings.TrimPrefix(head[0], "\ufeff")

	headers := make([]string, len(head))
	for i, h := range head {
		h = headerStar.ReplaceAllString(strings.TrimSpace(h), "")
		headers[i] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
	}
	have := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		have[h] = struct{}{}
	}
	for _, req := range required {
		if _, ok := have[req]; !ok {
			return nil, fmt.Errorf("%s file: missing required column %q", location, req)
		}
	}

	var out []record
	for row := 2; ; row++ {
		cols, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s file row %d: %w", location, row, err)
		}
		fields := make(map[string]string, len(headers))
		blank := true
		for i, v := range cols {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				blank = false
			}
			fields[headers[i]] = v
		}
		if blank {
			continue
		}
		out = append(out, record{row: row, fields: fields})
	}
	return out, nil
}
