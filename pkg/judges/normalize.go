package judges

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// VerdictEntry represents verdict table entry.
type VerdictEntry struct {
	Verdict Verdict
	// Label contains display label, empty label means raw value.
	Label string
}

// VerdictPrefix matches raw verdict values by prefix.
type VerdictPrefix struct {
	Prefix string
	Entry  VerdictEntry
}

// VerdictTable translates raw verdict values to verdicts.
//
// Table is immutable after construction.
type VerdictTable struct {
	exact    map[string]VerdictEntry
	prefixes []VerdictPrefix
}

// NewVerdictTable creates table with exact keys and ordered prefixes.
// Exact keys are checked first.
func NewVerdictTable(exact map[string]VerdictEntry, prefixes ...VerdictPrefix) VerdictTable {
	t := VerdictTable{exact: make(map[string]VerdictEntry, len(exact))}
	for key, entry := range exact {
		t.exact[foldKey(key)] = entry
	}
	for _, p := range prefixes {
		t.prefixes = append(t.prefixes, VerdictPrefix{
			Prefix: foldKey(p.Prefix), Entry: p.Entry,
		})
	}
	return t
}

// Lookup returns verdict for raw value.
func (t VerdictTable) Lookup(raw string) (VerdictEntry, error) {
	value := collapseSpaces(raw)
	key := foldKey(value)
	entry, ok := t.exact[key]
	if !ok {
		for _, p := range t.prefixes {
			if strings.HasPrefix(key, p.Prefix) {
				entry, ok = p.Entry, true
				break
			}
		}
	}
	if !ok {
		return VerdictEntry{}, parseError("unknown verdict %q", raw)
	}
	if entry.Label == "" {
		entry.Label = value
	}
	return entry, nil
}

// RowLayout describes columns of raw result rows.
//
// Negative index means that column is absent.
type RowLayout struct {
	ID, Problem, Verdict, Runtime, Memory, Time, Language, Rank, Contest int
	// LanguageCodes translates language column through label table.
	LanguageCodes bool
}

func (l RowLayout) width() int {
	w := 0
	for _, i := range []int{
		l.ID, l.Problem, l.Verdict, l.Runtime, l.Memory,
		l.Time, l.Language, l.Rank, l.Contest,
	} {
		if i+1 > w {
			w = i + 1
		}
	}
	return w
}

// Normalizer converts raw rows of single backend to records.
type Normalizer struct {
	Layout    RowLayout
	Verdicts  VerdictTable
	Languages *LanguageMapping
	// Time parses submission time.
	Time func(string) (time.Time, error)
	// Runtime parses running time, nil means missing column.
	Runtime func(string) (time.Duration, error)
	// Memory parses memory usage in kilobytes.
	Memory func(string) (int64, error)
}

// Normalize converts rows to records.
//
// Rows with unknown verdict or language codes fail with ErrParseFailure.
func (n Normalizer) Normalize(rows [][]string) ([]SubmissionRecord, error) {
	records := make([]SubmissionRecord, 0, len(rows))
	for _, row := range rows {
		record, err := n.NormalizeRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// NormalizeRow converts single row to record.
func (n Normalizer) NormalizeRow(row []string) (SubmissionRecord, error) {
	l := n.Layout
	if len(row) < l.width() {
		return SubmissionRecord{}, parseError(
			"row has %d cells, expected %d", len(row), l.width(),
		)
	}
	record := SubmissionRecord{
		ID: SubmissionID(strings.TrimSpace(row[l.ID])),
	}
	if record.ID == "" {
		return SubmissionRecord{}, parseError("row without submission id")
	}
	entry, err := n.Verdicts.Lookup(cell(row, l.Verdict))
	if err != nil {
		return SubmissionRecord{}, err
	}
	record.Verdict, record.VerdictLabel = entry.Verdict, entry.Label
	record.Problem = cell(row, l.Problem)
	record.Contest = cell(row, l.Contest)
	record.Language = cell(row, l.Language)
	if l.LanguageCodes && l.Language >= 0 {
		label, ok := n.Languages.Label(record.Language)
		if !ok {
			return SubmissionRecord{}, parseError(
				"unknown language code %q", record.Language,
			)
		}
		record.Language = label
	}
	if l.Time >= 0 && n.Time != nil {
		if record.SubmittedAt, err = n.Time(row[l.Time]); err != nil {
			return SubmissionRecord{}, err
		}
	}
	if l.Runtime >= 0 && n.Runtime != nil {
		if record.Runtime, err = n.Runtime(row[l.Runtime]); err != nil {
			return SubmissionRecord{}, err
		}
	}
	if l.Memory >= 0 && n.Memory != nil {
		if record.MemoryKB, err = n.Memory(row[l.Memory]); err != nil {
			return SubmissionRecord{}, err
		}
	}
	if l.Rank >= 0 {
		if rank, err := strconv.Atoi(cell(row, l.Rank)); err == nil && rank > 0 {
			record.Rank = rank
		}
	}
	return record, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// EpochTime parses unix time in seconds.
func EpochTime(s string) (time.Time, error) {
	sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, parseError("invalid epoch time %q", s)
	}
	return time.Unix(sec, 0).UTC(), nil
}

var relativeTimeRegexp = regexp.MustCompile(
	`^(\d+|an?)\s*(sec|second|min|minute|hour|hr|day|week)s?\s+ago$`,
)

var relativeUnits = map[string]time.Duration{
	"sec":    time.Second,
	"second": time.Second,
	"min":    time.Minute,
	"minute": time.Minute,
	"hour":   time.Hour,
	"hr":     time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// LayoutTime returns time parser that accepts absolute times in the
// given layouts and relative times like "5 min ago".
func LayoutTime(loc *time.Location, now Clock, layouts ...string) func(string) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return func(s string) (time.Time, error) {
		s = collapseSpaces(s)
		for _, layout := range layouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t.UTC(), nil
			}
		}
		if m := relativeTimeRegexp.FindStringSubmatch(strings.ToLower(s)); m != nil {
			count := 1
			if n, err := strconv.Atoi(m[1]); err == nil {
				count = n
			}
			return now().Add(-time.Duration(count) * relativeUnits[m[2]]).UTC().Truncate(time.Second), nil
		}
		return time.Time{}, parseError("invalid time %q", s)
	}
}

// Milliseconds parses integer amount of milliseconds.
func Milliseconds(s string) (time.Duration, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, parseError("invalid runtime %q", s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

var numberRegexp = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-zA-Z]*)$`)

// UnitDuration parses durations like "15 ms" or "0.02" (seconds).
func UnitDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	m := numberRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, parseError("invalid runtime %q", s)
	}
	value, _ := strconv.ParseFloat(m[1], 64)
	switch strings.ToLower(m[2]) {
	case "ms":
		return time.Duration(value * float64(time.Millisecond)), nil
	case "", "s", "sec":
		return time.Duration(value * float64(time.Second)), nil
	default:
		return 0, parseError("invalid runtime unit %q", s)
	}
}

// UnitMemory parses memory like "256 KB" or "9.2M" to kilobytes.
func UnitMemory(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0, nil
	}
	m := numberRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, parseError("invalid memory %q", s)
	}
	value, _ := strconv.ParseFloat(m[1], 64)
	switch strings.ToLower(m[2]) {
	case "", "k", "kb":
		return int64(value), nil
	case "m", "mb":
		return int64(value * 1024), nil
	case "g", "gb":
		return int64(value * 1024 * 1024), nil
	default:
		return 0, parseError("invalid memory unit %q", s)
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
