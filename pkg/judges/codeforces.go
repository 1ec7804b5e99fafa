package judges

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// CodeforcesConfig contains configuration of Codeforces adapter.
type CodeforcesConfig struct {
	// Host contains judge site URL.
	Host string
	// UserAgent is sent with login request.
	UserAgent string
	Languages *LanguageMapping
	Verdicts  VerdictTable
	// Submissions describes table of user submissions page.
	Submissions TableHint
	Normalizer  Normalizer
}

var codeforcesLanguages = NewLanguageMapping(
	map[string]string{
		".rb":    "8",
		".cpp":   "50",
		".c":     "50",
		".py":    "31",
		".php":   "6",
		".go":    "32",
		".js":    "34",
		".java":  "36",
		".pas":   "4",
		".rs":    "49",
		".rslib": "49",
		".scala": "20",
		".sc":    "20",
		".hs":    "12",
		".lhs":   "12",
		".cs":    "29",
		".ml":    "19",
		".mli":   "19",
		".kt":    "48",
		".kts":   "48",
	},
	map[string]string{
		"10": "GNU GCC 5.1.0",
		"43": "GNU GCC C11 5.10",
		"1":  "GNU G++ 5.1.0",
		"42": "GNU G++11 5.1.0",
		"50": "GNU G++14 6.2.0",
		"2":  "Microsoft Visual C++ 2010",
		"9":  "C# Mono 3.12.1.0",
		"29": "MS C# .NET 4.0.30319",
		"28": "D DMD32 v2.071.2",
		"32": "Go 1.7.3",
		"12": "Haskell GHC 7.8.3",
		"36": "Java 1.8.0_112",
		"48": "Kotlin 1.0.5-2",
		"19": "OCaml 4.02.1",
		"3":  "Delphi 7",
		"4":  "Free Pascal 2.6.4",
		"13": "Perl 5.20.1",
		"6":  "PHP 7.0.12",
		"7":  "Python 2.7.12",
		"31": "Python 3.5.2",
		"40": "PyPy 2.7.10 (2.6.1)",
		"41": "PyPy 3.2.5 (2.4.0)",
		"8":  "Ruby 2.0.0p645",
		"49": "Rust 1.12.1",
		"20": "Scala 2.11.8",
		"34": "Javascript V8 4.8.0",
	},
)

var codeforcesVerdicts = NewVerdictTable(
	nil,
	VerdictPrefix{"accepted", VerdictEntry{Accepted, ""}},
	VerdictPrefix{"perfect result", VerdictEntry{Accepted, ""}},
	VerdictPrefix{"pretests passed", VerdictEntry{Accepted, ""}},
	VerdictPrefix{"happy new year", VerdictEntry{Accepted, ""}},
	VerdictPrefix{"wrong answer", VerdictEntry{WrongAnswer, ""}},
	VerdictPrefix{"time limit exceeded", VerdictEntry{TimeLimitExceeded, ""}},
	VerdictPrefix{"memory limit exceeded", VerdictEntry{MemoryLimitExceeded, ""}},
	VerdictPrefix{"runtime error", VerdictEntry{RuntimeError, ""}},
	VerdictPrefix{"compilation error", VerdictEntry{CompileError, ""}},
	VerdictPrefix{"presentation error", VerdictEntry{PresentationError, ""}},
	VerdictPrefix{"security violated", VerdictEntry{RestrictedFunction, ""}},
	VerdictPrefix{"running", VerdictEntry{Pending, ""}},
	VerdictPrefix{"in queue", VerdictEntry{Pending, ""}},
	VerdictPrefix{"pending", VerdictEntry{Pending, ""}},
	VerdictPrefix{"testing", VerdictEntry{Pending, ""}},
	VerdictPrefix{"judging", VerdictEntry{Pending, ""}},
	VerdictPrefix{"idleness limit exceeded", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"output limit exceeded", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"partial result", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"hacked", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"skipped", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"challenged", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"denial of judgement", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"rejected", VerdictEntry{Unknown, ""}},
	VerdictPrefix{"failed", VerdictEntry{Unknown, ""}},
)

var codeforcesLocation = time.FixedZone("MSK", 3*60*60)

// DefaultCodeforcesConfig returns configuration of Codeforces.
func DefaultCodeforcesConfig() CodeforcesConfig {
	return CodeforcesConfig{
		Host: "http://codeforces.com",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/59.0.3071.115 Safari/537.36",
		Languages: codeforcesLanguages,
		Verdicts:  codeforcesVerdicts,
		Submissions: TableHint{
			Selector: "table.status-frame-datatable", SkipHeader: true,
		},
		Normalizer: Normalizer{
			// Submissions row: id, when, who, problem, language, verdict, time, memory.
			Layout: RowLayout{
				ID: 0, Time: 1, Problem: 3, Language: 4, Verdict: 5,
				Runtime: 6, Memory: 7, Rank: -1, Contest: -1,
			},
			Verdicts:  codeforcesVerdicts,
			Languages: codeforcesLanguages,
			Runtime:   UnitDuration,
			Memory:    UnitMemory,
		},
	}
}

type codeforcesSession struct {
	adapter
	cfg CodeforcesConfig
}

// NewCodeforces creates Codeforces adapter.
func NewCodeforces(cfg CodeforcesConfig, deps Deps) (JudgeSession, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.Languages == nil {
		return nil, fmt.Errorf("languages are not specified")
	}
	if cfg.Normalizer.Time == nil {
		cfg.Normalizer.Time = LayoutTime(
			codeforcesLocation, deps.now(), "Jan/02/2006 15:04",
		)
	}
	return &codeforcesSession{adapter: adapter{deps: deps}, cfg: cfg}, nil
}

func (a *codeforcesSession) Judge() Judge {
	return Codeforces
}

func (a *codeforcesSession) Languages() *LanguageMapping {
	return a.cfg.Languages
}

func (a *codeforcesSession) url(path string) string {
	return a.cfg.Host + path
}

func (a *codeforcesSession) profileSelector(username string) string {
	return fmt.Sprintf(`a[href="/profile/%s"]`, username)
}

func (a *codeforcesSession) Login(ctx context.Context, creds Credentials) (*Session, error) {
	loginURL := a.url("/enter?back=%2F")
	page, err := a.get(ctx, loginURL, nil)
	if err != nil {
		return nil, err
	}
	hidden, err := a.deps.Extractor.HiddenFields(page.Body)
	if err != nil {
		return nil, err
	}
	if hidden["csrf_token"] == "" {
		return nil, parseError("login form without csrf token")
	}
	form := url.Values{}
	form.Set("csrf_token", hidden["csrf_token"])
	form.Set("action", "enter")
	form.Set("ftaa", hidden["ftaa"])
	form.Set("bfaa", hidden["bfaa"])
	form.Set("handle", creds.Username)
	form.Set("password", creds.Password)
	form.Set("remember", "on")
	form.Set("_tta", "")
	page, err = a.post(ctx, loginURL, form, headers(
		"Origin", a.cfg.Host,
		"Referer", loginURL,
		"User-Agent", a.cfg.UserAgent,
	))
	if err != nil {
		return nil, err
	}
	texts, err := a.deps.Extractor.Texts(page.Body, a.profileSelector(creds.Username))
	if err != nil {
		return nil, err
	}
	if !containsText(texts, creds.Username) {
		return nil, fmt.Errorf("%w: user %q", ErrAuthenticationFailed, creds.Username)
	}
	s := newSession(a, creds.Username)
	s.authenticated = true
	return s, nil
}

func (a *codeforcesSession) SubmitSolution(ctx context.Context, s *Session, req SubmitRequest) (SubmissionID, error) {
	if err := s.check(a); err != nil {
		return "", err
	}
	src, err := a.resolveSource(a.cfg.Languages, req)
	if err != nil {
		return "", err
	}
	submitURL := a.url("/problemset/submit")
	page, err := a.get(ctx, submitURL, nil)
	if err != nil {
		return "", err
	}
	fields, err := a.deps.Extractor.FormFields(page.Body)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	for _, name := range []string{"csrf_token", "ftaa", "bfaa"} {
		form.Set(name, fieldValue(fields, name))
	}
	tabSize := fieldValue(fields, "tabsize")
	if tabSize == "" {
		tabSize = "4"
	}
	form.Set("action", "submitSolutionFormSubmitted")
	form.Set("submittedProblemCode", req.Problem)
	form.Set("programTypeId", src.language)
	form.Set("source", "")
	form.Set("tabsize", tabSize)
	form.Set("_tta", "")
	page, err = a.postFile(ctx, submitURL, form, headers(
		"Origin", a.cfg.Host,
		"Referer", submitURL,
	), "sourceFile", src.path)
	if err != nil {
		return "", err
	}
	if !isStatusURL(page.URL) {
		msg := page.URL
		if errs, err := a.deps.Extractor.Texts(page.Body, "span.error"); err == nil && len(errs) > 0 {
			msg = strings.Join(errs, "; ")
		}
		return "", rejectedError("%s", msg)
	}
	rows, err := a.fetchSubmissions(ctx, s)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || cell(rows[0], 0) == "" {
		return "", parseError("submission not found in status table")
	}
	id := SubmissionID(cell(rows[0], 0))
	s.submissions[id] = &Submission{
		ID:          id,
		Problem:     req.Problem,
		Language:    src.language,
		File:        src.path,
		SubmittedAt: a.deps.now()(),
		Verdict:     Pending,
	}
	return id, nil
}

func isStatusURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/problemset/status")
}

func (a *codeforcesSession) PollVerdict(ctx context.Context, s *Session, id SubmissionID) (Verdict, error) {
	if err := s.check(a); err != nil {
		return Pending, err
	}
	if v, ok := knownVerdict(s, id); ok {
		return v, nil
	}
	rows, err := a.fetchSubmissions(ctx, s)
	if err != nil {
		return Pending, err
	}
	verdictCell := a.cfg.Normalizer.Layout.Verdict
	for _, row := range rows {
		if cell(row, 0) != string(id) {
			continue
		}
		if len(row) <= verdictCell {
			return Pending, parseError("status row has %d cells", len(row))
		}
		entry, err := a.cfg.Verdicts.Lookup(row[verdictCell])
		if err != nil {
			return Pending, err
		}
		return s.submission(id).setVerdict(entry.Verdict), nil
	}
	return Pending, nil
}

func (a *codeforcesSession) FetchHistory(ctx context.Context, s *Session) ([]SubmissionRecord, error) {
	if err := s.check(a); err != nil {
		return nil, err
	}
	rows, err := a.fetchSubmissions(ctx, s)
	if err != nil {
		return nil, err
	}
	return a.cfg.Normalizer.Normalize(rows)
}

func (a *codeforcesSession) SearchHistory(
	ctx context.Context, s *Session, filter HistoryFilter,
) ([]SubmissionRecord, error) {
	records, err := a.FetchHistory(ctx, s)
	if err != nil {
		return nil, err
	}
	return filterRecords(a.cfg.Languages, records, filter), nil
}

// codeforcesProblemRegexp matches problem identifiers like "4A" or "1352G2".
var codeforcesProblemRegexp = regexp.MustCompile(`^(\d+)([A-Za-z]\d?)$`)

func (a *codeforcesSession) ProblemURL(_ context.Context, problem string) (string, error) {
	m := codeforcesProblemRegexp.FindStringSubmatch(strings.TrimSpace(problem))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrProblemNotFound, problem)
	}
	return a.url("/problemset/problem/" + m[1] + "/" + strings.ToUpper(m[2])), nil
}

func (a *codeforcesSession) fetchSubmissions(ctx context.Context, s *Session) ([][]string, error) {
	page, err := a.get(ctx, a.url("/submissions/"+url.PathEscape(s.username)), nil)
	if err != nil {
		return nil, err
	}
	return a.deps.Extractor.TableRows(page.Body, a.cfg.Submissions)
}

func (a *codeforcesSession) FetchUserStats(ctx context.Context, s *Session) (UserStats, error) {
	if err := s.check(a); err != nil {
		return UserStats{}, err
	}
	page, err := a.get(ctx, a.url("/profile/"+url.PathEscape(s.username)), nil)
	if err != nil {
		return UserStats{}, err
	}
	stats := UserStats{
		Judge:    Codeforces,
		Username: s.username,
		Extra:    map[string]string{},
	}
	if stats.Rank, err = firstText(a.deps.Extractor, page.Body, "div.info div.user-rank"); err != nil {
		return UserStats{}, err
	}
	items, err := a.deps.Extractor.Texts(page.Body, "div.info li")
	if err != nil {
		return UserStats{}, err
	}
	for _, item := range items {
		key, value, ok := strings.Cut(collapseSpaces(item), ":")
		if !ok {
			continue
		}
		stats.Extra[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if rating, ok := stats.Extra["Contest rating"]; ok {
		if fields := strings.Fields(rating); len(fields) > 0 {
			stats.Rating = fields[0]
		}
	}
	records, err := a.FetchHistory(ctx, s)
	if err != nil {
		return UserStats{}, err
	}
	solved := map[string]struct{}{}
	for _, record := range records {
		if record.Verdict == Accepted {
			solved[record.Problem] = struct{}{}
		}
	}
	stats.Solved = len(solved)
	stats.Submissions = len(records)
	return stats, nil
}

func (a *codeforcesSession) Logout(ctx context.Context, s *Session) error {
	if err := s.check(a); err != nil {
		return err
	}
	defer a.logout(s)
	page, err := a.get(ctx, a.url("/"), nil)
	if err != nil {
		return err
	}
	links, err := a.deps.Extractor.Attrs(page.Body, a.profileSelector(s.username)+" + a", "href")
	if err != nil {
		return err
	}
	if len(links) == 0 || links[0] == "" {
		return parseError("logout link not found")
	}
	link := links[0]
	if !strings.HasPrefix(link, "http") {
		link = a.url(link)
	}
	_, err = a.get(ctx, link, nil)
	return err
}

// fieldValue returns value of first field with the name, names are
// compared case-insensitively.
func fieldValue(fields []Field, name string) string {
	for _, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}
