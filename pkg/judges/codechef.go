package judges

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/competitive-cli/judge/internal/pkg/cache"
)

// CodeChefConfig contains configuration of CodeChef adapter.
type CodeChefConfig struct {
	// Host contains judge site URL.
	Host      string
	Languages *LanguageMapping
	Verdicts  VerdictTable
	// Status describes table of problem status page.
	Status     TableHint
	Normalizer Normalizer
	// MaxSessionLimitRetries limits amount of session limit form
	// resubmissions during login.
	MaxSessionLimitRetries int
	// ContestTTL contains lifetime of cached contest problems.
	ContestTTL time.Duration
}

var codechefLanguages = NewLanguageMapping(
	map[string]string{
		"cpp":        "44",
		"c":          "11",
		"c#":         "27",
		"go":         "114",
		"javascript": "56",
		"java":       "10",
		"php":        "29",
		"python3":    "116",
		"python2":    "4",
		"ada":        "7",
		"assembler":  "13",
		"bash":       "28",
		"ocaml":      "8",
		"clojure":    "111",
		"clips":      "14",
		"d":          "20",
		"erlang":     "36",
		"fortran":    "5",
		"f#":         "124",
		"haskell":    "21",
		"icon":       "16",
		"clisp":      "32",
		"lua":        "26",
		"nice":       "25",
		"pascal":     "22",
		"perl":       "3",
		"perl6":      "4",
		"pypy":       "99",
		"scala":      "39",
		"ruby":       "17",
		"text":       "62",
		"tcl":        "38",
		"whitespace": "6",
		// Extensions.
		".cpp": "44", ".cc": "44", ".c": "11", ".cs": "27",
		".go": "114", ".js": "56", ".java": "10", ".php": "29",
		".py": "116", ".adb": "7", ".asm": "13", ".sh": "28",
		".ml": "8", ".clj": "111", ".d": "20", ".erl": "36",
		".f": "5", ".f90": "5", ".fs": "124", ".hs": "21",
		".lisp": "32", ".lua": "26", ".pas": "22", ".pl": "3",
		".scala": "39", ".rb": "17", ".txt": "62", ".tcl": "38",
		".ws": "6",
	},
	nil,
)

var codechefVerdicts = NewVerdictTable(
	map[string]VerdictEntry{
		"":                      {Accepted, "Correct Answer"},
		"accepted":              {Accepted, ""},
		"correct answer":        {Accepted, ""},
		"compiling..":           {Pending, ""},
		"running..":             {Pending, ""},
		"waiting..":             {Pending, ""},
		"running judge..":       {Pending, ""},
		"wrong answer":          {WrongAnswer, ""},
		"compilation error":     {CompileError, ""},
		"time limit exceeded":   {TimeLimitExceeded, ""},
		"memory limit exceeded": {MemoryLimitExceeded, ""},
		"internal error":        {Unknown, ""},
		"partially accepted":    {Unknown, ""},
	},
	VerdictPrefix{"runtime error", VerdictEntry{RuntimeError, ""}},
	VerdictPrefix{"running", VerdictEntry{Pending, ""}},
	VerdictPrefix{"waiting", VerdictEntry{Pending, ""}},
	VerdictPrefix{"compiling", VerdictEntry{Pending, ""}},
	VerdictPrefix{"accepted", VerdictEntry{Accepted, ""}},
	VerdictPrefix{"wrong answer", VerdictEntry{WrongAnswer, ""}},
)

var codechefLocation = time.FixedZone("IST", 5*60*60+30*60)

// DefaultCodeChefConfig returns configuration of CodeChef.
func DefaultCodeChefConfig() CodeChefConfig {
	return CodeChefConfig{
		Host:      "https://www.codechef.com",
		Languages: codechefLanguages,
		Verdicts:  codechefVerdicts,
		Status: TableHint{
			Selector: "table.dataTable", SkipHeader: true, CellAttr: "title",
		},
		Normalizer: Normalizer{
			// Submissions row: id, time, user, problem, contest, result, language.
			Layout: RowLayout{
				ID: 0, Time: 1, Problem: 3, Contest: 4, Verdict: 5, Language: 6,
				Runtime: -1, Memory: -1, Rank: -1,
			},
			Verdicts:  codechefVerdicts,
			Languages: codechefLanguages,
		},
		MaxSessionLimitRetries: 3,
		ContestTTL:             10 * time.Minute,
	}
}

type codechefSession struct {
	adapter
	cfg      CodeChefConfig
	contests cache.Manager[string, contestProblems]
}

// NewCodeChef creates CodeChef adapter.
func NewCodeChef(cfg CodeChefConfig, deps Deps) (JudgeSession, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.Languages == nil {
		return nil, fmt.Errorf("languages are not specified")
	}
	if cfg.Normalizer.Time == nil {
		cfg.Normalizer.Time = LayoutTime(
			codechefLocation, deps.now(),
			"03:04 PM 02/01/06", "15:04 02/01/06", "2006-01-02 15:04:05",
		)
	}
	a := &codechefSession{adapter: adapter{deps: deps}, cfg: cfg}
	a.contests = cache.NewManager[string, contestProblems](contestStorage{a})
	return a, nil
}

func (a *codechefSession) Judge() Judge {
	return CodeChef
}

func (a *codechefSession) Languages() *LanguageMapping {
	return a.cfg.Languages
}

func (a *codechefSession) url(path string) string {
	return a.cfg.Host + path
}

func (a *codechefSession) Login(ctx context.Context, creds Credentials) (*Session, error) {
	page, err := a.get(ctx, a.url(""), nil)
	if err != nil {
		return nil, err
	}
	hidden, err := a.deps.Extractor.HiddenFields(page.Body)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	for name, value := range hidden {
		form.Set(name, value)
	}
	form.Set("name", creds.Username)
	form.Set("pass", creds.Password)
	form.Set("op", "Login")
	if page, err = a.post(ctx, a.url(""), form, nil); err != nil {
		return nil, err
	}
	limitURL := a.url("/session/limit")
	for retries := 0; isSameURL(page.URL, limitURL); retries++ {
		if retries >= a.cfg.MaxSessionLimitRetries {
			return nil, fmt.Errorf(
				"%w: %d attempts", ErrSessionLimitLoopExceeded, retries,
			)
		}
		fields, err := a.deps.Extractor.FormFields(page.Body)
		if err != nil {
			return nil, err
		}
		form := url.Values{}
		// First occurrence of every name wins.
		for i := len(fields) - 1; i >= 0; i-- {
			form.Set(fields[i].Name, fields[i].Value)
		}
		if page, err = a.post(ctx, limitURL, form, nil); err != nil {
			return nil, err
		}
	}
	texts, err := a.deps.Extractor.Texts(
		page.Body, fmt.Sprintf(":containsOwn(%q)", creds.Username),
	)
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

func (a *codechefSession) SubmitSolution(ctx context.Context, s *Session, req SubmitRequest) (SubmissionID, error) {
	if err := s.check(a); err != nil {
		return "", err
	}
	src, err := a.resolveSource(a.cfg.Languages, req)
	if err != nil {
		return "", err
	}
	contest, err := a.findContest(ctx, req.Problem)
	if err != nil {
		return "", err
	}
	submitURL := a.url("/submit/" + url.PathEscape(req.Problem))
	if contest != "" {
		submitURL = a.url("/" + url.PathEscape(contest) + "/submit/" + url.PathEscape(req.Problem))
	}
	page, err := a.get(ctx, submitURL, nil)
	if err != nil {
		return "", err
	}
	hidden, err := a.deps.Extractor.HiddenFields(page.Body)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	for name, value := range hidden {
		form.Set(name, value)
	}
	form.Set("language", src.language)
	form.Set("problem_code", req.Problem)
	form.Set("op", "Submit")
	page, err = a.postFile(ctx, submitURL, form, nil, "files[sourcefile]", src.path)
	if err != nil {
		return "", err
	}
	id, err := lastPathID(page.URL)
	if err != nil {
		return "", err
	}
	s.submissions[id] = &Submission{
		ID:          id,
		Problem:     req.Problem,
		Language:    src.language,
		Contest:     contest,
		File:        src.path,
		SubmittedAt: a.deps.now()(),
		Verdict:     Pending,
	}
	return id, nil
}

// findContest returns code of running contest that contains problem
// or empty string for practice problems.
func (a *codechefSession) findContest(ctx context.Context, problem string) (string, error) {
	page, err := a.get(ctx, a.url("/contests"), nil)
	if err != nil {
		return "", err
	}
	rows, err := a.deps.Extractor.TableRows(page.Body, TableHint{
		Selector: "table.dataTable", SkipHeader: true,
	})
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		code := cell(row, 0)
		if code == "" {
			continue
		}
		problems, err := a.contests.Load(ctx, code)
		if err != nil {
			return "", err
		}
		if _, ok := problems.codes[problem]; ok {
			return code, nil
		}
	}
	return "", nil
}

func (a *codechefSession) PollVerdict(ctx context.Context, s *Session, id SubmissionID) (Verdict, error) {
	if err := s.check(a); err != nil {
		return Pending, err
	}
	if v, ok := knownVerdict(s, id); ok {
		return v, nil
	}
	var rows [][]string
	verdictCell := 3
	if sub, ok := s.submissions[id]; ok && sub.Problem != "" {
		page, err := a.get(ctx, a.url("/status/"+url.PathEscape(sub.Problem)), nil)
		if err != nil {
			return Pending, err
		}
		if rows, err = a.deps.Extractor.TableRows(page.Body, a.cfg.Status); err != nil {
			return Pending, err
		}
	} else {
		var err error
		if rows, err = a.fetchSubmissions(ctx, s, HistoryFilter{}); err != nil {
			return Pending, err
		}
		verdictCell = a.cfg.Normalizer.Layout.Verdict
	}
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

func (a *codechefSession) FetchHistory(ctx context.Context, s *Session) ([]SubmissionRecord, error) {
	return a.SearchHistory(ctx, s, HistoryFilter{})
}

func (a *codechefSession) SearchHistory(
	ctx context.Context, s *Session, filter HistoryFilter,
) ([]SubmissionRecord, error) {
	if err := s.check(a); err != nil {
		return nil, err
	}
	rows, err := a.fetchSubmissions(ctx, s, filter)
	if err != nil {
		return nil, err
	}
	return a.cfg.Normalizer.Normalize(rows)
}

// submissionsQuery returns filters of submissions page, rows are
// filtered by judge.
func (a *codechefSession) submissionsQuery(filter HistoryFilter) (url.Values, error) {
	query := url.Values{}
	query.Set("pcode", filter.Problem)
	query.Set("ccode", filter.Contest)
	query.Set("year", "")
	if filter.Year != 0 {
		query.Set("year", strconv.Itoa(filter.Year))
	}
	query.Set("language", "All")
	if filter.Language != "" {
		code, err := a.cfg.Languages.Code(filter.Language)
		if err != nil {
			return nil, err
		}
		query.Set("language", code)
	}
	return query, nil
}

func (a *codechefSession) fetchSubmissions(
	ctx context.Context, s *Session, filter HistoryFilter,
) ([][]string, error) {
	query, err := a.submissionsQuery(filter)
	if err != nil {
		return nil, err
	}
	query.Set("handle", s.username)
	page, err := a.get(ctx, a.url("/submissions"), query)
	if err != nil {
		return nil, err
	}
	return a.deps.Extractor.TableRows(page.Body, a.cfg.Status)
}

// ProblemURL returns URL of problem inside running contest, if any
// contest contains it, or URL of practice problem.
func (a *codechefSession) ProblemURL(ctx context.Context, problem string) (string, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return "", fmt.Errorf("%w: empty code", ErrProblemNotFound)
	}
	contest, err := a.findContest(ctx, problem)
	if err != nil {
		return "", err
	}
	if contest != "" {
		return a.url("/" + url.PathEscape(contest) + "/problems/" + url.PathEscape(problem)), nil
	}
	return a.url("/problems/" + url.PathEscape(problem)), nil
}

// solvedSelector matches counters placed next to "Problems Solved" header.
const solvedSelector = `h3:containsOwn("Problems Solved") ~ h5, h3:containsOwn("Problems Solved") ~ * h5`

func (a *codechefSession) FetchUserStats(ctx context.Context, s *Session) (UserStats, error) {
	if err := s.check(a); err != nil {
		return UserStats{}, err
	}
	page, err := a.get(ctx, a.url("/users/"+url.PathEscape(s.username)), nil)
	if err != nil {
		return UserStats{}, err
	}
	ex := a.deps.Extractor
	solved, err := ex.Texts(page.Body, solvedSelector)
	if err != nil {
		return UserStats{}, err
	}
	if len(solved) < 2 {
		return UserStats{}, parseError("solved problems not found")
	}
	stats := UserStats{
		Judge:           CodeChef,
		Username:        s.username,
		Solved:          atoi(solved[0]),
		PartiallySolved: atoi(solved[1]),
		Extra:           map[string]string{},
	}
	if names, err := ex.Texts(page.Body, "h2"); err != nil {
		return UserStats{}, err
	} else if len(names) > 0 {
		stats.Name = names[len(names)-1]
	}
	if stats.Country, err = firstText(ex, page.Body, "span.user-country-name"); err != nil {
		return UserStats{}, err
	}
	if stats.Rating, err = firstText(ex, page.Body, "div.rating-number"); err != nil {
		return UserStats{}, err
	}
	ranks, err := ex.Texts(page.Body, "div.rating-ranks li")
	if err != nil {
		return UserStats{}, err
	}
	for i, key := range []string{"Global Rank", "Country Rank"} {
		if i < len(ranks) {
			if fields := strings.Fields(ranks[i]); len(fields) > 0 {
				stats.Extra[key] = fields[0]
			}
		}
	}
	stats.Rank = stats.Extra["Global Rank"]
	return stats, nil
}

func (a *codechefSession) Logout(ctx context.Context, s *Session) error {
	if err := s.check(a); err != nil {
		return err
	}
	defer a.logout(s)
	_, err := a.get(ctx, a.url("/logout"), nil)
	return err
}

// contestProblems contains problem codes of contest.
type contestProblems struct {
	codes    map[string]struct{}
	loadedAt time.Time
}

// contestStorage loads contest problems for cache.
type contestStorage struct {
	a *codechefSession
}

func (c contestStorage) Get(ctx context.Context, code string) (contestProblems, error) {
	page, err := c.a.get(ctx, c.a.url("/api/contests/"+url.PathEscape(code)), nil)
	if err != nil {
		return contestProblems{}, err
	}
	var resp struct {
		Problems json.RawMessage `json:"problems"`
	}
	if err := json.Unmarshal(page.Body, &resp); err != nil {
		return contestProblems{}, parseError("invalid contest %q: %v", code, err)
	}
	problems := contestProblems{
		codes:    map[string]struct{}{},
		loadedAt: c.a.deps.now()(),
	}
	var codes map[string]json.RawMessage
	// Contests without problems have an empty list instead of object.
	if err := json.Unmarshal(resp.Problems, &codes); err == nil {
		for code := range codes {
			problems.codes[code] = struct{}{}
		}
	}
	return problems, nil
}

func (c contestStorage) Actual(_ string, value contestProblems) bool {
	return c.a.deps.now()().Sub(value.loadedAt) < c.a.cfg.ContestTTL
}

// lastPathID returns numeric last segment of URL path as submission id.
func lastPathID(rawURL string) (SubmissionID, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rejectedError("invalid redirect %q", rawURL)
	}
	last := path.Base(strings.TrimRight(u.Path, "/"))
	if n, err := strconv.ParseInt(last, 10, 64); err != nil || n <= 0 {
		return "", rejectedError("redirected to %q", rawURL)
	}
	return SubmissionID(last), nil
}

func isSameURL(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

func containsText(texts []string, value string) bool {
	for _, text := range texts {
		if strings.TrimSpace(text) == value {
			return true
		}
	}
	return false
}

func firstText(ex PageExtractor, body []byte, selector string) (string, error) {
	texts, err := ex.Texts(body, selector)
	if err != nil || len(texts) == 0 {
		return "", err
	}
	return strings.TrimSpace(texts[0]), nil
}
