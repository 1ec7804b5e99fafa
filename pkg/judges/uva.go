package judges

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/competitive-cli/judge/internal/pkg/cache"
)

// UVaConfig contains configuration of UVa adapter.
type UVaConfig struct {
	// Host contains judge site URL.
	Host string
	// UHunt contains uHunt API URL used for verdicts.
	UHunt      string
	Languages  *LanguageMapping
	Verdicts   VerdictTable
	Normalizer Normalizer
}

var uvaLanguages = NewLanguageMapping(
	map[string]string{
		".c": "1", "c": "1",
		".java": "2", "java": "2",
		".cpp": "5", "c++": "5", "c++11": "5",
		".pas": "4", "pascal": "4",
		".py": "6", "python": "6",
		"c++03": "3", "c++98": "3",
	},
	map[string]string{
		"1": "ANSI C",
		"2": "Java",
		"3": "C++",
		"4": "Pascal",
		"5": "C++11",
		"6": "Python",
	},
)

var uvaVerdicts = NewVerdictTable(map[string]VerdictEntry{
	"0":  {Pending, "In queue"},
	"10": {Unknown, "Submission error"},
	"15": {Unknown, "Can't be judged"},
	"20": {Pending, "In queue"},
	"30": {CompileError, "Compile error"},
	"35": {RestrictedFunction, "Restricted function"},
	"40": {RuntimeError, "Runtime error"},
	"45": {Unknown, "Output limit"},
	"50": {TimeLimitExceeded, "Time limit"},
	"60": {MemoryLimitExceeded, "Memory limit"},
	"70": {WrongAnswer, "Wrong answer"},
	"80": {PresentationError, "PresentationE"},
	"90": {Accepted, "Accepted"},
})

// DefaultUVaConfig returns configuration of UVa Online Judge.
func DefaultUVaConfig() UVaConfig {
	return UVaConfig{
		Host:      "https://uva.onlinejudge.org",
		UHunt:     "http://uhunt.felix-halim.net/api",
		Languages: uvaLanguages,
		Verdicts:  uvaVerdicts,
		Normalizer: Normalizer{
			// uHunt row: id, problem, verdict, runtime, time, language, rank.
			Layout: RowLayout{
				ID: 0, Problem: 1, Verdict: 2, Runtime: 3, Time: 4,
				Language: 5, Rank: 6, Memory: -1, Contest: -1,
				LanguageCodes: true,
			},
			Verdicts:  uvaVerdicts,
			Languages: uvaLanguages,
			Time:      EpochTime,
			Runtime:   Milliseconds,
		},
	}
}

type uvaSession struct {
	adapter
	cfg      UVaConfig
	problems cache.Manager[string, uvaProblem]
}

// NewUVa creates UVa adapter.
func NewUVa(cfg UVaConfig, deps Deps) (JudgeSession, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg.Languages == nil {
		return nil, fmt.Errorf("languages are not specified")
	}
	a := &uvaSession{adapter: adapter{deps: deps}, cfg: cfg}
	a.problems = cache.NewManager[string, uvaProblem](uvaProblemStorage{a})
	return a, nil
}

func (a *uvaSession) Judge() Judge {
	return UVa
}

func (a *uvaSession) Languages() *LanguageMapping {
	return a.cfg.Languages
}

func (a *uvaSession) url(path string) string {
	return a.cfg.Host + path
}

func (a *uvaSession) Login(ctx context.Context, creds Credentials) (*Session, error) {
	page, err := a.get(ctx, a.url("/"), nil)
	if err != nil {
		return nil, err
	}
	hidden, err := a.deps.Extractor.HiddenFields(page.Body)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	for name, value := range hidden {
		if name == "cx" || name == "ie" {
			continue
		}
		form.Set(name, value)
	}
	form.Set("username", creds.Username)
	form.Set("passwd", creds.Password)
	form.Set("remember", "yes")
	page, err = a.post(
		ctx, a.url("/index.php?option=com_comprofiler&task=login"), form,
		headers("Referer", a.url("/")),
	)
	if err != nil {
		return nil, err
	}
	if hidden, err = a.deps.Extractor.HiddenFields(page.Body); err != nil {
		return nil, err
	}
	if hidden["op2"] != "logout" {
		return nil, fmt.Errorf("%w: user %q", ErrAuthenticationFailed, creds.Username)
	}
	page, err = a.get(ctx, a.cfg.UHunt+"/uname2uid/"+url.PathEscape(creds.Username), nil)
	if err != nil {
		return nil, err
	}
	uid := strings.TrimSpace(string(page.Body))
	n, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return nil, parseError("invalid uHunt user id %q", uid)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: unknown uHunt user %q", ErrAuthenticationFailed, creds.Username)
	}
	s := newSession(a, creds.Username)
	s.accountID = uid
	s.authenticated = true
	return s, nil
}

var uvaSubmissionIDRegexp = regexp.MustCompile(`ID[+ ]?(\d+)`)

func (a *uvaSession) SubmitSolution(ctx context.Context, s *Session, req SubmitRequest) (SubmissionID, error) {
	if err := s.check(a); err != nil {
		return "", err
	}
	src, err := a.resolveSource(a.cfg.Languages, req)
	if err != nil {
		return "", err
	}
	code, err := readSource(src.path)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("localid", req.Problem)
	form.Set("code", code)
	form.Set("language", src.language)
	form.Set("codeupl", "")
	form.Set("problemid", "")
	form.Set("category", "")
	form.Set("submit", "Submit")
	page, err := a.post(
		ctx, a.url("/index.php?option=com_onlinejudge&Itemid=25&page=save_submission"), form,
		headers(
			"Referer", a.url("/index.php?option=com_onlinejudge&Itemid=25"),
			"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Origin", a.cfg.Host,
		),
	)
	if err != nil {
		return "", err
	}
	target, err := url.QueryUnescape(page.URL)
	if err != nil {
		target = page.URL
	}
	m := uvaSubmissionIDRegexp.FindStringSubmatch(target)
	if m == nil {
		msg := target
		if u, err := url.Parse(page.URL); err == nil && u.Query().Get("mosmsg") != "" {
			msg = u.Query().Get("mosmsg")
		}
		return "", rejectedError("%s", msg)
	}
	id := SubmissionID(m[1])
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

func (a *uvaSession) PollVerdict(ctx context.Context, s *Session, id SubmissionID) (Verdict, error) {
	if err := s.check(a); err != nil {
		return Pending, err
	}
	if v, ok := knownVerdict(s, id); ok {
		return v, nil
	}
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return Pending, parseError("invalid submission id %q", id)
	}
	rows, err := a.fetchSubmissions(ctx, s, strconv.FormatInt(n-1, 10))
	if err != nil {
		return Pending, err
	}
	for _, row := range rows {
		if len(row) < 3 || row[0] != string(id) {
			continue
		}
		entry, err := a.cfg.Verdicts.Lookup(row[2])
		if err != nil {
			return Pending, err
		}
		return s.submission(id).setVerdict(entry.Verdict), nil
	}
	return Pending, nil
}

func (a *uvaSession) FetchHistory(ctx context.Context, s *Session) ([]SubmissionRecord, error) {
	if err := s.check(a); err != nil {
		return nil, err
	}
	rows, err := a.fetchSubmissions(ctx, s, "")
	if err != nil {
		return nil, err
	}
	return a.cfg.Normalizer.Normalize(rows)
}

func (a *uvaSession) SearchHistory(
	ctx context.Context, s *Session, filter HistoryFilter,
) ([]SubmissionRecord, error) {
	if err := s.check(a); err != nil {
		return nil, err
	}
	if filter.Problem == "" {
		records, err := a.FetchHistory(ctx, s)
		if err != nil {
			return nil, err
		}
		return filterRecords(a.cfg.Languages, records, filter), nil
	}
	problem, err := a.problems.Load(ctx, filter.Problem)
	if err != nil {
		return nil, err
	}
	pid := strconv.FormatInt(problem.ID, 10)
	page, err := a.get(ctx, a.cfg.UHunt+"/subs-pids/"+s.accountID+"/"+pid, nil)
	if err != nil {
		return nil, err
	}
	var resp map[string]uhuntSubs
	if err := decodeUHunt(page.Body, &resp); err != nil {
		return nil, err
	}
	rows := resp[s.accountID].rows()
	// Rows contain internal problem id instead of number.
	for _, row := range rows {
		if len(row) > 1 {
			row[1] = filter.Problem
		}
	}
	records, err := a.cfg.Normalizer.Normalize(rows)
	if err != nil {
		return nil, err
	}
	return filterRecords(a.cfg.Languages, records, filter), nil
}

// ProblemURL returns URL of problem page, problem is identified by
// its number, for example "100".
func (a *uvaSession) ProblemURL(ctx context.Context, problem string) (string, error) {
	p, err := a.problems.Load(ctx, problem)
	if err != nil {
		return "", err
	}
	query := url.Values{}
	query.Set("option", "com_onlinejudge")
	query.Set("Itemid", "8")
	query.Set("page", "show_problem")
	query.Set("problem", strconv.FormatInt(p.ID, 10))
	return a.url("/index.php?" + query.Encode()), nil
}

// fetchSubmissions returns uHunt rows with ids greater than minID.
func (a *uvaSession) fetchSubmissions(ctx context.Context, s *Session, minID string) ([][]string, error) {
	path := a.cfg.UHunt + "/subs-user/" + s.accountID
	if minID != "" {
		path += "/" + minID
	}
	page, err := a.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var resp uhuntSubs
	if err := decodeUHunt(page.Body, &resp); err != nil {
		return nil, err
	}
	return resp.rows(), nil
}

// uhuntSubs represents submissions of single uHunt user.
type uhuntSubs struct {
	Subs [][]json.Number `json:"subs"`
}

func (r uhuntSubs) rows() [][]string {
	rows := make([][]string, 0, len(r.Subs))
	for _, sub := range r.Subs {
		row := make([]string, len(sub))
		for i, v := range sub {
			row[i] = v.String()
		}
		rows = append(rows, row)
	}
	return rows
}

func decodeUHunt(body []byte, resp any) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(resp); err != nil {
		return parseError("invalid uHunt response: %v", err)
	}
	return nil
}

// uvaProblem represents uHunt problem.
type uvaProblem struct {
	// ID contains internal problem id used by judge pages.
	ID    int64  `json:"pid"`
	Num   int64  `json:"num"`
	Title string `json:"title"`
}

// uvaProblemStorage resolves problem numbers with uHunt.
//
// Problem ids never change, so loaded problems are always actual.
type uvaProblemStorage struct {
	a *uvaSession
}

func (p uvaProblemStorage) Get(ctx context.Context, num string) (uvaProblem, error) {
	num = strings.TrimSpace(num)
	if n, err := strconv.ParseInt(num, 10, 64); err != nil || n <= 0 {
		return uvaProblem{}, fmt.Errorf("%w: %q", ErrProblemNotFound, num)
	}
	page, err := p.a.get(ctx, p.a.cfg.UHunt+"/p/num/"+num, nil)
	if err != nil {
		return uvaProblem{}, err
	}
	var problem uvaProblem
	// Unknown problems are returned as empty object.
	if trimmed := bytes.TrimSpace(page.Body); len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &problem); err != nil {
			return uvaProblem{}, parseError("invalid uHunt problem %q: %v", num, err)
		}
	}
	if problem.ID <= 0 {
		return uvaProblem{}, fmt.Errorf("%w: %q", ErrProblemNotFound, num)
	}
	return problem, nil
}

func (p uvaProblemStorage) Actual(string, uvaProblem) bool {
	return true
}

var uvaStatsHeadings = []string{"submissions", "Tried", "Solved", "First Sub", "Last Sub"}

func (a *uvaSession) FetchUserStats(ctx context.Context, s *Session) (UserStats, error) {
	if err := s.check(a); err != nil {
		return UserStats{}, err
	}
	page, err := a.get(ctx, a.url("/index.php?option=com_onlinejudge&Itemid=15"), nil)
	if err != nil {
		return UserStats{}, err
	}
	rows, err := a.deps.Extractor.TableRows(page.Body, TableHint{Selector: "table", Index: 2})
	if err != nil {
		return UserStats{}, err
	}
	if len(rows) == 0 || len(rows[0]) < len(uvaStatsHeadings) {
		return UserStats{}, parseError("statistics table not found")
	}
	stats := UserStats{
		Judge:    UVa,
		Username: s.username,
		Extra:    map[string]string{},
	}
	for i, heading := range uvaStatsHeadings {
		stats.Extra[heading] = rows[0][i]
	}
	stats.Submissions = atoi(rows[0][0])
	stats.Tried = atoi(rows[0][1])
	stats.Solved = atoi(rows[0][2])
	page, err = a.get(ctx, a.url("/index.php?option=com_comprofiler&Itemid=3"), nil)
	if err != nil {
		return UserStats{}, err
	}
	rows, err = a.deps.Extractor.TableRows(page.Body, TableHint{Selector: "table", Index: 3})
	if err != nil {
		return UserStats{}, err
	}
	var cells []string
	for _, row := range rows {
		cells = append(cells, row...)
	}
	for i := 0; i+1 < len(cells); i += 2 {
		key := strings.TrimSuffix(strings.TrimSpace(cells[i]), ":")
		if key != "" {
			stats.Extra[key] = cells[i+1]
		}
	}
	stats.Name = stats.Extra["Name"]
	stats.Country = stats.Extra["Country"]
	return stats, nil
}

func (a *uvaSession) Logout(ctx context.Context, s *Session) error {
	if err := s.check(a); err != nil {
		return err
	}
	defer a.logout(s)
	_, err := a.get(ctx, a.url("/index.php?option=com_comprofiler&task=logout"), nil)
	return err
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.Join(digitsRegexp.FindAllString(s, -1), ""))
	return n
}

var digitsRegexp = regexp.MustCompile(`\d+`)
