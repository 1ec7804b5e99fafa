package judges

import (
	"context"
	"time"
)

// Judge represents judge identity.
type Judge string

const (
	UVa        Judge = "uva"
	CodeChef   Judge = "codechef"
	Codeforces Judge = "codeforces"
)

// SubmissionID is backend-issued submission identifier.
type SubmissionID string

// Credentials contains judge account credentials.
type Credentials struct {
	Username string
	Password string
}

// Session represents authenticated state of single judge account.
//
// Session is owned by the adapter that created it and should not be
// used concurrently.
type Session struct {
	owner         JudgeSession
	judge         Judge
	username      string
	authenticated bool
	// accountID contains backend account id, if judge uses one.
	accountID   string
	submissions map[SubmissionID]*Submission
}

func newSession(owner JudgeSession, username string) *Session {
	return &Session{
		owner:       owner,
		judge:       owner.Judge(),
		username:    username,
		submissions: map[SubmissionID]*Submission{},
	}
}

// Judge returns judge of session.
func (s *Session) Judge() Judge {
	return s.judge
}

// Username returns account username.
func (s *Session) Username() string {
	return s.username
}

// Authenticated returns true if session is authenticated.
func (s *Session) Authenticated() bool {
	return s != nil && s.authenticated
}

// Submission returns submission made within session.
func (s *Session) Submission(id SubmissionID) (Submission, bool) {
	if s == nil {
		return Submission{}, false
	}
	sub, ok := s.submissions[id]
	if !ok {
		return Submission{}, false
	}
	return *sub, true
}

func (s *Session) invalidate() {
	s.authenticated = false
	s.accountID = ""
	s.submissions = map[SubmissionID]*Submission{}
}

// check returns error if session was not created by owner or is not
// authenticated.
func (s *Session) check(owner JudgeSession) error {
	if s == nil || s.owner != owner || !s.authenticated {
		return ErrAuthenticationRequired
	}
	return nil
}

// submission returns known submission or registers unknown one.
func (s *Session) submission(id SubmissionID) *Submission {
	sub, ok := s.submissions[id]
	if !ok {
		sub = &Submission{ID: id, Verdict: Pending}
		s.submissions[id] = sub
	}
	return sub
}

// Submission represents submitted solution.
type Submission struct {
	ID       SubmissionID
	Problem  string
	Language string
	Contest  string
	File     string
	// SubmittedAt contains local time of submission.
	SubmittedAt time.Time
	Verdict     Verdict
}

// setVerdict records verdict, terminal verdict is never replaced.
func (s *Submission) setVerdict(v Verdict) Verdict {
	if !s.Verdict.IsTerminal() {
		s.Verdict = v
	}
	return s.Verdict
}

// SubmissionRecord represents normalized submission row.
type SubmissionRecord struct {
	ID           SubmissionID  `json:"id"`
	Problem      string        `json:"problem"`
	Verdict      Verdict       `json:"verdict"`
	VerdictLabel string        `json:"verdict_label"`
	Runtime      time.Duration `json:"runtime"`
	MemoryKB     int64         `json:"memory_kb"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	Language     string        `json:"language"`
	Rank         int           `json:"rank,omitempty"`
	Contest      string        `json:"contest,omitempty"`
}

// UserStats represents profile statistics.
type UserStats struct {
	Judge           Judge             `json:"judge"`
	Username        string            `json:"username"`
	Name            string            `json:"name,omitempty"`
	Country         string            `json:"country,omitempty"`
	Rating          string            `json:"rating,omitempty"`
	Rank            string            `json:"rank,omitempty"`
	Solved          int               `json:"solved"`
	PartiallySolved int               `json:"partially_solved,omitempty"`
	Tried           int               `json:"tried,omitempty"`
	Submissions     int               `json:"submissions,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
}

// SubmitRequest represents solution to submit.
type SubmitRequest struct {
	// Problem contains problem identifier.
	Problem string
	// File contains path to solution, if empty file is searched
	// in SearchPath by problem identifier.
	File       string
	SearchPath string
	// Language contains optional explicit language name.
	Language string
}

// HistoryFilter selects submissions of account.
//
// Empty fields match all submissions.
type HistoryFilter struct {
	// Problem contains problem identifier in the same form as for
	// SubmitRequest.
	Problem string
	Contest string
	// Year contains year of submission.
	Year int
	// Language contains language name, extension or code.
	Language string
}

// JudgeSession represents uniform lifecycle of judge interaction.
type JudgeSession interface {
	// Judge returns judge identity.
	Judge() Judge
	// Languages returns language mapping of judge.
	Languages() *LanguageMapping
	// Login authenticates account and returns new session.
	Login(ctx context.Context, creds Credentials) (*Session, error)
	// SubmitSolution submits solution and returns submission id.
	SubmitSolution(ctx context.Context, s *Session, req SubmitRequest) (SubmissionID, error)
	// PollVerdict performs single verdict check.
	PollVerdict(ctx context.Context, s *Session, id SubmissionID) (Verdict, error)
	// FetchHistory returns submissions of account.
	FetchHistory(ctx context.Context, s *Session) ([]SubmissionRecord, error)
	// SearchHistory returns submissions of account matching filter.
	SearchHistory(ctx context.Context, s *Session, filter HistoryFilter) ([]SubmissionRecord, error)
	// ProblemURL returns URL of problem statement.
	ProblemURL(ctx context.Context, problem string) (string, error)
	// FetchUserStats returns profile statistics of account.
	FetchUserStats(ctx context.Context, s *Session) (UserStats, error)
	// Logout invalidates session.
	Logout(ctx context.Context, s *Session) error
}
