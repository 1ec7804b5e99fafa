package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/competitive-cli/judge/internal/config"
	"github.com/competitive-cli/judge/internal/core"
	"github.com/competitive-cli/judge/internal/history"
	"github.com/competitive-cli/judge/pkg/judges"
)

func testConfigFile(tb testing.TB) (string, config.Config) {
	dir := tb.TempDir()
	cfg := config.Config{
		LogLevel:  config.LogLevel(log.ERROR),
		SourceDir: dir,
		Judges: map[string]config.Account{
			"codeforces": {Username: "alice", Password: "secret"},
		},
		History: &config.DB{
			Options: config.SQLiteOptions{Path: filepath.Join(dir, "history.db")},
		},
	}
	file := filepath.Join(dir, "judge.json")
	data, err := json.Marshal(cfg)
	if err != nil {
		tb.Fatal("Error:", err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		tb.Fatal("Error:", err)
	}
	return file, cfg
}

func testExecute(tb testing.TB, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestResolveFile(t *testing.T) {
	file, _ := testConfigFile(t)
	missing := filepath.Join(t.TempDir(), "missing.json")
	resolved, err := resolveFile("", missing, file)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, resolved, file)
	if _, err := resolveFile(missing); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected %v, got %v", os.ErrNotExist, err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	file, _ := testConfigFile(t)
	t.Setenv("JUDGE_CONFIG", file)
	missing := filepath.Join(t.TempDir(), "missing.json")
	out, err := testExecute(t, "--config", missing, "history", "codeforces", "--local")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.Contains(out, "Verdict"), true)
}

func TestMissingConfig(t *testing.T) {
	t.Setenv("JUDGE_CONFIG", "")
	missing := filepath.Join(t.TempDir(), "missing.json")
	_, err := testExecute(t, "--config", missing, "history", "codeforces", "--local")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Expected %v, got %v", os.ErrNotExist, err)
	}
}

func TestJudgesCommand(t *testing.T) {
	out, err := testExecute(t, "judges")
	if err != nil {
		t.Fatal("Error:", err)
	}
	for _, judge := range judges.Judges() {
		testExpect(t, strings.Contains(out, string(judge)), true)
	}
}

func TestLanguagesCommand(t *testing.T) {
	out, err := testExecute(t, "languages", "codeforces")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.Contains(out, "GNU G++14 6.2.0"), true)
	testExpect(t, strings.Contains(out, ".cpp"), true)
	if _, err := testExecute(t, "languages", "timus"); err == nil {
		t.Fatal("Expected error")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := testExecute(t, "version")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.TrimSpace(out), "judge version: "+config.Version)
}

func TestLocalHistoryCommand(t *testing.T) {
	file, cfg := testConfigFile(t)
	conn, err := cfg.History.Create()
	if err != nil {
		t.Fatal("Error:", err)
	}
	store := history.NewStore(conn, nil)
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatal("Error:", err)
	}
	if err := store.SaveRecords(ctx, judges.Codeforces, "alice", []judges.SubmissionRecord{
		{
			ID:           "250000001",
			Problem:      "1A - Theatre Square",
			Verdict:      judges.WrongAnswer,
			VerdictLabel: "Wrong answer on test 2",
			Runtime:      46 * time.Millisecond,
			SubmittedAt:  time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
			Language:     "Python 3.5.2",
		},
	}); err != nil {
		t.Fatal("Error:", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal("Error:", err)
	}
	out, err := testExecute(t, "--config", file, "history", "codeforces", "--local")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.Contains(out, "250000001"), true)
	testExpect(t, strings.Contains(out, "Wrong answer on test 2"), true)
	testExpect(t, strings.Contains(out, "46 ms"), true)
	_, err = testExecute(t, "--config", file, "history", "uva", "--local")
	if err == nil {
		t.Fatal("Expected error")
	}
}

func TestSubmitArgs(t *testing.T) {
	if _, err := testExecute(t, "submit", "codeforces"); err == nil {
		t.Fatal("Expected error")
	}
}

func TestPrepareStatsPromptsSequentially(t *testing.T) {
	var prompted []string
	active := 0
	c, err := core.NewCore(config.Config{
		Judges: map[string]config.Account{
			"uva":        {Username: "alice"},
			"codeforces": {Username: "bob"},
			"codechef":   {Username: "carol", Password: "secret"},
		},
	}, core.WithPrompt(func(judge judges.Judge, username string) (string, error) {
		active++
		defer func() { active-- }()
		if active > 1 {
			t.Fatal("Password prompts overlap")
		}
		prompted = append(prompted, username)
		return "password-" + username, nil
	}))
	if err != nil {
		t.Fatal("Error:", err)
	}
	defer c.Close()
	logins, err := prepareStats(c, []string{"uva", "codechef", "codeforces"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, len(logins), 3)
	testExpect(t, strings.Join(prompted, ","), "alice,bob")
	testExpect(t, logins[0].judge.Judge(), judges.UVa)
	testExpect(t, logins[0].creds.Password, "password-alice")
	testExpect(t, logins[1].creds.Password, "secret")
	testExpect(t, logins[2].creds.Password, "password-bob")
}

func TestPrepareStatsPromptError(t *testing.T) {
	calls := 0
	c, err := core.NewCore(config.Config{
		Judges: map[string]config.Account{
			"uva":        {Username: "alice"},
			"codeforces": {Username: "bob"},
		},
	}, core.WithPrompt(func(judges.Judge, string) (string, error) {
		calls++
		return "", errors.New("interrupted")
	}))
	if err != nil {
		t.Fatal("Error:", err)
	}
	defer c.Close()
	if _, err := prepareStats(c, []string{"uva", "codeforces"}); err == nil {
		t.Fatal("Expected error")
	}
	testExpect(t, calls, 1)
	if _, err := prepareStats(c, []string{"timus"}); err == nil {
		t.Fatal("Expected error")
	}
}

func TestURLCommand(t *testing.T) {
	file, _ := testConfigFile(t)
	out, err := testExecute(t, "--config", file, "url", "codeforces", "4A")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.TrimSpace(out), "http://codeforces.com/problemset/problem/4/A")
	t.Setenv("JUDGE_CONFIG", "")
	missing := filepath.Join(t.TempDir(), "missing.json")
	out, err = testExecute(t, "--config", missing, "url", "codeforces", "1352G2")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.TrimSpace(out), "http://codeforces.com/problemset/problem/1352/G2")
	if _, err := testExecute(t, "--config", file, "url", "codeforces", "watermelon"); !errors.Is(err, judges.ErrProblemNotFound) {
		t.Fatalf("Expected %v, got %v", judges.ErrProblemNotFound, err)
	}
}

const testStatusSubmissions = `<html><body>
<table class="status-frame-datatable">
<tr><th>#</th><th>When</th><th>Who</th><th>Problem</th><th>Lang</th><th>Verdict</th><th>Time</th><th>Memory</th></tr>
<tr><td>250000002</td><td>Mar/01/2024 14:30</td><td>alice</td><td>4A - Watermelon</td><td>GNU G++14 6.2.0</td><td>Accepted</td><td>15 ms</td><td>0 KB</td></tr>
<tr><td>250000001</td><td>Mar/01/2024 14:00</td><td>alice</td><td>1A - Theatre Square</td><td>Python 3.5.2</td><td>Wrong answer on test 2</td><td>46 ms</td><td>0 KB</td></tr>
</table></body></html>`

func TestStatusCommand(t *testing.T) {
	e := echo.New()
	e.HideBanner = true
	e.GET("/enter", func(c echo.Context) error {
		return c.HTML(http.StatusOK, `<html><body><form><input type="hidden" name="csrf_token" value="csrf"></form></body></html>`)
	})
	e.POST("/enter", func(c echo.Context) error {
		return c.HTML(http.StatusOK, `<html><body><a href="/profile/alice">alice</a></body></html>`)
	})
	e.GET("/submissions/alice", func(c echo.Context) error {
		return c.HTML(http.StatusOK, testStatusSubmissions)
	})
	server := httptest.NewServer(e)
	defer server.Close()
	file, cfg := testConfigFile(t)
	account := cfg.Judges["codeforces"]
	account.BaseURL = server.URL
	cfg.Judges["codeforces"] = account
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal("Error:", err)
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatal("Error:", err)
	}
	out, err := testExecute(t, "--config", file, "status", "codeforces", "1A")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.Contains(out, server.URL+"/problemset/problem/1/A"), true)
	testExpect(t, strings.Contains(out, "250000001"), true)
	testExpect(t, strings.Contains(out, "250000002"), false)
	out, err = testExecute(t, "--config", file, "status", "codeforces", "4A", "--lang", ".cpp", "--year", "2024")
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, strings.Contains(out, "250000002"), true)
	if _, err := testExecute(t, "--config", file, "status", "codeforces"); err == nil {
		t.Fatal("Expected error")
	}
}

func TestRenderVerdict(t *testing.T) {
	testExpect(t, strings.Contains(renderVerdict(judges.Accepted), "Accepted"), true)
	testExpect(t, strings.Contains(renderVerdict(judges.Pending), "Pending"), true)
	testExpect(t, verdictStyle(judges.Accepted).GetForeground(), acceptedStyle.GetForeground())
	testExpect(t, verdictStyle(judges.Pending).GetForeground(), pendingStyle.GetForeground())
	testExpect(t, verdictStyle(judges.CompileError).GetForeground(), rejectedStyle.GetForeground())
}

func TestRenderStats(t *testing.T) {
	out := renderStats([]judges.UserStats{
		{Judge: judges.UVa, Username: "alice", Solved: 12, Submissions: 30},
	})
	testExpect(t, strings.Contains(out, "uva"), true)
	testExpect(t, strings.Contains(out, "12"), true)
	testExpect(t, strings.Contains(out, "Submissions"), true)
}

func testExpect[T comparable](tb testing.TB, output, answer T) {
	tb.Helper()
	if output != answer {
		tb.Fatalf(
			"Expected %q, got %q",
			fmt.Sprint(answer), fmt.Sprint(output),
		)
	}
}
