package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/competitive-cli/judge/internal/pkg/logs"
	"github.com/competitive-cli/judge/pkg/judges"
)

func newTestServer(tb testing.TB) *httptest.Server {
	e := echo.New()
	e.HideBanner = true
	e.GET("/login", func(c echo.Context) error {
		c.SetCookie(&http.Cookie{Name: "session", Value: c.QueryParam("user"), Path: "/"})
		return c.Redirect(http.StatusFound, "/home")
	})
	e.GET("/home", func(c echo.Context) error {
		cookie, err := c.Cookie("session")
		if err != nil {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, "hello "+cookie.Value)
	})
	e.POST("/form", func(c echo.Context) error {
		if c.Request().Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			return c.NoContent(http.StatusBadRequest)
		}
		return c.String(http.StatusOK, c.FormValue("name")+"|"+c.Request().Header.Get("Referer"))
	})
	e.POST("/upload", func(c echo.Context) error {
		file, err := c.FormFile("source")
		if err != nil {
			return c.NoContent(http.StatusBadRequest)
		}
		src, err := file.Open()
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
		content, err := io.ReadAll(src)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, fmt.Sprintf(
			"%s|%s|%s", c.FormValue("problem"), file.Filename, content,
		))
	})
	e.GET("/agent", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Request().UserAgent())
	})
	e.GET("/broken", func(c echo.Context) error {
		return c.NoContent(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(e)
	tb.Cleanup(server.Close)
	return server
}

func TestClientCookies(t *testing.T) {
	server := newTestServer(t)
	client := NewClient()
	ctx := context.Background()
	page, err := client.FetchPage(ctx, judges.Request{
		URL:  server.URL + "/login",
		Form: url.Values{"user": {"alice"}},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, page.URL, server.URL+"/home")
	testExpect(t, string(page.Body), "hello alice")
	client.Reset()
	page, err = client.FetchPage(ctx, judges.Request{URL: server.URL + "/home"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, string(page.Body), "anonymous")
}

func TestClientForm(t *testing.T) {
	server := newTestServer(t)
	client := NewClient()
	page, err := client.FetchPage(context.Background(), judges.Request{
		Method: http.MethodPost,
		URL:    server.URL + "/form",
		Header: http.Header{"Referer": {"https://judge.test/"}},
		Form:   url.Values{"name": {"bob"}},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, string(page.Body), "bob|https://judge.test/")
}

func TestClientMultipart(t *testing.T) {
	server := newTestServer(t)
	client := NewClient()
	page, err := client.FetchPage(context.Background(), judges.Request{
		Method: http.MethodPost,
		URL:    server.URL + "/upload",
		Form:   url.Values{"problem": {"100"}},
		File: &judges.Attachment{
			Field:   "source",
			Name:    "100.cpp",
			Content: strings.NewReader("int main() {}"),
		},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, string(page.Body), "100|100.cpp|int main() {}")
}

func TestClientUserAgent(t *testing.T) {
	server := newTestServer(t)
	client := NewClient(WithUserAgent("judge-test"))
	page, err := client.FetchPage(context.Background(), judges.Request{URL: server.URL + "/agent"})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, string(page.Body), "judge-test")
	page, err = client.FetchPage(context.Background(), judges.Request{
		URL:    server.URL + "/agent",
		Header: http.Header{"User-Agent": {"custom"}},
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, string(page.Body), "custom")
}

func TestClientStatusError(t *testing.T) {
	server := newTestServer(t)
	var buf bytes.Buffer
	client := NewClient(WithLogger(logs.NewLogger(
		logs.WithOutput(&buf), logs.WithLevel(log.DEBUG),
	)))
	_, err := client.FetchPage(context.Background(), judges.Request{URL: server.URL + "/broken"})
	if !errors.Is(err, judges.ErrNetworkFailure) {
		t.Fatalf("Expected network failure, got %v", err)
	}
	var netErr *judges.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected %T, got %T", netErr, err)
	}
	testExpect(t, netErr.StatusCode(), http.StatusServiceUnavailable)
	if !strings.Contains(buf.String(), "/broken") {
		t.Fatalf("Request is not logged: %q", buf.String())
	}
}

func TestClientTransportError(t *testing.T) {
	server := newTestServer(t)
	server.Close()
	client := NewClient()
	_, err := client.FetchPage(context.Background(), judges.Request{URL: server.URL + "/home"})
	var netErr *judges.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected %T, got %v", netErr, err)
	}
	testExpect(t, netErr.StatusCode(), 0)
}

func TestClientCanceled(t *testing.T) {
	server := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient().FetchPage(ctx, judges.Request{URL: server.URL + "/home"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected cancellation, got %v", err)
	}
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
