package judges

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// adapter contains collaborators shared by all backends.
type adapter struct {
	deps Deps
}

func (a *adapter) get(ctx context.Context, rawURL string, query url.Values) (Page, error) {
	return a.deps.Fetcher.FetchPage(ctx, Request{
		Method: http.MethodGet,
		URL:    rawURL,
		Form:   query,
	})
}

func (a *adapter) post(ctx context.Context, rawURL string, form url.Values, header http.Header) (Page, error) {
	return a.deps.Fetcher.FetchPage(ctx, Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Header: header,
		Form:   form,
	})
}

// postFile posts form with attached source file.
//
// File is opened only for the duration of request.
func (a *adapter) postFile(
	ctx context.Context, rawURL string, form url.Values, header http.Header,
	field, path string,
) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		return Page{}, fmt.Errorf("cannot open source: %w", err)
	}
	defer func() { _ = file.Close() }()
	return a.deps.Fetcher.FetchPage(ctx, Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Header: header,
		Form:   form,
		File: &Attachment{
			Field:   field,
			Name:    filepath.Base(path),
			Content: file,
		},
	})
}

// source represents resolved solution file.
type source struct {
	path     string
	language string
}

// resolveSource locates solution file and resolves its language
// without network activity.
func (a *adapter) resolveSource(languages *LanguageMapping, req SubmitRequest) (source, error) {
	path := req.File
	if path == "" {
		found, err := a.deps.Finder.FindLocalFile(req.Problem, req.SearchPath)
		if err != nil {
			return source{}, err
		}
		path = found
	} else if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return source{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return source{}, err
	}
	code, err := languages.Resolve(path, req.Language)
	if err != nil {
		return source{}, err
	}
	return source{path: path, language: code}, nil
}

// readSource reads whole solution file.
func readSource(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot open source: %w", err)
	}
	defer func() { _ = file.Close() }()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("cannot read source: %w", err)
	}
	return string(data), nil
}

// knownVerdict returns terminal verdict recorded in session.
func knownVerdict(s *Session, id SubmissionID) (Verdict, bool) {
	if sub, ok := s.submissions[id]; ok && sub.Verdict.IsTerminal() {
		return sub.Verdict, true
	}
	return Pending, false
}

// filterRecords returns records matching filter.
func filterRecords(
	languages *LanguageMapping, records []SubmissionRecord, filter HistoryFilter,
) []SubmissionRecord {
	var code string
	if filter.Language != "" {
		code, _ = languages.Code(filter.Language)
	}
	var result []SubmissionRecord
	for _, record := range records {
		if filter.Problem != "" && !strings.EqualFold(problemCode(record.Problem), filter.Problem) {
			continue
		}
		if filter.Contest != "" && !strings.EqualFold(record.Contest, filter.Contest) {
			continue
		}
		if filter.Year != 0 && record.SubmittedAt.Year() != filter.Year {
			continue
		}
		if filter.Language != "" && !strings.EqualFold(record.Language, filter.Language) {
			// Labels and names of the same language share code.
			if other, err := languages.Code(record.Language); err != nil || code == "" || other != code {
				continue
			}
		}
		result = append(result, record)
	}
	return result
}

// problemCode returns problem identifier from "4A - Watermelon" cell.
func problemCode(problem string) string {
	if fields := strings.Fields(problem); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// logout drops session state and cookies.
func (a *adapter) logout(s *Session) {
	s.invalidate()
	if r, ok := a.deps.Fetcher.(Resetter); ok {
		r.Reset()
	}
}

func headers(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}
