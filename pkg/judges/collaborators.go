package judges

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Request represents single page request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Form contains form values, for GET requests they are
	// appended to URL query.
	Form url.Values
	// File contains optional attachment, if it is specified
	// form is sent as multipart.
	File *Attachment
}

// Attachment represents uploaded file.
type Attachment struct {
	Field   string
	Name    string
	Content io.Reader
}

// Page represents fetched page.
type Page struct {
	// URL contains final URL after all redirects.
	URL  string
	Body []byte
}

// PageFetcher performs HTTP round trips.
//
// Fetcher owns cookies, so every adapter should get its own instance.
type PageFetcher interface {
	// FetchPage should return *NetworkError on transport failures
	// and unexpected status codes.
	FetchPage(ctx context.Context, req Request) (Page, error)
}

// Resetter is implemented by fetchers that can drop all cookies.
type Resetter interface {
	Reset()
}

// Field represents form input.
type Field struct {
	Name  string
	Value string
}

// TableHint selects table on page.
type TableHint struct {
	// Selector contains CSS selector of table.
	Selector string
	// Index contains index of table among matched ones.
	Index int
	// SkipHeader skips rows without td cells.
	SkipHeader bool
	// CellAttr contains attribute that replaces cell text when
	// the cell or its descendant has it.
	CellAttr string
}

// PageExtractor extracts values from page markup.
type PageExtractor interface {
	// HiddenFields returns all hidden inputs of all forms.
	HiddenFields(body []byte) (map[string]string, error)
	// FormFields returns all named inputs of all forms in document order.
	FormFields(body []byte) ([]Field, error)
	// TableRows returns cell texts of all rows of the table.
	TableRows(body []byte, hint TableHint) ([][]string, error)
	// Texts returns texts of all elements matched by selector.
	Texts(body []byte, selector string) ([]string, error)
	// Attrs returns attribute values of all elements matched by selector.
	Attrs(body []byte, selector, attr string) ([]string, error)
}

// FileFinder locates solution files.
type FileFinder interface {
	// FindLocalFile should return error matching ErrFileNotFound
	// if there is no suitable file.
	FindLocalFile(problem, searchPath string) (string, error)
}

// Clock returns current time.
type Clock func() time.Time

var timeNow Clock = time.Now
