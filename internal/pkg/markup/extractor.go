// Package markup extracts form fields, tables and texts from HTML pages.
package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/competitive-cli/judge/pkg/judges"
)

// Extractor implements judges.PageExtractor using goquery.
type Extractor struct{}

// NewExtractor returns new extractor.
func NewExtractor() Extractor {
	return Extractor{}
}

var (
	hiddenMatcher = cascadia.MustCompile(`form input[type="hidden"][name]`)
	fieldMatcher  = cascadia.MustCompile(`form input[name], form select[name], form textarea[name]`)
)

func (Extractor) HiddenFields(body []byte) (map[string]string, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	doc.FindMatcher(hiddenMatcher).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		fields[name] = s.AttrOr("value", "")
	})
	return fields, nil
}

func (Extractor) FormFields(body []byte) ([]judges.Field, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	var fields []judges.Field
	doc.FindMatcher(fieldMatcher).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		fields = append(fields, judges.Field{Name: name, Value: fieldValue(s)})
	})
	return fields, nil
}

func fieldValue(s *goquery.Selection) string {
	switch goquery.NodeName(s) {
	case "textarea":
		return s.Text()
	case "select":
		option := s.Find("option[selected]").First()
		if option.Length() == 0 {
			option = s.Find("option").First()
		}
		if value, ok := option.Attr("value"); ok {
			return value
		}
		return normalizeText(option.Text())
	default:
		return s.AttrOr("value", "")
	}
}

func (Extractor) TableRows(body []byte, hint judges.TableHint) ([][]string, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	matcher, err := compile(hint.Selector)
	if err != nil {
		return nil, err
	}
	tables := doc.FindMatcher(matcher)
	if hint.Index < 0 || hint.Index >= tables.Length() {
		return nil, fmt.Errorf(
			"%w: table %q #%d not found", judges.ErrParseFailure, hint.Selector, hint.Index,
		)
	}
	table := tables.Eq(hint.Index)
	var rows [][]string
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		// Skip rows of nested tables.
		if !row.Closest("table").IsSelection(table) {
			return
		}
		if hint.SkipHeader && row.ChildrenFiltered("td").Length() == 0 {
			return
		}
		var cells []string
		row.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cellText(cell, hint.CellAttr))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

func cellText(cell *goquery.Selection, attr string) string {
	if attr != "" {
		if value, ok := cell.Attr(attr); ok {
			return normalizeText(value)
		}
		if value, ok := cell.Find("[" + attr + "]").First().Attr(attr); ok {
			return normalizeText(value)
		}
	}
	return normalizeText(cell.Text())
}

func (Extractor) Texts(body []byte, selector string) ([]string, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	matcher, err := compile(selector)
	if err != nil {
		return nil, err
	}
	var texts []string
	doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, normalizeText(s.Text()))
	})
	return texts, nil
}

func (Extractor) Attrs(body []byte, selector, attr string) ([]string, error) {
	doc, err := parse(body)
	if err != nil {
		return nil, err
	}
	matcher, err := compile(selector)
	if err != nil {
		return nil, err
	}
	var values []string
	doc.FindMatcher(matcher).Each(func(_ int, s *goquery.Selection) {
		if value, ok := s.Attr(attr); ok {
			values = append(values, value)
		}
	})
	return values, nil
}

func parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", judges.ErrParseFailure, err)
	}
	return doc, nil
}

func compile(selector string) (goquery.Matcher, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return matcher, nil
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

var _ judges.PageExtractor = Extractor{}
