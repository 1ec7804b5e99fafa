package markup

import (
	"errors"
	"fmt"
	"testing"

	"github.com/competitive-cli/judge/pkg/judges"
)

const testPage = `<!DOCTYPE html>
<html><body>
<a href="/profile/alice">alice</a> | <a href="/4f2a/logout">Logout</a>
<form action="/enter" method="post">
	<input type="hidden" name="csrf_token" value="abc">
	<input type="hidden" name="ftaa" value="f1">
	<input type="text" name="handle" value="">
	<select name="programTypeId">
		<option value="42">GNU G++11</option>
		<option value="50" selected>GNU G++14</option>
	</select>
	<textarea name="source">int main() {}</textarea>
</form>
<form action="/session/limit" method="post">
	<input type="checkbox" name="sid" value="1">
	<input type="checkbox" name="sid" value="2">
	<input type="hidden" name="form_id" value="limit">
</form>
<input type="hidden" name="outside" value="1">
<div class="info">
	<h3>Problems Solved</h3>
	<h5>Fully Solved (12)</h5>
	<section><h5>Partially
		Solved (3)</h5></section>
</div>
<table class="status">
	<thead><tr><th>#</th><th>Verdict</th></tr></thead>
	<tr><td>2</td><td><span title="accepted">(100)</span></td></tr>
	<tr><td>1</td><td>  Wrong
		answer </td></tr>
</table>
<table class="status">
	<tr><th>Key</th><th>Value</th></tr>
	<tr><td>Rank</td><td><table><tr><td>nested</td></tr></table></td></tr>
</table>
</body></html>`

func TestHiddenFields(t *testing.T) {
	fields, err := NewExtractor().HiddenFields([]byte(testPage))
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, len(fields), 3)
	testExpect(t, fields["csrf_token"], "abc")
	testExpect(t, fields["ftaa"], "f1")
	testExpect(t, fields["form_id"], "limit")
	if _, ok := fields["outside"]; ok {
		t.Fatal("Input outside of form should be skipped")
	}
}

func TestFormFields(t *testing.T) {
	fields, err := NewExtractor().FormFields([]byte(testPage))
	if err != nil {
		t.Fatal("Error:", err)
	}
	expected := []judges.Field{
		{Name: "csrf_token", Value: "abc"},
		{Name: "ftaa", Value: "f1"},
		{Name: "handle", Value: ""},
		{Name: "programTypeId", Value: "50"},
		{Name: "source", Value: "int main() {}"},
		{Name: "sid", Value: "1"},
		{Name: "sid", Value: "2"},
		{Name: "form_id", Value: "limit"},
	}
	testExpect(t, len(fields), len(expected))
	for i := range expected {
		testExpect(t, fields[i], expected[i])
	}
}

func TestTableRows(t *testing.T) {
	ex := NewExtractor()
	rows, err := ex.TableRows([]byte(testPage), judges.TableHint{
		Selector: "table.status", SkipHeader: true, CellAttr: "title",
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, len(rows), 2)
	testExpect(t, rows[0][0], "2")
	testExpect(t, rows[0][1], "accepted")
	testExpect(t, rows[1][1], "Wrong answer")
	rows, err = ex.TableRows([]byte(testPage), judges.TableHint{
		Selector: "table.status", Index: 1,
	})
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, len(rows), 2)
	testExpect(t, rows[0][0], "Key")
	testExpect(t, rows[1][1], "nested")
	_, err = ex.TableRows([]byte(testPage), judges.TableHint{
		Selector: "table.status", Index: 2,
	})
	if !errors.Is(err, judges.ErrParseFailure) {
		t.Fatalf("Expected parse failure, got %v", err)
	}
}

func TestTexts(t *testing.T) {
	ex := NewExtractor()
	texts, err := ex.Texts([]byte(testPage), `:containsOwn("alice")`)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, len(texts), 1)
	testExpect(t, texts[0], "alice")
	texts, err = ex.Texts(
		[]byte(testPage),
		`h3:containsOwn("Problems Solved") ~ h5, h3:containsOwn("Problems Solved") ~ * h5`,
	)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, len(texts), 2)
	testExpect(t, texts[0], "Fully Solved (12)")
	testExpect(t, texts[1], "Partially Solved (3)")
	if _, err := ex.Texts([]byte(testPage), "div[["); err == nil {
		t.Fatal("Expected error")
	}
}

func TestAttrs(t *testing.T) {
	links, err := NewExtractor().Attrs(
		[]byte(testPage), `a[href="/profile/alice"] + a`, "href",
	)
	if err != nil {
		t.Fatal("Error:", err)
	}
	testExpect(t, len(links), 1)
	testExpect(t, links[0], "/4f2a/logout")
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
