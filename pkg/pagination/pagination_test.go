package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query string
		want  Params
	}{
		{"", Params{Count: 0, Offset: 0}},
		{"count=5&offset=10", Params{Count: 5, Offset: 10}},
		{"_count=3&_offset=2", Params{Count: 3, Offset: 2}},
		{"count=-1&offset=-4", Params{Count: 0, Offset: 0}},
		{"count=abc", Params{Count: 0, Offset: 0}},
	}
	for _, tc := range cases {
		if got := paramsFor(t, tc.query); got != tc.want {
			t.Errorf("query %q: got %+v, want %+v", tc.query, got, tc.want)
		}
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage([]string{"a", "b"}, 2, 7)
	if page.TotalElements != 7 {
		t.Errorf("expected totalElements 7, got %d", page.TotalElements)
	}
	if page.TotalPages != 4 {
		t.Errorf("expected 4 pages, got %d", page.TotalPages)
	}
	if page.Size != 2 {
		t.Errorf("expected size 2, got %d", page.Size)
	}
}

func TestNewPageUnbounded(t *testing.T) {
	page := NewPage([]string{"a", "b", "c"}, 3, 3)
	if page.TotalPages != 1 {
		t.Errorf("expected single page, got %d", page.TotalPages)
	}
}
