package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithQuery(query string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"explicit values", "limit=50&offset=10", 50, 10},
		{"limit capped at max", "limit=500", MaxLimit, 0},
		{"zero limit falls back", "limit=0", DefaultLimit, 0},
		{"negative offset clamped", "offset=-5", DefaultLimit, 0},
		{"garbage ignored", "limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := FromContext(contextWithQuery(tc.query))
			if p.Limit != tc.wantLimit {
				t.Errorf("limit: expected %d, got %d", tc.wantLimit, p.Limit)
			}
			if p.Offset != tc.wantOffset {
				t.Errorf("offset: expected %d, got %d", tc.wantOffset, p.Offset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if !resp.HasMore {
		t.Error("expected has_more with 10 total and page of 2")
	}

	last := NewResponse([]string{"a", "b"}, 10, 2, 8)
	if last.HasMore {
		t.Error("final page should not report has_more")
	}
}

func TestParamsNext(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	if !p.HasNext(100) {
		t.Error("expected next page at offset 40 of 100")
	}
	if p.HasNext(60) {
		t.Error("expected no next page at offset 40 of 60")
	}
	if p.NextOffset() != 60 {
		t.Errorf("expected next offset 60, got %d", p.NextOffset())
	}
}
