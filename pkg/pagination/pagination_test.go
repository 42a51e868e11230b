package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"explicit", "?limit=5&offset=10", 5, 10},
		{"clamped", "?limit=1000", MaxLimit, 0},
		{"negative offset", "?offset=-3", DefaultLimit, 0},
		{"garbage", "?limit=abc&offset=xyz", DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/patients"+tt.query, nil)
			c := e.NewContext(req, httptest.NewRecorder())

			p := FromContext(c)
			if p.Limit != tt.wantLimit || p.Offset != tt.wantOffset {
				t.Errorf("got %+v, want limit=%d offset=%d", p, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	if r := NewResponse(nil, 45, Params{Limit: 20, Offset: 20}); !r.HasMore {
		t.Error("expected more results after offset 20 of 45")
	}
	if r := NewResponse(nil, 45, Params{Limit: 20, Offset: 40}); r.HasMore {
		t.Error("expected last page")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	if got := Page(items, Params{Limit: 2, Offset: 1}); len(got) != 2 || got[0] != 2 {
		t.Errorf("unexpected page %v", got)
	}
	if got := Page(items, Params{Limit: 10, Offset: 3}); len(got) != 2 {
		t.Errorf("expected tail of 2, got %v", got)
	}
	if got := Page(items, Params{Limit: 10, Offset: 9}); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil page, got %v", got)
	}
}
