package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_List(t *testing.T) {
	l, _ := newTestLog(t)
	appendN(t, l, 5)
	h := NewHandler(l)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-logs?user_id=user-0&limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []Entry `json:"data"`
		Total int     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// user-0 wrote entries 0 and 3
	assert.Equal(t, 2, body.Total)
	for _, entry := range body.Data {
		assert.Equal(t, "user-0", entry.UserID)
	}
}

func TestHandler_List_BadDate(t *testing.T) {
	l, _ := newTestLog(t)
	h := NewHandler(l)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit-logs?start_date=yesterday", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.List(c)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected echo.HTTPError, got %T", err)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestHandler_Verify(t *testing.T) {
	l, store := newTestLog(t)
	appendN(t, l, 3)
	h := NewHandler(l)
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, h.Verify(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	var report IntegrityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Valid)

	store.entries[1].Action = "FORGED"

	rec = httptest.NewRecorder()
	require.NoError(t, h.Verify(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.Valid)
	require.NotNil(t, report.TamperedAt)
	assert.Equal(t, 1, *report.TamperedAt)

	// Verification is read-only.
	entries, err := l.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
