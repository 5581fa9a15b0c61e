package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/sevasetu/sevasetu/internal/store"
)

func TestListServicesPublicShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	query := regexp.QuoteMeta(`
SELECT id, name, description, keywords, response, is_complaint, created_at
FROM services
WHERE is_complaint = false
ORDER BY created_at, id`)
	mock.ExpectQuery(query).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description", "keywords", "response", "is_complaint", "created_at"}).
			AddRow("svc-1", "Water Problem", "Water supply issues", pq.StringArray{"पानी"}, "जल विभाग से संपर्क करें।", false, time.Now()))

	h := &ServicesHandler{Store: &store.Store{DB: db}}
	e := echo.New()
	h.Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/services", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out []ServiceSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].Name != "Water Problem" {
		t.Fatalf("unexpected listing: %+v", out)
	}
	// canned responses and keywords stay off the public listing
	if regexp.MustCompile(`keywords|response`).Match(rec.Body.Bytes()) {
		t.Fatalf("public listing leaked internal fields: %s", rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
