package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/models"
	"github.com/leadpulse/leadpulse-crm/services/reminder-service/internal/timeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTimelineRepo struct {
	cfg  *models.TimelineConfig
	puts []models.TimelineConfig
}

func (f *fakeTimelineRepo) Get(ctx context.Context, tenantID string) (*models.TimelineConfig, error) {
	return f.cfg, nil
}

func (f *fakeTimelineRepo) Put(ctx context.Context, cfg *models.TimelineConfig) error {
	f.puts = append(f.puts, *cfg)
	return nil
}

func (f *fakeTimelineRepo) ResetToDefault(ctx context.Context, tenantID string) (*models.TimelineConfig, error) {
	def, err := timeline.Default(tenantID)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, *def)
	return def, nil
}

func timelineRouter(repo *fakeTimelineRepo) *gin.Engine {
	h := NewTimelineHandler(repo, nil)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set("tenant_id", "tenant-1") })
	router.PUT("/timeline", h.Update)
	return router
}

func putTimeline(router *gin.Engine, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/timeline", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestUpdateTimelineReplacesIntervals(t *testing.T) {
	repo := &fakeTimelineRepo{}
	def, err := timeline.Default("tenant-1")
	if err != nil {
		t.Fatal(err)
	}
	repo.cfg = def

	w := putTimeline(timelineRouter(repo), `{"intervals":[{"hours":48,"label":"2 days before"}]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(repo.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(repo.puts))
	}
}

func TestUpdateTimelineRejectsInvalidIntervals(t *testing.T) {
	repo := &fakeTimelineRepo{}
	def, err := timeline.Default("tenant-1")
	if err != nil {
		t.Fatal(err)
	}
	repo.cfg = def

	w := putTimeline(timelineRouter(repo), `{"intervals":[{"hours":500}]}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(repo.puts) != 0 {
		t.Fatal("invalid config must not be persisted")
	}
}

func TestUpdateTimelineEnableValidatesStoredIntervals(t *testing.T) {
	// Disabled tenant with an empty stored list: flipping enabled back on
	// without supplying intervals must not produce an enabled+empty config.
	repo := &fakeTimelineRepo{cfg: &models.TimelineConfig{
		TenantID: "tenant-1",
		Enabled:  false,
	}}

	w := putTimeline(timelineRouter(repo), `{"enabled":true}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body %s", w.Code, w.Body.String())
	}
	if len(repo.puts) != 0 {
		t.Fatal("enabled+empty config must not be persisted")
	}
}

func TestUpdateTimelineDisableWithEmptyListAllowed(t *testing.T) {
	repo := &fakeTimelineRepo{cfg: &models.TimelineConfig{
		TenantID: "tenant-1",
		Enabled:  false,
	}}

	w := putTimeline(timelineRouter(repo), `{"notificationEmail":"sales@example.com"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(repo.puts) != 1 || repo.puts[0].NotificationEmail != "sales@example.com" {
		t.Fatalf("puts = %+v", repo.puts)
	}
}
