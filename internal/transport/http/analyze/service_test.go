package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"nutrilens-server-go/internal/domain/auth"
	"nutrilens-server-go/internal/domain/food"
	domainimage "nutrilens-server-go/internal/domain/image"
	"nutrilens-server-go/internal/domain/pipeline"
	"nutrilens-server-go/internal/platform/config"
	platformerrors "nutrilens-server-go/internal/platform/errors"
	testhelpers "nutrilens-server-go/internal/platform/testing"
	httptransport "nutrilens-server-go/internal/transport/http"
)

type fakeAnalyzer struct {
	result food.AnalysisResult
	err    error
	calls  int
	// tempFiles is the number of files in the upload temp dir while Analyze runs
	tempFiles int
	tempDir   string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, blob food.ImageBlob) (food.AnalysisResult, error) {
	f.calls++
	if entries, err := os.ReadDir(f.tempDir); err == nil {
		f.tempFiles = len(entries)
	}
	return f.result, f.err
}

func (f *fakeAnalyzer) Stats() pipeline.Stats { return pipeline.Stats{Completed: int64(f.calls)} }

type fixture struct {
	engine   *gin.Engine
	analyzer *fakeAnalyzer
	cfg      *config.Config
}

func newFixture(t *testing.T, mutate func(*config.Config)) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testhelpers.SetupTestConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	logger := testhelpers.SetupTestLogger(t)

	var authMW gin.HandlerFunc
	if cfg.Server.Auth.Enabled {
		authMW = httptransport.AuthMiddleware(auth.NewAuthToken(cfg.Server.Auth.Secret), logger)
	}
	router, err := httptransport.Build(httptransport.Options{Config: cfg, Logger: logger, AuthMiddleware: authMW})
	testhelpers.AssertNoError(t, err)

	images, err := domainimage.NewPipeline(domainimage.Options{Upload: &cfg.Upload, Logger: logger})
	testhelpers.AssertNoError(t, err)

	analyzer := &fakeAnalyzer{
		tempDir: cfg.Upload.TempDir,
		result: food.AnalysisResult{
			FoodItem:    "Apple",
			Description: "Food Item: Apple",
			Nutrients:   food.NutrientRecord{Calories: food.Measured(95, "kcal")},
			Source:      food.SourceLookup,
			Items: []food.ItemNutrients{{
				Name:      "Apple",
				Status:    food.ItemFound,
				Nutrients: food.NutrientRecord{Calories: food.Measured(95, "kcal")},
			}},
		},
	}
	svc, err := NewService(Options{
		Config:      cfg,
		Logger:      logger,
		Images:      images,
		Analyzer:    analyzer,
		VLMName:     "stub",
		EventCounts: func() map[string]int64 { return map[string]int64{"analysis:completed": 3} },
	})
	testhelpers.AssertNoError(t, err)
	svc.Register(router.API, router.Secured)

	return fixture{engine: router.Engine, analyzer: analyzer, cfg: cfg}
}

func upload(t *testing.T, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="meal.png"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	testhelpers.AssertNoError(t, err)
	_, _ = part.Write(data)
	testhelpers.AssertNoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(f fixture, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httptransport.ErrorResponse {
	t.Helper()
	var resp httptransport.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func assertTempDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	testhelpers.AssertNoError(t, err)
	if len(entries) != 0 {
		t.Fatalf("temp upload files left behind: %d", len(entries))
	}
}

func TestAnalyzeSuccess(t *testing.T) {
	f := newFixture(t, nil)
	rec := serve(f, upload(t, "file", "image/png", testhelpers.PNGBytes(t, 16, 16)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var env food.Envelope
	testhelpers.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if env.FoodItem != "Apple" || env.Details.Calories != "95 kcal" || env.Details.Fat != food.NotAvailable {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Source != "lookup" || len(env.Items) != 1 || env.Items[0].Status != "found" {
		t.Fatalf("unexpected items: %+v", env)
	}
	if rec.Header().Get(httptransport.RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
	if f.analyzer.tempFiles != 1 {
		t.Fatalf("expected the upload to be spooled while analyzing, saw %d files", f.analyzer.tempFiles)
	}
	assertTempDirEmpty(t, f.cfg.Upload.TempDir)
}

func TestAnalyzeErrors(t *testing.T) {
	png := func(t *testing.T) []byte { return testhelpers.PNGBytes(t, 16, 16) }

	tests := []struct {
		name       string
		field      string
		mediaType  string
		data       func(*testing.T) []byte
		analyzeErr error
		wantStatus int
		wantReason string
		wantDetail string
	}{
		{
			name: "disallowed type", field: "file", mediaType: "text/plain",
			data:       func(*testing.T) []byte { return []byte("hello") },
			wantStatus: http.StatusBadRequest, wantReason: httptransport.ReasonValidation,
			wantDetail: "Invalid file type. Only image/jpeg, image/png, image/gif, image/webp are allowed.",
		},
		{
			name: "missing file", field: "other", mediaType: "image/png", data: png,
			wantStatus: http.StatusBadRequest, wantReason: httptransport.ReasonValidation,
			wantDetail: "No file was uploaded.",
		},
		{
			name: "not an image", field: "file", mediaType: "image/png",
			data:       func(*testing.T) []byte { return []byte("definitely not a png payload") },
			wantStatus: http.StatusBadRequest, wantReason: httptransport.ReasonValidation,
			wantDetail: "Uploaded file is not a valid image.",
		},
		{
			name: "no food", field: "file", mediaType: "image/png", data: png,
			analyzeErr: platformerrors.Rewrap(platformerrors.KindGate, pipeline.OpGate, "no food detected", pipeline.ErrNotFood),
			wantStatus: http.StatusBadRequest, wantReason: httptransport.ReasonNoFood,
			wantDetail: httptransport.MessageNoFood,
		},
		{
			name: "gate failure", field: "file", mediaType: "image/png", data: png,
			analyzeErr: platformerrors.New(platformerrors.KindUpstream, pipeline.OpGate, "food gate failed"),
			wantStatus: http.StatusInternalServerError, wantReason: httptransport.ReasonUpstream,
			wantDetail: httptransport.MessageGateFailed,
		},
		{
			name: "identify failure", field: "file", mediaType: "image/png", data: png,
			analyzeErr: platformerrors.New(platformerrors.KindInternal, pipeline.OpIdentify, "secret upstream detail"),
			wantStatus: http.StatusInternalServerError, wantReason: httptransport.ReasonInternal,
			wantDetail: httptransport.MessageIdentifyFailed,
		},
		{
			name: "aggregate failure", field: "file", mediaType: "image/png", data: png,
			analyzeErr: platformerrors.New(platformerrors.KindInternal, pipeline.OpAggregate, "boom"),
			wantStatus: http.StatusInternalServerError, wantReason: httptransport.ReasonInternal,
			wantDetail: httptransport.MessageAggregateFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.analyzer.err = tt.analyzeErr

			rec := serve(f, upload(t, tt.field, tt.mediaType, tt.data(t)))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			resp := decodeError(t, rec)
			if resp.Reason != tt.wantReason || resp.Detail != tt.wantDetail || resp.Code != tt.wantStatus {
				t.Fatalf("body = %+v", resp)
			}
			if strings.Contains(rec.Body.String(), "secret upstream detail") {
				t.Fatal("cause leaked to the client")
			}
			assertTempDirEmpty(t, f.cfg.Upload.TempDir)
		})
	}
}

func TestAnalyzeOversize(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Upload.MaxFileSize = 64 })
	rec := serve(f, upload(t, "file", "image/png", testhelpers.PNGBytes(t, 256, 256)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if resp := decodeError(t, rec); !strings.HasPrefix(resp.Detail, "File size exceeds the limit of") {
		t.Fatalf("detail = %q", resp.Detail)
	}
	if f.analyzer.calls != 0 {
		t.Fatal("oversize upload must not reach the pipeline")
	}
	assertTempDirEmpty(t, f.cfg.Upload.TempDir)
}

func TestAnalyzeRequiresToken(t *testing.T) {
	f := newFixture(t, func(c *config.Config) {
		c.Server.Auth.Enabled = true
		c.Server.Auth.Secret = "s3cret"
	})

	rec := serve(f, upload(t, "file", "image/png", testhelpers.PNGBytes(t, 8, 8)))
	if rec.Code != http.StatusUnauthorized || decodeError(t, rec).Reason != httptransport.ReasonUnauthorized {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	token, err := auth.NewAuthToken("s3cret").GenerateToken("tester")
	testhelpers.AssertNoError(t, err)
	req := upload(t, "file", "image/png", testhelpers.PNGBytes(t, 8, 8))
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := serve(f, req); rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d body=%s", rec.Code, rec.Body.String())
	}

	// status stays public
	if rec := serve(f, httptest.NewRequest(http.MethodGet, "/api/analyze", nil)); rec.Code != http.StatusOK {
		t.Fatalf("status route = %d", rec.Code)
	}
}

func TestPublicRoutes(t *testing.T) {
	f := newFixture(t, nil)

	rec := serve(f, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	var status Status
	testhelpers.AssertNoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	if rec.Code != http.StatusOK || status.Status != "ok" || status.VLM != "stub" {
		t.Fatalf("status = %d %+v", rec.Code, status)
	}
	if status.Events["analysis:completed"] != 3 {
		t.Fatalf("status events = %v", status.Events)
	}

	if rec := serve(f, httptest.NewRequest(http.MethodGet, "/api/health", nil)); rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}

	rec = serve(f, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"/api/analyze"`) {
		t.Fatalf("openapi = %d %s", rec.Code, rec.Body.String())
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("openapi is not valid json: %v", err)
	}

	if strings.Contains(rec.Body.String(), "/api/history") {
		t.Fatal("openapi must not document history routes")
	}
}

func TestNoHistoryRoutes(t *testing.T) {
	f := newFixture(t, nil)

	// analyses are not kept, so nothing can be read back by request id
	for _, path := range []string{"/api/history/stats", "/api/history/req-1", "/api/analyze/req-1"} {
		if rec := serve(f, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}
