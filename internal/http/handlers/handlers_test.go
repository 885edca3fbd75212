package handlers_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/clipforge/clipforge/internal/analysis"
	"github.com/clipforge/clipforge/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter() (*chi.Mux, huma.API) {
	router := chi.NewRouter()
	api := humachi.New(router, huma.DefaultConfig("Test API", "1.0.0"))
	return router, api
}

type fakeAnalyzeService struct {
	result  *analysis.Result
	err     error
	gotURL  string
	gotOpts analysis.DetectOptions
}

func (f *fakeAnalyzeService) Analyze(_ context.Context, url string, opts analysis.DetectOptions) (*analysis.Result, error) {
	f.gotURL = url
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func analyzeResult() *analysis.Result {
	return &analysis.Result{
		Video: models.VideoInfo{ID: "v1", Title: "Title", DurationS: 600},
		Segments: []models.Segment{
			{ID: "seg-1", StartS: 100, EndS: 140, DurationS: 40},
		},
		Detection: analysis.Detection{
			Primary:     models.MethodHeatmap,
			MethodsUsed: []models.SignalMethod{models.MethodHeatmap},
		},
		ViralityScores: map[string]models.ViralityBreakdown{
			"seg-1": {Overall: 80, Label: "High"},
		},
	}
}
