package server

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/manekies/document-converter-app/constants"
	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
	"github.com/manekies/document-converter-app/internal/orchestrator"
	"github.com/manekies/document-converter-app/internal/pipeline"
	"github.com/manekies/document-converter-app/internal/repository"
	"github.com/manekies/document-converter-app/internal/template"
)

type fakeProcessor struct {
	got pipeline.Request
	err error
}

func (f *fakeProcessor) Process(_ context.Context, req pipeline.Request) (*pipeline.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &pipeline.Response{
		Result: &orchestrator.Result{
			RecognitionResult: document.RecognitionResult{
				Text:       "Hello",
				Language:   "en",
				Confidence: 88,
				Structure: document.Structure{
					Elements: []document.Element{{Type: document.KindParagraph, Content: "Hello"}},
					Metadata: document.NewMetadata(10, 20),
				},
			},
			Engine:  constants.EngineDocTR,
			Refiner: constants.RefinerGroq,
		},
		DocumentID: "doc-1",
		RunID:      "run-1",
		Duration:   250 * time.Millisecond,
	}, nil
}

type fakeMatcher struct{ tpl *template.Template }

func (f fakeMatcher) Match(context.Context, []byte) (*template.Template, error) {
	if f.tpl == nil {
		return nil, common.ErrNotMatched
	}
	return f.tpl, nil
}

type harness struct {
	client *Client
	proc   *fakeProcessor
	runs   repository.RunRepository
}

func newHarness(t *testing.T, matcher Matcher) harness {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	runs := repository.NewRunRepository(db, nil)
	proc := &fakeProcessor{}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryInterceptor(nil)))
	RegisterDocumentConverterServer(srv, NewService(proc, matcher, repository.NewTemplateRepository(db, nil), runs, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return harness{client: NewClient(conn), proc: proc, runs: runs}
}

func TestProcessOverGRPC(t *testing.T) {
	h := newHarness(t, fakeMatcher{})
	ctx := context.Background()

	var reply ProcessReply
	err := h.client.CallJSON(ctx, "Process", ProcessRequest{
		Image:     []byte("page"),
		Mode:      "cloud",
		Quality:   "best",
		Languages: []string{"deu"},
		Regions:   []document.Region{{Name: "total", X: 1, Y: 2, Width: 3, Height: 4}},
	}, &reply)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if reply.Engine != "doctr" || reply.Refiner != "groq" || reply.RunID != "run-1" || reply.DurationMS != 250 {
		t.Errorf("reply = %+v", reply)
	}
	if len(reply.Structure.Elements) != 1 || reply.Structure.Metadata.Orientation != document.Portrait {
		t.Errorf("structure = %+v", reply.Structure)
	}
	got := h.proc.got
	if string(got.Image) != "page" || got.Mode != constants.ModeCloud || got.Quality != constants.QualityBest {
		t.Errorf("request = %+v", got)
	}
	if len(got.Regions) != 1 || got.Regions[0].Height != 4 || got.Languages[0] != "deu" {
		t.Errorf("regions/languages = %+v %+v", got.Regions, got.Languages)
	}

	tests := []struct {
		name string
		req  ProcessRequest
		code codes.Code
	}{
		{"missing image", ProcessRequest{}, codes.InvalidArgument},
		{"bad region", ProcessRequest{Image: []byte("x"), Regions: []document.Region{{Name: "r", Width: 0, Height: 1}}}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.client.CallJSON(ctx, "Process", tt.req, &ProcessReply{})
			if status.Code(err) != tt.code {
				t.Fatalf("code = %v (%v), want %v", status.Code(err), err, tt.code)
			}
		})
	}

	h.proc.err = common.NewAppError("NO_ENGINE", "all recognition attempts failed", common.ErrNoEngine)
	if err := h.client.CallJSON(ctx, "Process", ProcessRequest{Image: []byte("x")}, &ProcessReply{}); status.Code(err) != codes.Unavailable {
		t.Fatalf("exhaustion code = %v", status.Code(err))
	}
}

func TestTemplatesOverGRPC(t *testing.T) {
	h := newHarness(t, fakeMatcher{})
	ctx := context.Background()

	var created template.Template
	err := h.client.CallJSON(ctx, "CreateTemplate", TemplateRequest{
		Name:        "invoice",
		Fingerprint: "10101010",
		Regions:     []document.Region{{Name: "total", X: 0, Y: 0, Width: 50, Height: 20}},
	}, &created)
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if created.ID == "" || created.Regions[0].Width != 50 {
		t.Fatalf("created = %+v", created)
	}

	err = h.client.CallJSON(ctx, "CreateTemplate", TemplateRequest{Name: "empty", Fingerprint: "1010"}, &template.Template{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("invalid template code = %v", status.Code(err))
	}

	var list struct {
		Templates []template.Template `json:"templates"`
	}
	if err := h.client.CallJSON(ctx, "ListTemplates", struct{}{}, &list); err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(list.Templates) != 1 || list.Templates[0].Name != "invoice" {
		t.Fatalf("list = %+v", list)
	}

	var got template.Template
	if err := h.client.CallJSON(ctx, "GetTemplate", map[string]string{"id": created.ID}, &got); err != nil || got.Fingerprint != "10101010" {
		t.Fatalf("GetTemplate = %+v, %v", got, err)
	}
	if err := h.client.CallJSON(ctx, "DeleteTemplate", map[string]string{"id": created.ID}, &struct{}{}); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	err = h.client.CallJSON(ctx, "GetTemplate", map[string]string{"id": created.ID}, &got)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("GetTemplate after delete code = %v", status.Code(err))
	}
}

func TestMatchTemplateOverGRPC(t *testing.T) {
	ctx := context.Background()
	var reply struct {
		Matched  bool               `json:"matched"`
		Template *template.Template `json:"template"`
	}

	h := newHarness(t, fakeMatcher{})
	if err := h.client.CallJSON(ctx, "MatchTemplate", imageRequest{Image: []byte("x")}, &reply); err != nil {
		t.Fatalf("MatchTemplate: %v", err)
	}
	if reply.Matched {
		t.Fatal("matched without templates")
	}

	h = newHarness(t, fakeMatcher{tpl: &template.Template{ID: "t1", Name: "form"}})
	if err := h.client.CallJSON(ctx, "MatchTemplate", imageRequest{Image: []byte("x")}, &reply); err != nil {
		t.Fatalf("MatchTemplate: %v", err)
	}
	if !reply.Matched || reply.Template == nil || reply.Template.Name != "form" {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestListRunsOverGRPC(t *testing.T) {
	h := newHarness(t, fakeMatcher{})
	ctx := context.Background()
	for _, st := range []constants.RunStatus{constants.RunStatusCompleted, constants.RunStatusFailed} {
		if _, err := h.runs.Record(ctx, repository.Run{DocumentID: "doc-7", Engine: constants.EngineTesseract, Status: st, Confidence: 60}); err != nil {
			t.Fatal(err)
		}
	}

	var runs struct {
		Runs []RunView `json:"runs"`
	}
	if err := h.client.CallJSON(ctx, "ListRuns", listRunsRequest{DocumentID: "doc-7"}, &runs); err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs.Runs) != 2 || runs.Runs[0].DocumentID != "doc-7" {
		t.Fatalf("runs = %+v", runs)
	}

	var stats struct {
		Engines []struct {
			Engine string `json:"engine"`
			Runs   int64  `json:"runs"`
			Failed int64  `json:"failed"`
		} `json:"engines"`
	}
	if err := h.client.CallJSON(ctx, "RunStats", struct{}{}, &stats); err != nil {
		t.Fatalf("RunStats: %v", err)
	}
	if len(stats.Engines) != 1 || stats.Engines[0].Runs != 2 || stats.Engines[0].Failed != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if err := h.client.CallJSON(ctx, "ListRuns", listRunsRequest{Limit: -1}, &runs); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("negative limit code = %v", status.Code(err))
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t, fakeMatcher{})

	t.Run("echoes caller id", func(t *testing.T) {
		ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDHeader, "req-abc")
		var md metadata.MD
		if _, err := h.client.Call(ctx, "RunStats", nil, grpc.Header(&md)); err != nil {
			t.Fatalf("RunStats: %v", err)
		}
		if got := md.Get(RequestIDHeader); len(got) != 1 || got[0] != "req-abc" {
			t.Errorf("header = %v", got)
		}
	})

	t.Run("generates id", func(t *testing.T) {
		var md metadata.MD
		if _, err := h.client.Call(context.Background(), "RunStats", nil, grpc.Header(&md)); err != nil {
			t.Fatalf("RunStats: %v", err)
		}
		if got := md.Get(RequestIDHeader); len(got) != 1 || got[0] == "" {
			t.Errorf("header = %v", got)
		}
	})
}
