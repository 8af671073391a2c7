package ocr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
)

func TestSelfHostedEngine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ocr" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		_, _ = io.WriteString(w, `{"text":"Hello","confidence":93.5,
			"structure":{"elements":[{"type":"paragraph","content":"Hello","position":{"x":1,"y":2,"width":3,"height":4},"style":{}}],
			"metadata":{"pageCount":1,"orientation":"portrait","dimensions":{"width":600,"height":800}}}}`)
	}))
	defer srv.Close()

	e := NewSelfHostedEngine(SelfHostedConfig{BaseURL: srv.URL + "/", Token: "tok"}, nil)
	res, err := e.Recognize(context.Background(), Input{Image: []byte("x"), MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.Text != "Hello" || res.Confidence != 93.5 || res.Language != "en" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Structure.Elements) != 1 || res.Structure.Elements[0].Content != "Hello" {
		t.Errorf("structure = %+v", res.Structure)
	}
}

func TestSelfHostedEngineMalformed(t *testing.T) {
	bodies := []string{
		`{"structure":{"elements":[],"metadata":{}}}`,
		`{"text":"x"}`,
		`{"text":"x","structure":{"elements":[{"type":"marquee","content":"x"}],"metadata":{}}}`,
	}
	for _, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		}))
		e := NewSelfHostedEngine(SelfHostedConfig{BaseURL: srv.URL}, nil)
		_, err := e.Recognize(context.Background(), Input{Image: []byte("x")})
		if !errors.Is(err, common.ErrProvider) {
			t.Errorf("body %s: err = %v, want provider error", body, err)
		}
		srv.Close()
	}
}

func TestSelfHostedEngineUnavailable(t *testing.T) {
	e := NewSelfHostedEngine(SelfHostedConfig{}, nil)
	if _, err := e.Recognize(context.Background(), Input{}); !common.IsUnavailable(err) {
		t.Errorf("err = %v", err)
	}
}

func TestSelfHostedEngineNormalizesMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"text":"Wide","confidence":70,
			"structure":{"elements":[{"type":"paragraph","content":"Wide","position":{"x":-3,"y":0,"width":5,"height":5}}],
			"metadata":{"pageCount":0,"orientation":"portrait","dimensions":{"width":1200,"height":800}}}}`)
	}))
	defer srv.Close()

	e := NewSelfHostedEngine(SelfHostedConfig{BaseURL: srv.URL}, nil)
	res, err := e.Recognize(context.Background(), Input{Image: []byte("x")})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	md := res.Structure.Metadata
	if md.PageCount != 1 || md.Orientation != document.Landscape {
		t.Errorf("metadata = %+v", md)
	}
	if res.Structure.Elements[0].Position.X != 0 {
		t.Errorf("position = %+v", res.Structure.Elements[0].Position)
	}
}
