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

func TestCloudEngineUnavailableWithoutKey(t *testing.T) {
	e := NewCloudEngine(CloudConfig{}, nil)
	if e.Available() {
		t.Fatal("engine without key must be unavailable")
	}
	_, err := e.Recognize(context.Background(), Input{Image: []byte("x")})
	if !common.IsUnavailable(err) {
		t.Errorf("err = %v, want unavailable", err)
	}
}

func TestCloudEngineRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "k" {
			t.Errorf("apikey header = %q", r.Header.Get("apikey"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.FormValue("language") != "ger" || r.FormValue("OCREngine") != "2" || r.FormValue("isTable") != "true" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part: %v", err)
		}
		body, _ := io.ReadAll(f)
		if string(body) != "image-bytes" || hdr.Header.Get("Content-Type") != "image/png" {
			t.Errorf("file part = %q %q", body, hdr.Header.Get("Content-Type"))
		}
		_, _ = io.WriteString(w, `{"OCRExitCode":1,"ParsedResults":[{"ParsedText":"RECHNUNG\r\n• Pos 1\r\n\r\nVielen Dank für Ihren Einkauf bei uns in der Filiale.","MeanConfidence":77}]}`)
	}))
	defer srv.Close()

	e := NewCloudEngine(CloudConfig{APIKey: "k", URL: srv.URL}, nil)
	res, err := e.Recognize(context.Background(), Input{Image: []byte("image-bytes"), MIMEType: "image/png", Languages: []string{"ger+eng"}})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if res.Language != "de" || res.Confidence != 77 {
		t.Errorf("result = %+v", res)
	}
	kinds := []document.Kind{document.KindHeading, document.KindList, document.KindParagraph}
	if len(res.Structure.Elements) != len(kinds) {
		t.Fatalf("elements = %+v", res.Structure.Elements)
	}
	for i, k := range kinds {
		if res.Structure.Elements[i].Type != k {
			t.Errorf("element %d = %s, want %s", i, res.Structure.Elements[i].Type, k)
		}
	}
	if res.Structure.Elements[1].Position.Y <= res.Structure.Elements[0].Position.Y {
		t.Error("lines must be stacked top to bottom")
	}
}

func TestCloudEngineServiceError(t *testing.T) {
	tests := map[string]struct {
		status int
		body   string
	}{
		"exit code":   {http.StatusOK, `{"OCRExitCode":3,"ErrorMessage":["File failed validation"]}`},
		"http status": {http.StatusForbidden, `forbidden`},
		"bad json":    {http.StatusOK, `<html>`},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			e := NewCloudEngine(CloudConfig{APIKey: "k", URL: srv.URL}, nil)
			_, err := e.Recognize(context.Background(), Input{Image: []byte("x")})
			if !errors.Is(err, common.ErrProvider) {
				t.Errorf("err = %v, want provider error", err)
			}
		})
	}
}
