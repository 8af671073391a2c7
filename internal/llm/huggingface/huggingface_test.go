package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/document"
)

func TestRefine(t *testing.T) {
	tests := map[string]string{
		"list":   `[{"generated_text":"{\"elements\":[{\"type\":\"heading\",\"content\":\"Intro\",\"level\":2}],\"metadata\":{}}"}]`,
		"object": `{"generated_text":"{\"elements\":[{\"type\":\"heading\",\"content\":\"Intro\",\"level\":2}],\"metadata\":{}}"}`,
	}
	for name, resp := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/org/model" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer hf" {
					t.Errorf("authorization = %q", r.Header.Get("Authorization"))
				}
				var req request
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if req.Parameters.MaxNewTokens != 4000 || req.Parameters.ReturnFullText {
					t.Errorf("parameters = %+v", req.Parameters)
				}
				if !strings.HasPrefix(req.Inputs, "Return only valid JSON") {
					t.Errorf("inputs = %q", req.Inputs)
				}
				_, _ = io.WriteString(w, resp)
			}))
			defer srv.Close()

			r := New(Config{Token: "hf", BaseURL: srv.URL, Model: "org/model"}, nil)
			out, err := r.Refine(context.Background(), "intro", document.Structure{}, "en")
			if err != nil {
				t.Fatalf("Refine: %v", err)
			}
			if len(out.Structure.Elements) != 1 || out.Structure.Elements[0].Level != 2 {
				t.Errorf("structure = %+v", out.Structure)
			}
		})
	}
}

func TestRefineFailures(t *testing.T) {
	if _, err := New(Config{}, nil).Refine(context.Background(), "x", document.Structure{}, "en"); !common.IsUnavailable(err) {
		t.Errorf("no token: err = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"Model is currently loading"}`)
	}))
	defer srv.Close()
	_, err := New(Config{Token: "hf", BaseURL: srv.URL}, nil).Refine(context.Background(), "x", document.Structure{}, "en")
	if !errors.Is(err, common.ErrProvider) {
		t.Errorf("503: err = %v", err)
	}
}
