// Package swagger serves the OpenAPI description of the export API.
package swagger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Error constants.
var (
	ErrServe = errors.New("swagger serve failed")
)

// Register attaches the API docs page and the OpenAPI document routes to mux.
// Every asset is embedded; the page loads nothing from other origins.
// Routes:
//
//	GET /api-docs           -> HTML rendered from the OpenAPI document
//	GET /api-docs/docs.css  -> Embedded stylesheet
//	GET /openapi.yaml       -> Embedded OpenAPI document
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	page, pageErr := renderIndex(OpenAPI)
	css, cssErr := static.ReadFile("static/docs.css")

	mux.HandleFunc("/api-docs", func(w http.ResponseWriter, r *http.Request) {
		if pageErr != nil {
			http.Error(w, pageErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})

	mux.HandleFunc("/api-docs/docs.css", func(w http.ResponseWriter, r *http.Request) {
		if cssErr != nil {
			http.Error(w, cssErr.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		_, _ = w.Write(css)
	})

	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		_, _ = w.Write(OpenAPI)
	})
}

type document struct {
	Info struct {
		Title       string `yaml:"title"`
		Version     string `yaml:"version"`
		Description string `yaml:"description"`
	} `yaml:"info"`
	Paths map[string]map[string]struct {
		Summary     string `yaml:"summary"`
		OperationID string `yaml:"operationId"`
		Parameters  []struct {
			Name        string `yaml:"name"`
			In          string `yaml:"in"`
			Description string `yaml:"description"`
		} `yaml:"parameters"`
		Responses map[string]any `yaml:"responses"`
	} `yaml:"paths"`
}

type param struct{ Name, In, Description string }

type operation struct {
	ID, Method, Path, Summary string
	Params                    []param
	Responses                 []string
}

type index struct {
	Title, Version, Description string
	Operations                  []operation
}

// renderIndex builds the docs page from an OpenAPI document.
func renderIndex(spec []byte) ([]byte, error) {
	var doc document
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse openapi: %w", ErrServe, err)
	}
	tmpl, err := template.ParseFS(static, "static/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServe, err)
	}

	idx := index{Title: doc.Info.Title, Version: doc.Info.Version, Description: strings.TrimSpace(doc.Info.Description)}
	for path, methods := range doc.Paths {
		for method, op := range methods {
			o := operation{ID: op.OperationID, Method: method, Path: path, Summary: op.Summary}
			for _, p := range op.Parameters {
				o.Params = append(o.Params, param{Name: p.Name, In: p.In, Description: p.Description})
			}
			for code := range op.Responses {
				o.Responses = append(o.Responses, code)
			}
			sort.Strings(o.Responses)
			idx.Operations = append(idx.Operations, o)
		}
	}
	sort.Slice(idx.Operations, func(i, j int) bool {
		a, b := idx.Operations[i], idx.Operations[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Method < b.Method
	})

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, idx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrServe, err)
	}
	return buf.Bytes(), nil
}
