// Package site serves the embedded landing page.
package site

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"
)

// ErrServe is returned when the landing page cannot be read.
var ErrServe = errors.New("site serve failed")

//go:embed static/*
var staticFS embed.FS

// FS returns the embedded files rooted at static/.
func FS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return staticFS
	}
	return sub
}

// Register serves the landing page on the exact root path. Every other
// unmatched path stays a 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	page, err := fs.ReadFile(FS(), "index.html")
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			http.Error(w, errors.Join(ErrServe, err).Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
}
