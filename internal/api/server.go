// Package api provides the HTTP server that peers talk to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/apperr"
	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/metrics"
	"github.com/VintageWander/filey/internal/storage"
	"github.com/VintageWander/filey/pkg/models"
	"github.com/VintageWander/filey/pkg/protocol"
)

// Catalog is the read side of the file catalog the server needs.
type Catalog interface {
	Public(ctx context.Context) ([]protocol.FileSummary, error)
	PublicRecord(ctx context.Context, id uuid.UUID) (models.FileRecord, error)
}

// Server serves the catalog's public files to peers.
type Server struct {
	catalog Catalog
	fs      storage.Backend
	os      protocol.OSType
}

// NewServer creates a server reporting the local OS on /info.
func NewServer(catalog Catalog, fs storage.Backend) *Server {
	return &Server{catalog: catalog, fs: fs, os: protocol.LocalOS()}
}

// CORS headers attached to every response so browser front ends on other
// peers can call this server.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "GET, POST, PUT, DELETE, OPTIONS",
	"Access-Control-Allow-Headers": strings.Join([]string{
		"Origin",
		"Content-Type",
		"Content-Disposition",
		"Content-Range",
		"Content-Length",
		"Access-Control-Allow-Origin",
		"Access-Control-Allow-Headers",
		"Access-Control-Allow-Methods",
	}, ", "),
	"Access-Control-Expose-Headers": "Content-Disposition, Content-Range, Content-Length, Accept-Ranges",
}

// Handler returns the HTTP handler with logging, metrics and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"OPTIONS /{path...}", s.handlePreflight},
		{"GET /info", s.handleInfo},
		{"GET /files", s.handleFiles},
		{"GET /files/{id}", s.handleFile},
		{"/", s.handleUnknown},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, rt.handler)
	}

	return metrics.Middleware(logging.Middleware(cors(mux)))
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range corsHeaders {
			w.Header().Set(k, v)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, protocol.Envelope[any]{Message: protocol.MessagePreflight})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, protocol.Envelope[protocol.OSType]{Message: protocol.MessageHealthy, Data: s.os})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.catalog.Public(r.Context())
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, protocol.Envelope[[]protocol.FileSummary]{Message: protocol.MessageFiles, Data: files})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.sendError(w, r, apperr.Errorf(apperr.NotFound, "files.get", "no public file %q", r.PathValue("id")))
		return
	}
	mode, err := protocol.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	rec, err := s.catalog.PublicRecord(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.streamFile(w, r, rec, mode)
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusNotFound, protocol.Envelope[any]{Message: "no route for " + r.Method + " " + r.URL.Path})
}

func sendJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// sendError renders any failure as a 500 envelope carrying a readable message.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Warn("request failed", zap.Error(err))
	sendJSON(w, http.StatusInternalServerError, protocol.Envelope[any]{Message: publicMessage(err)})
}

// publicMessage drops the internal operation name from apperr errors.
func publicMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return e.Kind.String() + ": " + e.Err.Error()
		}
		return e.Kind.String()
	}
	return err.Error()
}
