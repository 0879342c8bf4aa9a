package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/search"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Searcher evaluates a free-text query
type Searcher interface {
	Search(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error)
}

// Analyzer shows how text is tokenized and indexed
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*search.Analysis, error)
}

// Server represents our API server
type Server struct {
	documents  model.DocumentRepository
	categories model.CategoryRepository
	searcher   Searcher
	analyzer   Analyzer
	router     *mux.Router
}

// NewServer creates a new API server with all routes registered
func NewServer(documents model.DocumentRepository, categories model.CategoryRepository, searcher Searcher, analyzer Analyzer) *Server {
	s := &Server{
		documents:  documents,
		categories: categories,
		searcher:   searcher,
		analyzer:   analyzer,
		router:     mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/documents", s.createDocument).Methods("POST")
	s.router.HandleFunc("/documents", s.listDocuments).Methods("GET")
	s.router.HandleFunc("/documents/{id}", s.getDocument).Methods("GET")
	s.router.HandleFunc("/documents/{id}", s.updateDocument).Methods("PUT")
	s.router.HandleFunc("/documents/{id}", s.deleteDocument).Methods("DELETE")

	s.router.HandleFunc("/categories", s.createCategory).Methods("POST")
	s.router.HandleFunc("/categories", s.listCategories).Methods("GET")
	s.router.HandleFunc("/categories/{id}", s.getCategory).Methods("GET")
	s.router.HandleFunc("/categories/{id}", s.updateCategory).Methods("PUT")
	s.router.HandleFunc("/categories/{id}", s.deleteCategory).Methods("DELETE")

	s.router.HandleFunc("/analyze", s.analyze).Methods("GET")
}

// Router returns the route table so callers can wrap it in middleware
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
