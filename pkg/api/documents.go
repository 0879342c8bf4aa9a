package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/kensaku/pkg/httputil"
	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/search"
)

// CreateDocumentRequest is the body of POST /documents
type CreateDocumentRequest struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	CategoryID *int64 `json:"category_id"`
}

// UpdateDocumentRequest is the body of PUT /documents/{id}. Absent fields
// keep their current value; "category_id": null detaches the category.
type UpdateDocumentRequest struct {
	Name       *string    `json:"name"`
	Title      *string    `json:"title"`
	Content    *string    `json:"content"`
	CategoryID OptionalID `json:"category_id"`
}

// OptionalID distinguishes an absent id from an explicit null
type OptionalID struct {
	Set   bool
	Value *int64
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// DocumentListResponse is a page of documents
type DocumentListResponse struct {
	Documents []*model.Document `json:"documents"`
	Total     int64             `json:"total"`
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// SearchHit is a matched document with its rank
type SearchHit struct {
	*model.Document
	Rank float64 `json:"rank"`
}

// SearchResultResponse is the body of GET /documents?q=
type SearchResultResponse struct {
	Query     string      `json:"query"`
	Tokens    []string    `json:"tokens"`
	Total     int64       `json:"total"`
	Limit     int         `json:"limit"`
	Offset    int         `json:"offset"`
	Documents []SearchHit `json:"documents"`
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		httputil.RequireNonEmpty(strings.TrimSpace(req.Name), "name"),
		httputil.RequireNonEmpty(strings.TrimSpace(req.Title), "title"),
		httputil.RequireNonEmpty(strings.TrimSpace(req.Content), "content"),
	) {
		return
	}

	doc := &model.Document{
		Name:       req.Name,
		Title:      req.Title,
		Content:    req.Content,
		CategoryID: req.CategoryID,
	}
	if err := s.documents.Save(r.Context(), doc); err != nil {
		writeStoreError(w, r, "document", err)
		return
	}

	s.respondWithDocument(w, r, doc.ID, http.StatusCreated)
}

// listDocuments serves both the paged listing and search (when q is set)
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := r.URL.Query()["q"]; ok {
		s.searchDocuments(w, r)
		return
	}

	page, ok := parsePage(w, r)
	if !ok {
		return
	}

	docs, total, err := s.documents.FindAll(r.Context(), page)
	if err != nil {
		writeStoreError(w, r, "documents", err)
		return
	}
	if docs == nil {
		docs = []*model.Document{}
	}

	httputil.WriteSuccess(w, DocumentListResponse{
		Documents: docs,
		Total:     total,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
}

func (s *Server) searchDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := s.searcher.Search(r.Context(), search.SearchRequest{
		Query:  r.URL.Query().Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeTokenizeError(w, r, "Search failed", err)
		return
	}

	out := SearchResultResponse{
		Query:     resp.Query,
		Tokens:    resp.Tokens,
		Total:     resp.Total,
		Limit:     resp.Limit,
		Offset:    resp.Offset,
		Documents: make([]SearchHit, 0, len(resp.Hits)),
	}
	if out.Tokens == nil {
		out.Tokens = []string{}
	}
	for _, hit := range resp.Hits {
		doc, err := s.documents.FindByID(r.Context(), hit.ID)
		if errors.Is(err, model.ErrNotFound) {
			// Deleted between match and fetch
			continue
		}
		if err != nil {
			writeStoreError(w, r, "document", err)
			return
		}
		out.Documents = append(out.Documents, SearchHit{Document: doc, Rank: hit.Rank})
	}

	httputil.WriteSuccess(w, out)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	s.respondWithDocument(w, r, id, http.StatusOK)
}

func (s *Server) updateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateDocumentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	doc, err := s.documents.FindByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "document", err)
		return
	}

	if req.Name != nil {
		doc.Name = *req.Name
	}
	if req.Title != nil {
		doc.Title = *req.Title
	}
	if req.Content != nil {
		doc.Content = *req.Content
	}
	if req.CategoryID.Set {
		doc.CategoryID = req.CategoryID.Value
	}
	if !httputil.ValidateAll(w,
		httputil.RequireNonEmpty(strings.TrimSpace(doc.Name), "name"),
		httputil.RequireNonEmpty(strings.TrimSpace(doc.Title), "title"),
		httputil.RequireNonEmpty(strings.TrimSpace(doc.Content), "content"),
	) {
		return
	}
	doc.Category = nil

	if err := s.documents.Save(r.Context(), doc); err != nil {
		writeStoreError(w, r, "document", err)
		return
	}

	s.respondWithDocument(w, r, id, http.StatusOK)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.documents.Remove(r.Context(), id); err != nil {
		writeStoreError(w, r, "document", err)
		return
	}
	httputil.WriteNoContent(w)
}

// respondWithDocument re-reads the document so the response carries its
// category as stored
func (s *Server) respondWithDocument(w http.ResponseWriter, r *http.Request, id int64, status int) {
	doc, err := s.documents.FindByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "document", err)
		return
	}
	httputil.WriteJSON(w, status, doc)
}
