package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/kensaku/pkg/httputil"
	"github.com/platinummonkey/kensaku/pkg/model"
)

// CategoryRequest is the body of POST /categories and PUT /categories/{id}
type CategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(strings.TrimSpace(req.Name), "name")) {
		return
	}

	cat := &model.Category{Name: req.Name}
	if err := s.categories.Save(r.Context(), cat); err != nil {
		writeStoreError(w, r, "category", err)
		return
	}
	httputil.WriteCreated(w, cat)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.FindAll(r.Context())
	if err != nil {
		writeStoreError(w, r, "categories", err)
		return
	}
	if cats == nil {
		cats = []*model.Category{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"categories": cats})
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	cat, err := s.categories.FindByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "category", err)
		return
	}
	httputil.WriteSuccess(w, cat)
}

// updateCategory renames a category. Dependent documents are re-indexed
// by the save hook.
func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req CategoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w, httputil.RequireNonEmpty(strings.TrimSpace(req.Name), "name")) {
		return
	}

	cat := &model.Category{ID: id, Name: req.Name}
	if err := s.categories.Save(r.Context(), cat); err != nil {
		writeStoreError(w, r, "category", err)
		return
	}
	httputil.WriteSuccess(w, cat)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := s.categories.Remove(r.Context(), id); err != nil {
		writeStoreError(w, r, "category", err)
		return
	}
	httputil.WriteNoContent(w)
}
