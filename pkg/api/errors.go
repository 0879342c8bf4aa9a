package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/kensaku/pkg/httputil"
	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/observability"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
)

// writeStoreError maps repository errors onto HTTP statuses
func writeStoreError(w http.ResponseWriter, r *http.Request, what string, err error) {
	var indexErr *model.IndexError
	switch {
	case errors.Is(err, model.ErrNotFound):
		httputil.WriteNotFound(w, what+" not found")
	case errors.Is(err, model.ErrUnknownCategory):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrCategoryInUse):
		httputil.WriteConflict(w, err.Error())
	case errors.As(err, &indexErr):
		observability.FromContext(r.Context()).WithError(err).
			WithField("kind", indexErr.Kind).
			WithField("id", indexErr.ID).
			Error("Write committed but search index update failed")
		httputil.WriteDetailedError(w, http.StatusInternalServerError,
			errors.New("saved but search index update failed"),
			map[string]string{
				"kind":      indexErr.Kind,
				"id":        strconv.FormatInt(indexErr.ID, 10),
				"committed": "true",
			})
	default:
		observability.FromContext(r.Context()).WithError(err).Errorf("Failed to access %s", what)
		httputil.WriteInternalError(w)
	}
}

// writeTokenizeError answers 503 while the dictionary cannot be loaded;
// the next request retries the load.
func writeTokenizeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	observability.FromContext(r.Context()).WithError(err).Error(msg)
	if errors.Is(err, tokenizer.ErrInit) {
		httputil.WriteError(w, http.StatusServiceUnavailable, tokenizer.ErrInit)
		return
	}
	httputil.WriteInternalError(w)
}

// parsePage reads limit and offset, clamping limit to [1, maxPageSize]
func parsePage(w http.ResponseWriter, r *http.Request) (model.Page, bool) {
	limit, err := httputil.ParseQueryInt(r, "limit", defaultPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return model.Page{}, false
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return model.Page{}, false
	}
	return model.Page{Limit: limit, Offset: offset}, true
}
