package server

import (
	"net/http"
	"strconv"

	"github.com/zonemap/zonemap/pkg/types"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(r)

	var q types.TariffQuery
	if !decodeBody(w, r, &q) {
		return
	}
	// search failures are part of the results, not an HTTP error
	writeJSON(w, sess.Search(r.Context(), q))
}

func (s *Server) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	sess := s.getSession(r)

	pageStr := r.URL.Query().Get("page")
	if pageStr == "" {
		writeJSON(w, sess.SearchResults())
		return
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		writeJSONError(w, "invalid page", http.StatusBadRequest)
		return
	}
	writeJSON(w, sess.SetSearchPage(page))
}
