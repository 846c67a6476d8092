package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/respack/pkg/format"
	"github.com/ssargent/respack/pkg/resource"
	"github.com/ssargent/respack/pkg/uid"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendSuccess(w, map[string]interface{}{
		"status": "healthy",
		"uids":   s.store.UIDs().Len(),
	})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	exts := format.Extensions()
	formats := make([]FormatInfo, 0, len(exts))
	for _, ext := range exts {
		formats = append(formats, FormatInfo{
			Name:      format.Classify("." + ext).String(),
			Extension: ext,
		})
	}
	sendSuccess(w, formats)
}

// pathParam returns the required ?path= query value
func pathParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		sendError(w, "path query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return path, true
}

func (s *Server) handleHeader(w http.ResponseWriter, r *http.Request) {
	path, ok := pathParam(w, r)
	if !ok {
		return
	}

	class, err := s.store.GetClass(path)
	if err != nil {
		sendStoreError(w, err)
		return
	}
	id, err := s.store.GetUID(path)
	if err != nil {
		sendStoreError(w, err)
		return
	}

	bound, _ := s.store.UIDs().Path(id)
	sendSuccess(w, HeaderResponse{
		Path:       path,
		Format:     format.Classify(path).String(),
		Class:      class,
		UID:        id.String(),
		Registered: id.Valid() && bound == path,
	})
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	path, ok := pathParam(w, r)
	if !ok {
		return
	}

	res, err := s.store.ResolvePath(path)
	if err != nil {
		sendStoreError(w, err)
		return
	}

	fields, err := res.EncodeFields(resource.NewEncoder(s.store, path))
	if err != nil {
		sendStoreError(w, err)
		return
	}

	sendSuccess(w, ResourceResponse{
		Path:   path,
		Class:  res.ClassName(),
		UID:    s.store.PathUID(path).String(),
		Fields: fields,
	})
}

func (s *Server) handleListUIDs(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	bindings := []UIDBinding{}
	err := s.store.UIDs().Range(func(id uid.ID, path string) bool {
		if strings.HasPrefix(path, prefix) {
			bindings = append(bindings, UIDBinding{UID: id.String(), Path: path})
		}
		return true
	})
	if err != nil {
		sendStoreError(w, err)
		return
	}

	sort.Slice(bindings, func(i, j int) bool { return bindings[i].Path < bindings[j].Path })
	sendSuccess(w, bindings)
}

// parseUIDParam accepts the text form with or without its uid:// scheme
func parseUIDParam(raw string) uid.ID {
	if !strings.HasPrefix(raw, "uid://") {
		raw = "uid://" + raw
	}
	return uid.FromText(raw)
}

func (s *Server) handleGetUID(w http.ResponseWriter, r *http.Request) {
	id := parseUIDParam(chi.URLParam(r, "uid"))
	if !id.Valid() {
		sendError(w, "invalid uid", http.StatusBadRequest)
		return
	}

	path, ok := s.store.UIDs().Path(id)
	if !ok {
		sendError(w, id.String()+" is not registered", http.StatusNotFound)
		return
	}
	sendSuccess(w, UIDBinding{UID: id.String(), Path: path})
}
