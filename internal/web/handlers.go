package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gtfsload/internal/core"
	"github.com/JonMunkholm/gtfsload/internal/logging"
)

var errOutsideFeedRoot = errors.New("outside the feed root")

type healthResponse struct {
	Status   string             `json:"status"`
	Database string             `json:"database"`
	Loads    core.LimiterStatus `json:"loads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Loads:    s.service.Limiter().Status(),
	}
	status := http.StatusOK
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = core.MapError(err).Code
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

type fieldView struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Requirement string   `json:"requirement"`
	References  string   `json:"references,omitempty"`
	Indexed     bool     `json:"indexed,omitempty"`
	PermitEmpty bool     `json:"permit_empty,omitempty"`
	Conditions  []string `json:"conditions,omitempty"`
}

type tableView struct {
	Name      string      `json:"name"`
	File      string      `json:"file"`
	Key       string      `json:"key"`
	UniqueKey bool        `json:"unique_key"`
	Required  bool        `json:"required"`
	Extended  bool        `json:"extended"`
	Fields    []fieldView `json:"fields,omitempty"`
}

func newTableView(t *core.Table, withFields bool) tableView {
	v := tableView{
		Name:      t.Name(),
		File:      t.FileName(),
		Key:       t.KeyField(),
		UniqueKey: t.HasUniqueKey(),
		Required:  t.IsRequired(),
		Extended:  t.IsExtended(),
	}
	if !withFields {
		return v
	}
	for _, f := range t.Fields() {
		fv := fieldView{
			Name:        f.Name(),
			Type:        f.SQLType().String(),
			Requirement: f.Requirement().String(),
			Indexed:     f.ShouldBeIndexed(),
			PermitEmpty: f.EmptyValuePermitted(),
		}
		if ft := f.ForeignTable(); ft != nil {
			fv.References = ft.Name()
		}
		for _, c := range f.Conditions() {
			fv.Conditions = append(fv.Conditions, describeCondition(c))
		}
		v.Fields = append(v.Fields, fv)
	}
	return v
}

func describeCondition(c core.ConditionalRequirement) string {
	switch c.Check {
	case core.FieldNotEmpty:
		return fmt.Sprintf("%s(%s)", c.Check, c.Field)
	case core.FieldInRange:
		return fmt.Sprintf("%s(%s[%g,%g])", c.Check, c.Field, c.Min, c.Max)
	case core.ForeignFieldValueMatch:
		return fmt.Sprintf("%s(%s.%s)", c.Check, c.Table, c.Column)
	default:
		return c.Check.String()
	}
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables := s.service.Tables()
	out := make([]tableView, 0, len(tables))
	for _, t := range tables {
		out = append(out, newTableView(t, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")
	for _, t := range s.service.Tables() {
		if t.Name() == name {
			writeJSON(w, http.StatusOK, newTableView(t, true))
			return
		}
	}
	s.respondError(w, r, fmt.Errorf("unknown table: %s", name), http.StatusNotFound)
}

type startLoadRequest struct {
	Path string `json:"path"`
}

type startLoadResponse struct {
	ID     string `json:"id"`
	Schema string `json:"schema"`
}

func (s *Server) handleStartLoad(w http.ResponseWriter, r *http.Request) {
	var req startLoadRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Message: "invalid request body",
			Action:  `Send {"path": "<feed zip or folder>"}`,
			Code:    "REQ001",
		})
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "path is required",
			Message: "path is required",
			Code:    "REQ002",
		})
		return
	}

	path, err := s.resolveFeedPath(req.Path)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	id, err := s.service.StartLoad(r.Context(), path)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	schema := core.SchemaNameFor(id)
	logging.ForLoad(r.Context(), id, schema).Info("load accepted", "path", path)

	w.Header().Set("Location", "/api/loads/"+id)
	writeJSON(w, http.StatusAccepted, startLoadResponse{ID: id, Schema: schema})
}

// resolveFeedPath confines p to the configured feed root. Relative paths are
// taken relative to the root. Without a root p is used as given.
func (s *Server) resolveFeedPath(p string) (string, error) {
	root := s.cfg.Load.FeedRoot
	if root == "" {
		return filepath.Clean(p), nil
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve feed root: %w", err)
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("feed path %q is %w", p, errOutsideFeedRoot)
	}
	return full, nil
}

func (s *Server) handleListLoads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListLoads())
}

func (s *Server) handleGetLoad(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.GetLoad(chi.URLParam(r, "loadID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancelLoad(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "loadID")
	if err := s.service.CancelLoad(id); err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	status, err := s.service.GetLoad(id)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusAccepted, status)
}
