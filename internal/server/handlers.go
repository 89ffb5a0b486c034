package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/suisen/internal/models"
	"github.com/hyperjump/suisen/internal/storage"
	"github.com/hyperjump/suisen/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

// StatusResponse extends the stats with server-side details.
type StatusResponse struct {
	models.Stats
	DatabasePath   string `json:"database_path,omitempty"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var input models.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, r, errors.Wrap(err, errors.CodeInvalidArgument, "invalid request body"))
		return
	}
	s.logger.Debug("add item request", zap.String("item_id", input.ID), zap.String("title", input.Title))
	res, err := s.svc.AddItem(r.Context(), input)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Status == models.StatusAdded {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, res)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ListFilter{Category: q.Get("category")}
	var err error
	if filter.Limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		s.respondError(w, r, err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.svc.ListItems(r.Context(), filter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.svc.GetItem(r.Context(), itemID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	s.logger.Debug("delete item request", zap.String("item_id", id))
	res, err := s.svc.DeleteItem(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.RecommendRequest{ID: itemID(r)}
	if v := q.Get("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, errors.New(errors.CodeInvalidArgument, "top_k must be an integer", errors.Field("top_k", v)))
			return
		}
		req.TopK = &k
	}
	if v := q.Get("exclude_self"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, r, errors.New(errors.CodeInvalidArgument, "exclude_self must be a boolean", errors.Field("exclude_self", v)))
			return
		}
		req.ExcludeSelf = &b
	}
	res, err := s.svc.Recommend(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, errors.Wrap(err, errors.CodeInvalidArgument, "invalid request body"))
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.String("category", req.Category))
	res, err := s.svc.Search(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.GetStats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	resp := StatusResponse{Stats: *stats, DatabasePath: s.databasePath}
	if s.databasePath != "" {
		size, err := storage.DatabaseSizeBytes(s.databasePath)
		if err != nil {
			s.logger.Warn("status: disk usage failed", zap.Error(err))
		}
		resp.DiskUsageBytes = size
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("reindex request")
	res, err := s.svc.Reindex(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// itemID returns the unescaped {id} route parameter. chi matches on the raw path, so ids
// containing slashes arrive escaped.
func itemID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func intParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.New(errors.CodeInvalidArgument, name+" must be an integer", errors.Field(name, v))
	}
	return n, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("code", string(errors.CodeOf(err))),
		zap.Int("status", status),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Debug("request rejected", fields...)
	}
	s.respondJSON(w, status, ErrorResponse{Error: err.Error(), Code: errors.CodeOf(err)})
}
