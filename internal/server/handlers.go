package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/extract"
	"github.com/hyperjump/contexter/internal/keyword"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/rag"
	"github.com/hyperjump/contexter/internal/search"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "Contexter API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "message": "API is operational"})
}

// handleUpload accepts one or more multipart files under "files" (or "file"), saves them into
// the sources directory and re-ingests before responding.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.config.MaxUploadMB)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	for _, h := range headers {
		if !s.service.Supports(h.Filename) {
			s.respondError(w, http.StatusBadRequest, "Unsupported file type: "+h.Filename)
			return
		}
	}

	uploaded := make([]string, 0, len(headers))
	for _, h := range headers {
		name, err := s.saveFile(h)
		if err != nil {
			if errors.Is(err, rag.ErrInvalidFilename) || errors.Is(err, extract.ErrUnsupportedFormat) {
				s.respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.logger.Error("upload failed", zap.String("filename", h.Filename), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		uploaded = append(uploaded, name)
	}

	stats, err := s.service.IngestDefault(r.Context())
	if err != nil {
		s.logger.Error("ingestion after upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Successfully uploaded and processed %d files", len(uploaded)),
		"files":   uploaded,
		"stats":   stats,
	})
}

func (s *Server) saveFile(h *multipart.FileHeader) (string, error) {
	f, err := h.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.service.SaveUpload(h.Filename, f)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, "Message is required")
		return
	}
	s.logger.Debug("chat request", zap.Int("length", len(req.Message)))
	reply := s.service.Ask(r.Context(), req.Message)
	s.respondJSON(w, http.StatusOK, map[string]string{"response": reply, "query": req.Message})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.Documents()
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	// chi matches on the raw path when it holds escapes such as %2F.
	if unescaped, err := url.PathUnescape(filename); err == nil {
		filename = unescaped
	}
	s.logger.Debug("delete document request", zap.String("filename", filename))
	_, err := s.service.DeleteDocument(r.Context(), filename)
	switch {
	case errors.Is(err, rag.ErrDocumentNotFound):
		s.respondError(w, http.StatusNotFound, "Document not found")
		return
	case errors.Is(err, rag.ErrInvalidFilename):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Document %s deleted successfully", filename)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cfg := s.service.Config()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"knowledge_base": stats,
		"config": map[string]interface{}{
			"embedding_provider":  cfg.Embedding.Provider,
			"generation_provider": cfg.Generation.Provider,
			"retrieval_backend":   cfg.Retrieval.Backend,
			"top_k":               cfg.Retrieval.TopK,
			"chunk_size":          cfg.Chunking.Size,
			"chunk_overlap":       cfg.Chunking.OverlapChars(),
			"extensions":          s.service.Extensions(),
		},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := &models.KeywordQuery{
		Query: params.Get("q"),
		Mode:  params.Get("mode"),
	}
	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}
	if v := params.Get("fuzzy"); v != "" {
		fuzzy, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid fuzzy flag")
			return
		}
		q.Fuzzy = fuzzy
	}
	if v := params.Get("rerank"); v != "" {
		rerank, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid rerank flag")
			return
		}
		q.Rerank = rerank
	}
	if err := q.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Debug("search request", zap.String("query", q.Query), zap.Int("limit", q.Limit), zap.String("mode", q.Mode))
	resp, err := s.service.Search(r.Context(), q)
	switch {
	case errors.Is(err, search.ErrNoKnowledgeBase), errors.Is(err, search.ErrNoChunks), errors.Is(err, keyword.ErrNotBuilt):
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
