package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lewisedginton/log_analysis_assistant/internal/knowledge"
	"github.com/lewisedginton/log_analysis_assistant/internal/logscan"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/lewisedginton/log_analysis_assistant/pkg/sessionid"
)

// maxBodyBytes bounds request bodies; log uploads are the largest input.
const maxBodyBytes = 8 << 20

type chatRequest struct {
	SessionID    string `json:"session_id"`
	Query        string `json:"query"`
	FileAttached bool   `json:"file_attached"`
}

type analyzeRequest struct {
	Content string `json:"content"`
	Query   string `json:"query"`
}

type analyzeResponse struct {
	Report logscan.Report `json:"report"`
	Answer string         `json:"answer,omitempty"`
}

type addSolutionRequest struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	Solutions   []string `json:"solutions"`
	Keywords    []string `json:"keywords"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	if req.SessionID == "" {
		req.SessionID = sessionid.New()
	} else if err := sessionid.Validate(req.SessionID); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := s.opts.Assistant.Respond(r.Context(), req.SessionID, req.Query, req.FileAttached)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	resp := analyzeResponse{Report: logscan.Scan(req.Content)}
	if strings.TrimSpace(req.Query) != "" {
		answer := s.opts.Assistant.Respond(r.Context(), sessionid.New(), req.Query, true)
		resp.Answer = answer.Answer
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddSolution(w http.ResponseWriter, r *http.Request) {
	var req addSolutionRequest
	if !s.decode(w, r, &req) {
		return
	}

	err := s.opts.Store.AddSolution(r.Context(), req.Key, knowledge.Entry{
		Description: req.Description,
		Solutions:   req.Solutions,
		Keywords:    req.Keywords,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "created", "key": strings.ToLower(strings.TrimSpace(req.Key))})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, http.StatusBadRequest, "code query parameter is required")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"code":        code,
		"explanation": s.opts.Store.ExplainError(code),
	})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	keys := s.opts.Store.RankBySimilarity(query)
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"matches": keys})
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	diag := s.opts.Assistant.Diagnose(r.Context())
	s.writeJSON(w, http.StatusOK, diag)
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := sessionid.Validate(sessionID); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.opts.Assistant.ClearSession(r.Context(), sessionID); err != nil {
		s.opts.Logger.Error("Failed to clear session",
			logger.StringField("session_id", sessionID),
			logger.ErrorField(err))
		s.writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dest); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.opts.Logger.Error("Failed to encode response", logger.ErrorField(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}
