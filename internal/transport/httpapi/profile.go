package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/agentcv/agentcv/internal/domain"
	profileuc "github.com/agentcv/agentcv/internal/usecase/profilestore"
)

// uploadProfile handles POST /api/profile/upload. The multipart form carries
// the document under "file" plus optional chunk_size, chunk_overlap, and
// publish fields. The upload replaces the tenant's indexed profile as a
// whole.
func (s *Server) uploadProfile(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}

	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file field is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.maxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read file")
		return
	}
	if int64(len(content)) > s.maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "uploaded file exceeds size limit")
		return
	}

	opts, err := replaceOptionsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	rec, err := s.profiles.Replace(r.Context(), tenantID, header.Filename, content, opts)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		ProfileID:    rec.ID,
		Filename:     rec.Filename,
		VectorCount:  rec.VectorCount,
		ChunkSize:    rec.ChunkSize,
		ChunkOverlap: rec.ChunkOverlap,
		Model:        rec.Model,
		Published:    rec.Published,
	})
}

// replaceOptionsFromForm parses the optional upload parameters. Absent values
// stay zero and resolve to defaults downstream.
func replaceOptionsFromForm(r *http.Request) (profileuc.ReplaceOptions, error) {
	var opts profileuc.ReplaceOptions

	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, domain.ErrValidation
		}
		opts.ChunkSize = n
	}
	if v := r.FormValue("chunk_overlap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, domain.ErrValidation
		}
		opts.ChunkOverlap = n
	}
	if v := r.FormValue("publish"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, domain.ErrValidation
		}
		opts.Publish = b
	}
	return opts, nil
}

// deleteProfile handles DELETE /api/profile. Idempotent.
func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}

	if err := s.profiles.Delete(r.Context(), tenantID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// profileHistory handles GET /api/profile/history.
func (s *Server) profileHistory(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}

	records, err := s.profiles.History(r.Context(), tenantID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyFromRecords(records))
}

// setCredential handles PUT /api/settings/openai-key. The key is stored for
// the tenant's own use; it is never echoed back.
func (s *Server) setCredential(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}

	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "api_key is required")
		return
	}

	cred := domain.Credential{
		APIKey:         req.APIKey,
		EmbeddingModel: req.EmbeddingModel,
		ChatModel:      req.ChatModel,
	}
	if err := s.credentials.SetCredential(r.Context(), tenantID, cred); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteCredential handles DELETE /api/settings/openai-key. Idempotent.
func (s *Server) deleteCredential(w http.ResponseWriter, r *http.Request) {
	tenantID := requireTenant(w, r)
	if tenantID == "" {
		return
	}

	if err := s.credentials.DeleteCredential(r.Context(), tenantID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
