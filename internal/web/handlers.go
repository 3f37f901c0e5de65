package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvappend/internal/core"
	"github.com/JonMunkholm/csvappend/internal/logging"
	"github.com/JonMunkholm/csvappend/internal/web/templates"
)

// multipartOverhead is the allowance for multipart framing on top of the
// file size limit.
const multipartOverhead = 1 << 20

// settingsRequest is the body of preview, validate and append. Settings
// are applied on top of the session's current ones, so a body naming only
// the delimiter keeps the header flag, quote and the rest unchanged.
type settingsRequest struct {
	Settings json.RawMessage `json:"settings,omitempty"`
}

// sessionSettings decodes an optional settingsRequest body and merges it
// onto the session's settings.
func sessionSettings(r *http.Request, sess *core.Session) (core.ParseSettings, error) {
	req := settingsRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return core.ParseSettings{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	settings := sess.Settings()
	if len(req.Settings) == 0 || string(req.Settings) == "null" {
		return settings, nil
	}
	if err := json.Unmarshal(req.Settings, &settings); err != nil {
		return core.ParseSettings{}, fmt.Errorf("%w: settings: %v", errBadRequest, err)
	}
	return settings, nil
}

// ----------------------------------------------------------------------------
// Pages
// ----------------------------------------------------------------------------

func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var preview *core.PreviewResult
	if last, ok := sess.LastPreview(); ok {
		preview = &last
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.UploadPage(sess.State(), preview).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render upload page", "error", err)
	}
}

func (s *Server) handleAppendPage(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// The page still renders without catalogs; the selector stays empty.
	catalogs, err := s.service.ListCatalogs(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn("list catalogs for append page", "error", err)
		catalogs = nil
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.AppendPage(sess.State(), catalogs).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render append page", "error", err)
	}
}

// ----------------------------------------------------------------------------
// Session, upload and preview
// ----------------------------------------------------------------------------

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	maxSize := s.service.Options().MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, &core.StageError{Stage: core.StageUpload, Err: core.ErrFileTooLarge})
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, &core.StageError{Stage: core.StageUpload, Err: core.ErrNoFile})
		return
	}
	defer file.Close()

	uploaded, err := s.service.UploadToSession(r.Context(), sess, header.Filename, header.Size, file)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file":     uploaded,
		"settings": sess.Settings(),
	})
}

// handlePreview always answers 200; decoding problems are carried in the
// result's error field so the pane can show them next to the settings.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	settings, err := sessionSettings(r, sess)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.service.PreviewSession(r.Context(), sess, settings))
}

// ----------------------------------------------------------------------------
// Catalog browsing and target selection
// ----------------------------------------------------------------------------

func (s *Server) handleListCatalogs(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.ListCatalogs(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.ListSchemas(r.Context(), chi.URLParam(r, "catalog"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.ListTables(r.Context(), chi.URLParam(r, "catalog"), chi.URLParam(r, "schema"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleSelectTarget(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var ref core.TableRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := sess.SelectTarget(ref); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.State())
}

func (s *Server) handleTablePreview(w http.ResponseWriter, r *http.Request) {
	ref := core.TableRef{
		Catalog: chi.URLParam(r, "catalog"),
		Schema:  chi.URLParam(r, "schema"),
		Table:   chi.URLParam(r, "table"),
	}
	preview, err := s.service.TablePreview(r.Context(), ref)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ----------------------------------------------------------------------------
// Validate and append
// ----------------------------------------------------------------------------

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	settings, err := sessionSettings(r, sess)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.service.ValidateSession(r.Context(), sess, settings)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFrom(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	settings, err := sessionSettings(r, sess)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	target := sess.Target()
	inserted, err := s.service.AppendSession(r.Context(), sess, settings)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("append complete",
		"target", target.String(),
		"rows", inserted,
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"rows_inserted": inserted,
		"target":        target,
	})
}

// ----------------------------------------------------------------------------
// Health
// ----------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"runs":     s.service.RunLimiterStatus(),
		"sessions": s.service.Sessions().Len(),
	})
}
