package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"

	"papermill/internal/analysis"
	"papermill/internal/api"
	"papermill/internal/fileutil"
	"papermill/internal/logging"
	"papermill/internal/paper"
)

const multipartMemoryLimit = 32 << 20

func (s *apiServer) handlePapers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleList(w, r)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	statusFilter := strings.TrimSpace(query.Get("status"))
	if statusFilter != "" {
		parsed, ok := paper.ParseStatus(statusFilter)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", statusFilter))
			return
		}
		statusFilter = string(parsed)
	}
	offset, err := queryInt(query.Get("offset"), 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	limit, err := queryInt(query.Get("limit"), 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}

	resp, err := s.paperSvc.List(r.Context(), statusFilter, offset, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func queryInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return value, nil
}

func (s *apiServer) maxUploadBytes() int64 {
	mib := s.daemon.cfg.Upload.MaxSizeMiB
	if mib <= 0 {
		mib = 100
	}
	return int64(mib) << 20
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes()+multipartMemoryLimit)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	resp, err := s.storeUpload(r, file, header)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *apiServer) handleBatchUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 10*s.maxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		s.writeError(w, http.StatusBadRequest, "parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		s.writeError(w, http.StatusBadRequest, "missing files field")
		return
	}

	resp := api.BatchUploadResponse{Failed: map[string]string{}}
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			resp.Failed[header.Filename] = err.Error()
			continue
		}
		uploaded, err := s.storeUpload(r, file, header)
		_ = file.Close()
		if err != nil {
			resp.Failed[header.Filename] = err.Error()
			continue
		}
		resp.Uploaded = append(resp.Uploaded, uploaded)
	}
	if len(resp.Failed) == 0 {
		resp.Failed = nil
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

// storeUpload validates one uploaded PDF, stores it in object storage, and
// creates its record.
func (s *apiServer) storeUpload(r *http.Request, file multipart.File, header *multipart.FileHeader) (api.UploadResponse, error) {
	var empty api.UploadResponse
	filename := filepath.Base(strings.TrimSpace(header.Filename))
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return empty, fmt.Errorf("only .pdf files are accepted, got %q", filename)
	}

	content, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes()+1))
	if err != nil {
		return empty, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(content)) > s.maxUploadBytes() {
		return empty, fmt.Errorf("file exceeds %d MiB limit", s.maxUploadBytes()>>20)
	}
	if len(content) == 0 {
		return empty, fmt.Errorf("empty file")
	}

	pages, err := pdfapi.PageCount(bytes.NewReader(content), nil)
	if err != nil {
		return empty, fmt.Errorf("invalid pdf: %w", err)
	}
	if pages < 1 {
		return empty, fmt.Errorf("pdf has no pages")
	}

	obj, err := s.daemon.svcs.Objects.Upload(r.Context(), content, filename)
	if err != nil {
		return empty, fmt.Errorf("store object: %w", err)
	}

	now := time.Now().UTC()
	record := paper.Paper{
		Key:        obj.Key,
		SourceURL:  obj.URL,
		Filename:   filename,
		SizeBytes:  obj.Size,
		Status:     paper.StatusUploaded,
		UploadedAt: &now,
	}
	if err := s.daemon.svcs.Store.Upsert(r.Context(), []paper.Paper{record}); err != nil {
		return empty, fmt.Errorf("record upload: %w", err)
	}
	s.logger.Info("paper uploaded",
		logging.String(logging.FieldPaperKey, obj.Key),
		logging.Int64("size", obj.Size),
		logging.Int("pages", pages))
	return api.UploadResponse{Key: obj.Key, URL: obj.URL, Filename: filename, Size: obj.Size}, nil
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp, err := s.paperSvc.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handlePaperItem(w http.ResponseWriter, r *http.Request, key string) {
	switch r.Method {
	case http.MethodGet:
		item, err := s.paperSvc.Describe(r.Context(), key)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if item == nil {
			s.writeError(w, http.StatusNotFound, "paper not found")
			return
		}
		s.writeJSON(w, http.StatusOK, item)
	case http.MethodPatch:
		s.handlePatch(w, r, key)
	case http.MethodDelete:
		s.handleDelete(w, r, key)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type patchRequest struct {
	Status *string `json:"status"`
	Error  *string `json:"error"`
}

func (s *apiServer) handlePatch(w http.ResponseWriter, r *http.Request, key string) {
	var patch patchRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.writeError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	var nextStatus paper.Status
	if patch.Status != nil {
		parsed, ok := paper.ParseStatus(*patch.Status)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", *patch.Status))
			return
		}
		nextStatus = parsed
	}

	found, err := s.daemon.svcs.Store.Update(r.Context(), key, func(p *paper.Paper) {
		if patch.Status != nil {
			p.Status = nextStatus
		}
		if patch.Error != nil {
			p.ErrorMessage = *patch.Error
		}
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	item, err := s.paperSvc.Describe(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request, key string) {
	removed, err := s.daemon.svcs.Store.Delete(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if s.daemon.svcs.Objects != nil {
		if err := s.daemon.svcs.Objects.Delete(r.Context(), key); err != nil {
			s.logger.Warn("delete stored object",
				logging.String(logging.FieldPaperKey, key),
				logging.Error(err))
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "paper deleted"})
}

func (s *apiServer) handleExtraction(w http.ResponseWriter, r *http.Request, key string) {
	switch r.Method {
	case http.MethodPost:
		taskID, err := s.daemon.svcs.Extraction.Start(r.Context(), key)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.daemon.svcs.Extraction.RunDetached(key, taskID)
		s.writeJSON(w, http.StatusAccepted, api.ExtractionResponse{
			TaskID:  taskID,
			Key:     key,
			Message: "extraction started",
		})
	case http.MethodDelete:
		success, message, err := s.daemon.svcs.Extraction.Stop(r.Context(), key)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.StopExtractionResponse{Success: success, Message: message})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleAnalysis(w http.ResponseWriter, r *http.Request, key string) {
	switch r.Method {
	case http.MethodPost:
		s.handleStartAnalysis(w, r, key)
	case http.MethodGet:
		s.handleAnalysisResult(w, r, key)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStartAnalysis validates the record synchronously so state errors map
// to proper status codes, then runs the analysis in the background.
func (s *apiServer) handleStartAnalysis(w http.ResponseWriter, r *http.Request, key string) {
	rec, err := s.daemon.svcs.Store.GetByKey(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if rec.Status != paper.StatusExtracted {
		s.writeError(w, http.StatusBadRequest,
			fmt.Sprintf("paper %s has status %s, want %s", key, rec.Status, paper.StatusExtracted))
		return
	}

	go func() {
		if _, err := s.daemon.svcs.Analysis.Start(context.Background(), key); err != nil {
			s.logger.Error("analysis run",
				logging.String(logging.FieldPaperKey, key),
				logging.Error(err))
		}
	}()
	s.writeJSON(w, http.StatusAccepted, api.AnalysisResponse{Key: key, Message: "analysis started"})
}

func (s *apiServer) handleAnalysisResult(w http.ResponseWriter, r *http.Request, key string) {
	rec, err := s.daemon.svcs.Store.GetByKey(r.Context(), key)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if rec.AnalysisPath == "" {
		s.writeError(w, http.StatusNotFound, "analysis result not available")
		return
	}

	artifactPath := fileutil.ResolveUnderRoot(s.daemon.cfg.Paths.WorkingDir, rec.AnalysisPath)
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "analysis artifact missing")
		return
	}
	var artifact analysis.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		s.writeError(w, http.StatusInternalServerError, "decode analysis artifact: "+err.Error())
		return
	}

	sections := make(map[string]string, len(artifact.Sections))
	for _, section := range artifact.Sections {
		title := section.Title
		if title == "" {
			title = fmt.Sprintf("section %d", section.Index)
		}
		sections[title] = section.Text
	}
	s.writeJSON(w, http.StatusOK, api.AnalysisResultResponse{Key: rec.Key, Sections: sections})
}
