package handler

import (
	"io"
	"net/http"

	"smsbridge-backend/internal/service"
	"smsbridge-backend/internal/session"
	"smsbridge-backend/internal/utils"
)

type UploadHandler struct {
	UploadService *service.UploadService
	Sessions      *session.Manager
	MaxSize       int64
}

func NewUploadHandler(uploadService *service.UploadService, sessions *session.Manager, maxSize int64) *UploadHandler {
	return &UploadHandler{UploadService: uploadService, Sessions: sessions, MaxSize: maxSize}
}

// UploadContacts parses a multipart contact file. When the request names a
// session, the parse result is reconciled into that session's recipient set
// under the upload guard.
func (h *UploadHandler) UploadContacts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxSize+1024)
	if err := r.ParseMultipartForm(h.MaxSize); err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "Could not read the uploaded file")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, "No file selected")
		return
	}
	defer file.Close()

	sess := h.session(r)
	gen := 0
	if sess != nil {
		gen = sess.BeginUpload()
	}

	content, err := io.ReadAll(file)
	if err != nil {
		if sess != nil {
			sess.CompleteUpload(gen, nil, err)
		}
		utils.ErrorResponse(w, http.StatusBadRequest, "Could not read the uploaded file")
		return
	}

	result, err := h.UploadService.Parse(header.Filename, header.Size, content)
	if sess != nil {
		sess.CompleteUpload(gen, result, err)
	}
	if err != nil {
		utils.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.SuccessResponse(w, http.StatusOK, result, "")
}

func (h *UploadHandler) session(r *http.Request) *session.Session {
	id := r.URL.Query().Get("session")
	if id == "" {
		id = r.Header.Get("X-Session-ID")
	}
	if id == "" {
		return nil
	}
	return h.Sessions.Get(id)
}
