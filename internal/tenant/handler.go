package tenant

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/response"
)

// Handler holds HTTP handlers for tenant endpoints.
type Handler struct {
	svc           *Service
	maxUploadSize int64
}

// NewHandler creates a new tenant Handler.
func NewHandler(svc *Service, maxUploadSize int64) *Handler {
	return &Handler{svc: svc, maxUploadSize: maxUploadSize}
}

type linkRequest struct {
	PrincipalID string `json:"principalId" example:"e7eedc79-0707-4fe4-8734-526b7ef13a7b"`
}

type deleteData struct {
	BlobsRemoved  int `json:"blobsRemoved"`
	BlobsOrphaned int `json:"blobsOrphaned"`
}

// Create godoc
//
//	@Summary		Create tenant
//	@Description	Registers a supplier company. Without principalId the company is resolved by email until linked.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateInput	true	"Tenant"
//	@Success		201		{object}	response.Envelope{data=Tenant}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Router			/admin/tenants [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	t, err := h.svc.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, t)
}

// Link godoc
//
//	@Summary		Link principal
//	@Description	Attaches an account to a company so resolution no longer needs the email fallback.
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string		true	"Tenant ID"
//	@Param			request	body		linkRequest	true	"Principal"
//	@Success		200		{object}	response.Envelope{data=Tenant}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Router			/admin/tenants/{id}/link [post]
func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	t, err := h.svc.Link(r.Context(), chi.URLParam(r, "id"), req.PrincipalID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, t)
}

// Delete godoc
//
//	@Summary		Delete tenant
//	@Description	Deletes a company with its postings and applications, then removes their files.
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Tenant ID"
//	@Success		200	{object}	response.Envelope{data=deleteData}
//	@Failure		404	{object}	response.Envelope
//	@Router			/admin/tenants/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, deleteData{BlobsRemoved: len(res.Removed), BlobsOrphaned: len(res.Orphaned)})
}

// UploadLogo godoc
//
//	@Summary		Upload company logo
//	@Description	Replaces the logo of the caller's company. The previous file is deleted.
//	@Tags			portal
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			logo	formData	file	true	"Logo image"
//	@Success		200		{object}	response.Envelope{data=Tenant}
//	@Failure		400		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Router			/portal/company/logo [post]
func (h *Handler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	t, ok := FromContext(r.Context())
	if !ok {
		response.Forbidden(w, "no company is linked to this account")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	file, header, err := r.FormFile("logo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "file too large")
			return
		}
		response.BadRequest(w, "logo file is required")
		return
	}
	defer file.Close()

	updated, err := h.svc.SetLogo(r.Context(), t, header.Filename, file, header.Size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, updated)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "tenant not found")
	case errors.Is(err, ErrConflict):
		response.Conflict(w, "tenant name or principal already in use")
	default:
		logger.FromContext(r.Context()).Error("tenant request failed", zap.Error(err))
		response.InternalError(w)
	}
}
