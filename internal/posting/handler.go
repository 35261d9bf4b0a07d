package posting

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/response"
	"github.com/techspire01/ciadev/internal/tenant"
)

// Handler holds HTTP handlers for posting endpoints.
type Handler struct {
	svc           *Service
	maxUploadSize int64
}

// NewHandler creates a new posting Handler.
func NewHandler(svc *Service, maxUploadSize int64) *Handler {
	return &Handler{svc: svc, maxUploadSize: maxUploadSize}
}

type deleteData struct {
	BlobsRemoved  int `json:"blobsRemoved"`
	BlobsOrphaned int `json:"blobsOrphaned"`
}

// KindParam parses the {kind} route parameter, writing a 404 when it is unknown.
func KindParam(w http.ResponseWriter, r *http.Request) (Kind, bool) {
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		response.NotFound(w, "unknown posting kind")
		return "", false
	}
	return kind, true
}

// ListActive godoc
//
//	@Summary		List open postings
//	@Description	Returns published jobs or internships, newest first.
//	@Tags			postings
//	@Produce		json
//	@Param			kind	path		string	true	"job or internship"
//	@Param			page	query		int		false	"Page number"	default(1)
//	@Param			size	query		int		false	"Page size"		default(20)
//	@Success		200		{object}	response.Envelope{data=[]Posting}
//	@Failure		404		{object}	response.Envelope
//	@Router			/postings/{kind} [get]
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	kind, ok := KindParam(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	list, err := h.svc.ListActive(r.Context(), kind, page, size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, nonNil(list))
}

// GetActive godoc
//
//	@Summary		Get open posting
//	@Tags			postings
//	@Produce		json
//	@Param			kind	path		string	true	"job or internship"
//	@Param			id		path		string	true	"Posting ID"
//	@Success		200		{object}	response.Envelope{data=Posting}
//	@Failure		404		{object}	response.Envelope
//	@Router			/postings/{kind}/{id} [get]
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	kind, ok := KindParam(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetActive(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, p)
}

// ListOwned godoc
//
//	@Summary		List company postings
//	@Description	Returns every posting of the caller's company, published or not.
//	@Tags			portal
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Success		200		{object}	response.Envelope{data=[]Posting}
//	@Failure		403		{object}	response.Envelope
//	@Router			/portal/postings/{kind} [get]
func (h *Handler) ListOwned(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	list, err := h.svc.ListOwned(r.Context(), t.ID, kind)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, nonNil(list))
}

// Create godoc
//
//	@Summary		Create posting
//	@Tags			portal
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Param			request	body		Input	true	"Posting fields"
//	@Success		201		{object}	response.Envelope{data=Posting}
//	@Failure		400		{object}	response.Envelope
//	@Router			/portal/postings/{kind} [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	p, err := h.svc.Create(r.Context(), t.ID, kind, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, p)
}

// Update godoc
//
//	@Summary		Update posting
//	@Tags			portal
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Param			id		path		string	true	"Posting ID"
//	@Param			request	body		Input	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=Posting}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/portal/postings/{kind}/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	p, err := h.svc.Update(r.Context(), t.ID, kind, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, p)
}

// Toggle godoc
//
//	@Summary		Publish or unpublish posting
//	@Tags			portal
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Param			id		path		string	true	"Posting ID"
//	@Success		200		{object}	response.Envelope{data=Posting}
//	@Failure		404		{object}	response.Envelope
//	@Router			/portal/postings/{kind}/{id}/toggle [post]
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Toggle(r.Context(), t.ID, kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, p)
}

// UploadImage godoc
//
//	@Summary		Upload posting image
//	@Description	Replaces the image of a posting. The previous file is deleted.
//	@Tags			portal
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Param			id		path		string	true	"Posting ID"
//	@Param			image	formData	file	true	"Image"
//	@Success		200		{object}	response.Envelope{data=Posting}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		413		{object}	response.Envelope
//	@Router			/portal/postings/{kind}/{id}/image [post]
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := h.scope(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "file too large")
			return
		}
		response.BadRequest(w, "image file is required")
		return
	}
	defer file.Close()

	p, err := h.svc.SetImage(r.Context(), t.ID, kind, chi.URLParam(r, "id"), header.Filename, file, header.Size)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, p)
}

// Delete godoc
//
//	@Summary		Delete posting
//	@Description	Deletes a posting with all its applications, then removes their files.
//	@Tags			portal
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Param			id		path		string	true	"Posting ID"
//	@Success		200		{object}	response.Envelope{data=deleteData}
//	@Failure		404		{object}	response.Envelope
//	@Router			/portal/postings/{kind}/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := h.scope(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Delete(r.Context(), t.ID, kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, deleteData{BlobsRemoved: len(res.Removed), BlobsOrphaned: len(res.Orphaned)})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, Kind, bool) {
	t, ok := tenant.FromContext(r.Context())
	if !ok {
		response.Forbidden(w, "no company is linked to this account")
		return nil, "", false
	}
	kind, ok := KindParam(w, r)
	return t, kind, ok
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "posting not found")
	default:
		logger.FromContext(r.Context()).Error("posting request failed", zap.Error(err))
		response.InternalError(w)
	}
}

func nonNil(list []*Posting) []*Posting {
	if list == nil {
		return []*Posting{}
	}
	return list
}
