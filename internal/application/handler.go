package application

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
	"github.com/techspire01/ciadev/internal/posting"
	"github.com/techspire01/ciadev/internal/response"
	"github.com/techspire01/ciadev/internal/storage"
	"github.com/techspire01/ciadev/internal/tenant"
)

// multipart overhead allowed on top of the two files
const formOverhead = 1 << 20

// Handler holds HTTP handlers for application endpoints.
type Handler struct {
	svc           *Service
	maxUploadSize int64
	basePath      string
}

// NewHandler creates a new application Handler. basePath is the mount point of
// the portal routes and is used to build default redirect targets.
func NewHandler(svc *Service, maxUploadSize int64, basePath string) *Handler {
	return &Handler{svc: svc, maxUploadSize: maxUploadSize, basePath: strings.TrimRight(basePath, "/")}
}

type deleteData struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Resume deleted successfully."`
}

// Apply godoc
//
//	@Summary		Apply to a posting
//	@Description	Submits an application with a resume and an optional additional attachment.
//	@Tags			postings
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			kind					path		string	true	"job or internship"
//	@Param			id						path		string	true	"Posting ID"
//	@Param			first_name				formData	string	true	"First name"
//	@Param			last_name				formData	string	false	"Last name"
//	@Param			email					formData	string	true	"Email"
//	@Param			phone					formData	string	false	"Phone"
//	@Param			cover_letter			formData	string	false	"Cover letter"
//	@Param			resume					formData	file	true	"Resume (pdf, doc, docx)"
//	@Param			additional_attachment	formData	file	false	"Additional attachment"
//	@Success		201						{object}	response.Envelope{data=Application}
//	@Failure		400						{object}	response.Envelope
//	@Failure		404						{object}	response.Envelope
//	@Failure		413						{object}	response.Envelope
//	@Router			/postings/{kind}/{id}/apply [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	kind, ok := posting.KindParam(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "upload too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := SubmitInput{
		FirstName:   r.FormValue("first_name"),
		LastName:    r.FormValue("last_name"),
		Email:       r.FormValue("email"),
		Phone:       r.FormValue("phone"),
		CoverLetter: r.FormValue("cover_letter"),
	}

	resume, closeResume, err := formUpload(r, "resume")
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	defer closeResume()
	in.Resume = resume

	attachment, closeAttachment, err := formUpload(r, "additional_attachment", "attachment")
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}
	defer closeAttachment()
	in.Attachment = attachment

	a, err := h.svc.Submit(r.Context(), kind, chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, a)
}

// formUpload opens the first present file field among names. A missing field
// yields a nil Upload.
func formUpload(r *http.Request, names ...string) (*Upload, func(), error) {
	for _, name := range names {
		headers := r.MultipartForm.File[name]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, func() {}, fmt.Errorf("could not read %s", name)
		}
		return &Upload{Filename: fh.Filename, Body: f, Size: fh.Size}, func() { _ = f.Close() }, nil
	}
	return nil, func() {}, nil
}

// ListApplicants godoc
//
//	@Summary		List applicants
//	@Description	Returns the applications to one of the caller's postings.
//	@Tags			portal
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Param			id		path		string	true	"Posting ID"
//	@Success		200		{object}	response.Envelope{data=[]Application}
//	@Failure		404		{object}	response.Envelope
//	@Router			/portal/postings/{kind}/{id}/applicants [get]
func (h *Handler) ListApplicants(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := scope(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), t.ID, kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*Application{}
	}
	response.OK(w, list)
}

// Get godoc
//
//	@Summary		Get application
//	@Description	Returns an application of the caller's company with signed links to its files.
//	@Tags			portal
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind	path		string	true	"job or internship"
//	@Param			id		path		string	true	"Application ID"
//	@Success		200		{object}	response.Envelope{data=Application}
//	@Failure		404		{object}	response.Envelope
//	@Router			/portal/applications/{kind}/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := scope(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), t.ID, kind, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, a)
}

// Preview godoc
//
//	@Summary		Preview applicant file
//	@Description	Returns a time-limited link rendering the file inline.
//	@Tags			portal
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind		path		string	true	"job or internship"
//	@Param			id			path		string	true	"Application ID"
//	@Param			fileType	path		string	true	"resume or attachment"
//	@Success		200			{object}	Preview
//	@Failure		400			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/portal/preview/{kind}/{id}/{fileType} [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := scope(w, r)
	if !ok {
		return
	}
	ft, err := ParseFileType(chi.URLParam(r, "fileType"))
	if err != nil {
		response.BadRequest(w, "invalid file type")
		return
	}

	p, err := h.svc.FileURL(r.Context(), t.ID, kind, chi.URLParam(r, "id"), ft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

// Stream godoc
//
//	@Summary		Stream applicant file
//	@Description	Serves the file bytes inline. Supports range requests.
//	@Tags			portal
//	@Produce		octet-stream
//	@Security		BearerAuth
//	@Param			kind		path		string	true	"job or internship"
//	@Param			id			path		string	true	"Application ID"
//	@Param			fileType	path		string	true	"resume or attachment"
//	@Success		200			{file}		file
//	@Failure		400			{object}	response.Envelope
//	@Failure		404			{object}	response.Envelope
//	@Router			/portal/stream/{kind}/{id}/{fileType} [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := scope(w, r)
	if !ok {
		return
	}
	ft, err := ParseFileType(chi.URLParam(r, "fileType"))
	if err != nil {
		response.BadRequest(w, "invalid file type")
		return
	}

	rc, filename, err := h.svc.OpenFile(r.Context(), t.ID, kind, chi.URLParam(r, "id"), ft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	content, ok := rc.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(rc)
		if err != nil {
			logger.FromContext(r.Context()).Error("read stored file", zap.Error(err))
			response.InternalError(w)
			return
		}
		content = storage.NewBuffer(data)
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(content, head)
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		response.InternalError(w)
		return
	}

	w.Header().Set("Content-Type", storage.ContentType(filename, head[:n]))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	http.ServeContent(w, r, filename, time.Time{}, content)
}

// Delete godoc
//
//	@Summary		Delete applicant or applicant file
//	@Description	Deletes the whole application, or only its resume or additional attachment.
//	@Description	AJAX callers (X-Requested-With: XMLHttpRequest) get JSON, others are redirected to next.
//	@Tags			portal
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Security		BearerAuth
//	@Param			kind					path		string	true	"job or internship"
//	@Param			postingID				path		string	true	"Posting ID"
//	@Param			id						path		string	true	"Application ID"
//	@Param			delete_resume_only		formData	bool	false	"Delete only the resume"
//	@Param			delete_attachment_only	formData	bool	false	"Delete only the additional attachment"
//	@Param			next					formData	string	false	"Relative redirect target"
//	@Success		200						{object}	deleteData
//	@Success		303
//	@Failure		400						{object}	response.Envelope
//	@Failure		404						{object}	response.Envelope
//	@Router			/portal/{kind}/{postingID}/applicant/{id}/delete [post]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	t, kind, ok := scope(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		response.BadRequest(w, "invalid form")
		return
	}

	mode, err := ParseDeleteMode(formBool(r, "delete_resume_only"), formBool(r, "delete_attachment_only"))
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	postingID := chi.URLParam(r, "postingID")
	res, err := h.svc.Delete(r.Context(), t.ID, kind, postingID, chi.URLParam(r, "id"), mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if isAJAX(r) {
		response.JSON(w, http.StatusOK, deleteData{Success: true, Message: res.Message})
		return
	}
	fallback := fmt.Sprintf("%s/postings/%s/%s/applicants", h.basePath, kind, url.PathEscape(postingID))
	http.Redirect(w, r, safeNext(r.PostFormValue("next"), fallback), http.StatusSeeOther)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, posting.ErrValidation):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrFileMissing):
		response.NotFound(w, "file not found")
	case errors.Is(err, ErrNotFound), errors.Is(err, posting.ErrNotFound):
		response.NotFound(w, "application not found")
	case errors.Is(err, ErrURLUnavailable):
		response.JSON(w, http.StatusInternalServerError, response.Envelope{Message: "could not generate file URL"})
	default:
		logger.FromContext(r.Context()).Error("application request failed", zap.Error(err))
		response.InternalError(w)
	}
}

func scope(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, posting.Kind, bool) {
	t, ok := tenant.FromContext(r.Context())
	if !ok {
		response.Forbidden(w, "no company is linked to this account")
		return nil, "", false
	}
	kind, ok := posting.KindParam(w, r)
	return t, kind, ok
}

// formBool treats any value other than an explicit false as set, so an HTML
// checkbox posting "on" counts.
func formBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.PostFormValue(name))) {
	case "", "false", "0", "off", "no":
		return false
	}
	return true
}

func isAJAX(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest" ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// safeNext accepts only same-origin relative paths.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return next
}
