package user

import (
	"net/http"

	"github.com/techspire01/ciadev/internal/auth"
	"github.com/techspire01/ciadev/internal/response"
	"github.com/techspire01/ciadev/internal/tenant"
)

// Handler holds HTTP handlers for user-related endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new user Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type meData struct {
	User   *User          `json:"user"`
	Tenant *tenant.Tenant `json:"tenant"`
}

// GetMe godoc
//
//	@Summary		Get current account
//	@Description	Returns the authenticated principal and the company it controls.
//	@Tags			portal
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=meData}
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/portal/me [get]
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.svc.GetByID(r.Context(), p.ID)
	if err != nil {
		if h.svc.IsNotFound(err) {
			response.NotFound(w, "user not found")
			return
		}
		response.InternalError(w)
		return
	}

	t, _ := tenant.FromContext(r.Context())
	response.OK(w, meData{User: u, Tenant: t})
}
