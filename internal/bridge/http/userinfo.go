package http

import (
	"errors"
	"net/http"

	"github.com/d64ev/humhub-bridge/internal/bridge/store"
	"github.com/d64ev/humhub-bridge/pkg/httpx"
)

// UserinfoHandler returns the authoritative local record for the session's
// subject, external mirror attributes included.
type UserinfoHandler struct {
	Store store.Store
}

type userinfoResponse struct {
	Sub           string `json:"sub"`
	Username      string `json:"username"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`

	ExternalID          string `json:"external_id,omitempty"`
	ExternalDisplayName string `json:"external_display_name,omitempty"`
	ExternalProfileURL  string `json:"external_profile_url,omitempty"`
	ExternalImageURL    string `json:"external_image_url,omitempty"`
}

func (h *UserinfoHandler) Handle(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "missing session",
		})
		return
	}

	u, err := h.Store.Users().GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Token outlived the record it points at.
			httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "unknown subject",
			})
			return
		}
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, userinfoResponse{
		Sub:                 u.ID,
		Username:            u.Username,
		Email:               u.Email,
		EmailVerified:       u.EmailVerified,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		ExternalID:          u.ExternalID,
		ExternalDisplayName: u.ExternalDisplayName,
		ExternalProfileURL:  u.ExternalProfileURL,
		ExternalImageURL:    u.ExternalImageURL,
	})
}
