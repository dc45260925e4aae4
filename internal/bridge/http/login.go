package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/d64ev/humhub-bridge/internal/bridge/service"
	"github.com/d64ev/humhub-bridge/internal/bridge/token"
	"github.com/d64ev/humhub-bridge/pkg/httpx"
)

// challengeDescriptor describes the login form to callers of GET /v1/login.
// Integrators use it to render the challenge and learn the field names POST
// expects.
type challengeDescriptor struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Category     string   `json:"category"`
	HelpText     string   `json:"help_text"`
	Requirements []string `json:"requirements"`
	Fields       []string `json:"fields"`
}

var loginDescriptor = challengeDescriptor{
	ID:          "humhub-authenticator",
	DisplayName: "HumHub Authenticator",
	Category:    "humhub-auth",
	HelpText:    "Hybrid login with on-demand user import and credential sync against a HumHub instance.",
	Requirements: []string{
		"alternative",
		"required",
	},
	Fields: []string{"username", "password"},
}

// LoginHandler runs the credential challenge: GET describes it, POST decides
// it.
type LoginHandler struct {
	Pipeline *service.Pipeline
	Tokens   *token.Provider
	Logger   *slog.Logger
}

// HandleGet returns the challenge descriptor.
func (h *LoginHandler) HandleGet(w http.ResponseWriter, _ *http.Request) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, loginDescriptor)
}

type loginResponse struct {
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	User        loginUserInfo `json:"user"`
}

type loginUserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// HandlePost runs one login attempt. Incomplete input re-presents the
// challenge with 400; a rejection is always the same 401 body; success
// returns a session token.
func (h *LoginHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid form data",
		})
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	decision, err := h.Pipeline.Decide(r.Context(), username, password)
	if err != nil {
		h.Logger.Error("login decision failed", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
		return
	}

	httpx.NoCache(w)
	switch decision.Outcome {
	case service.OutcomeNeedsInput:
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":     "missing credentials",
			"challenge": loginDescriptor,
		})

	case service.OutcomeRejected:
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error": service.RejectionMessage,
		})

	case service.OutcomeAuthenticated:
		signed, expiresAt, err := h.Tokens.Issue(decision.User)
		if err != nil {
			h.Logger.Error("session token issue failed", "error", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "internal error",
			})
			return
		}

		httpx.WriteJSON(w, http.StatusOK, loginResponse{
			AccessToken: signed,
			TokenType:   "Bearer",
			ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
			User: loginUserInfo{
				ID:          decision.User.ID,
				Username:    decision.User.Username,
				Email:       decision.User.Email,
				DisplayName: decision.User.ExternalDisplayName,
			},
		})

	default:
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error",
		})
	}
}
