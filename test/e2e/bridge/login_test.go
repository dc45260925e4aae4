package bridge_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestE2E_Livez(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/livez")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
}

func TestE2E_LoginChallengeDescriptor(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	resp, err := http.Get(baseURL + "/v1/login")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID     string   `json:"id"`
		Fields []string `json:"fields"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "humhub-authenticator", body.ID)
	require.Equal(t, []string{"username", "password"}, body.Fields)
}

func TestE2E_LoginFlow(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	t.Run("missing input returns 400", func(t *testing.T) {
		resp := postLoginForm(t, baseURL, "admin", "")
		defer resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bogus credentials rejected with provider down", func(t *testing.T) {
		resp := postLoginForm(t, baseURL, "nobody", "whatever")
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body struct {
			Error string `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, "invalid username or password", body.Error)
	})

	t.Run("bootstrap user logs in locally", func(t *testing.T) {
		resp := postLoginForm(t, baseURL, bootstrapUsername, bootstrapPassword)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			User        struct {
				Username string `json:"username"`
			} `json:"user"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Equal(t, "Bearer", body.TokenType)
		require.NotEmpty(t, body.AccessToken)
		require.Equal(t, bootstrapUsername, body.User.Username)

		t.Run("userinfo with session token", func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, baseURL+"/v1/userinfo", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+body.AccessToken)

			uiResp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer uiResp.Body.Close()

			require.Equal(t, http.StatusOK, uiResp.StatusCode)

			var info struct {
				Sub      string `json:"sub"`
				Username string `json:"username"`
			}
			require.NoError(t, json.NewDecoder(uiResp.Body).Decode(&info))
			require.Equal(t, bootstrapUsername, info.Username)
			require.NotEmpty(t, info.Sub)
		})
	})

	t.Run("userinfo without token rejected", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/v1/userinfo")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong bootstrap password rejected", func(t *testing.T) {
		resp := postLoginForm(t, baseURL, bootstrapUsername, "not-the-password")
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestE2E_MetricsExposed(t *testing.T) {
	baseURL, cleanup := setupBridgeContainer(t)
	defer cleanup()

	// Produce at least one decision so the counters exist.
	resp := postLoginForm(t, baseURL, bootstrapUsername, bootstrapPassword)
	resp.Body.Close()

	mResp, err := http.Get(baseURL + "/metrics")
	require.NoError(t, err)
	defer mResp.Body.Close()
	require.Equal(t, http.StatusOK, mResp.StatusCode)
}
