package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/isovault/backend/src/database"
	"github.com/username/isovault/backend/src/logger"
	"github.com/username/isovault/backend/src/model"
	"github.com/username/isovault/backend/src/security"
	"github.com/username/isovault/backend/src/utils"
)

type AuthHandler struct {
	authService *security.AuthService
	clientCache *cache.Cache
}

func NewAuthHandler(authService *security.AuthService, clientCache *cache.Cache) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		clientCache: clientCache,
	}
}

type tokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// HandleIssueToken exchanges client credentials for a bearer token carrying
// the client's reveal-pan capability.
func (h *AuthHandler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		utils.SendJSONError(w, "client_id and client_secret are required", http.StatusBadRequest)
		return
	}

	client, err := model.GetAPIClientByClientID(database.DB, req.ClientID)
	if err != nil {
		if errors.Is(err, model.ErrAPIClientNotFound) {
			logger.FromContext(r.Context()).Warn("Token request for unknown client", "clientID", req.ClientID)
			utils.SendJSONError(w, "Invalid client credentials", http.StatusUnauthorized)
			return
		}
		logger.FromContext(r.Context()).Error("Client lookup failed during token issuance", "clientID", req.ClientID, "error", err)
		utils.SendJSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	if err := client.CheckSecret(req.ClientSecret); err != nil {
		logger.FromContext(r.Context()).Warn("Token request with bad secret", "clientID", req.ClientID)
		utils.SendJSONError(w, "Invalid client credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.authService.IssueToken(client.ClientID, client.CanRevealPAN)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to sign token", "clientID", req.ClientID, "error", err)
		utils.SendJSONError(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	logger.FromContext(r.Context()).Info("Token issued", "clientID", client.ClientID, "canRevealPAN", client.CanRevealPAN)
	utils.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	})
}
