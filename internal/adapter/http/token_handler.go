package http

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/aq2208/gorder-scalapay/configs"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type TokenConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	TTL       time.Duration
	Clients   map[string]configs.Client
}

type TokenHandler struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenHandler(cfg TokenConfig) *TokenHandler {
	return &TokenHandler{cfg: cfg, now: time.Now}
}

// POST /v1/token (form)
// Accepts: client_id, client_secret
// Optional: scope (space-separated subset of client's perms)
func (h *TokenHandler) IssueToken(c *gin.Context) {
	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}

	cl, ok := h.cfg.Clients[clientID]
	if !ok || !cl.Enabled || clientSecret != cl.Secret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}

	perms := cl.Perms
	if scope := strings.Fields(c.PostForm("scope")); len(scope) > 0 {
		for _, s := range scope {
			if !slices.Contains(cl.Perms, s) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_scope"})
				return
			}
		}
		perms = scope
	}

	now := h.now()
	claims := jwt.MapClaims{
		"iss":      h.cfg.Issuer,
		"aud":      h.cfg.Audience,
		"sub":      clientID,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(h.cfg.TTL).Unix(),
		"clientID": clientID,
		"perms":    perms,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int64(h.cfg.TTL.Seconds()),
	})
}
