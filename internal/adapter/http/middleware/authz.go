package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxPrincipal = "principal"
	ctxPerms     = "perms"
)

type AuthzConfig struct {
	JWTSecret     string
	Issuer        string
	Audience      string
	SessionCookie string
}

type Authz struct {
	cfg AuthzConfig
}

func NewAuthz(cfg AuthzConfig) *Authz {
	return &Authz{cfg: cfg}
}

// Require checks JWT and ensures all required permissions are present
func (a *Authz) Require(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		claims, err := a.parse(raw)
		if err != nil {
			unauth(c, "invalid_token", err.Error())
			return
		}

		perms := extractPerms(claims)
		if !hasAll(perms, requiredPerms) {
			forbidden(c, "insufficient_scope", "missing required permissions")
			return
		}

		c.Set(ctxPrincipal, subject(claims))
		c.Set(ctxPerms, perms)
		c.Next()
	}
}

// Session resolves the shopper's session from a bearer token or the session cookie.
// It never aborts: browser redirects must always reach the handler.
func (a *Authz) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c)
		if !ok && a.cfg.SessionCookie != "" {
			if ck, err := c.Cookie(a.cfg.SessionCookie); err == nil && ck != "" {
				raw, ok = ck, true
			}
		}
		if ok {
			if claims, err := a.parse(raw); err == nil {
				c.Set(ctxPrincipal, subject(claims))
			}
		}
		c.Next()
	}
}

// Principal is the authenticated subject, or "" when there is none.
func Principal(c *gin.Context) string {
	return c.GetString(ctxPrincipal)
}

func (a *Authz) parse(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(a.cfg.JWTSecret), nil
	}, jwt.WithLeeway(30*time.Second)) // small clock skew
	if err != nil || !token.Valid {
		return nil, errors.New("invalid jwt")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims parsing error")
	}
	if claims["iss"] != a.cfg.Issuer || claims["aud"] != a.cfg.Audience {
		return nil, errors.New("iss/aud mismatch")
	}
	return claims, nil
}

func bearer(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

func subject(claims jwt.MapClaims) string {
	if s, ok := claims["sub"].(string); ok && s != "" {
		return s
	}
	s, _ := claims["clientID"].(string)
	return s
}

func extractPerms(claims jwt.MapClaims) map[string]string {
	out := map[string]string{}
	if arr, ok := claims["perms"].([]any); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				out[s] = ""
			}
		}
	}
	return out
}

func hasAll(have map[string]string, req []string) bool {
	for _, r := range req {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
