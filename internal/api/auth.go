package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// VerifyConfig configures bearer token verification for the installer.
// Secret is the HS256 key; AllowedIssuer and AllowedAudience are checked
// when set; ClockSkew widens exp and nbf.
type VerifyConfig struct {
	Secret          []byte
	AllowedIssuer   string
	AllowedAudience string
	ClockSkew       time.Duration
}

const claimsKey = "jwt_claims"

// ClaimsFromContext returns the verified claims stored by RequireJWT.
func ClaimsFromContext(c *gin.Context) jwt.MapClaims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(jwt.MapClaims); ok {
			return claims
		}
	}
	return nil
}

// RequireJWT rejects requests without a valid HS256 bearer token.
func RequireJWT(cfg VerifyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(cfg.Secret) == 0 {
			abort(c, http.StatusInternalServerError, errors.New("jwt secret not configured"))
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
			abort(c, http.StatusUnauthorized, errors.New("missing or invalid Authorization header"))
			return
		}
		tok, err := jwt.Parse(strings.TrimSpace(auth[len("Bearer "):]), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return cfg.Secret, nil
		}, jwt.WithLeeway(cfg.ClockSkew))
		if err != nil || !tok.Valid {
			abort(c, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, http.StatusUnauthorized, errors.New("invalid token claims"))
			return
		}
		if err := checkClaims(claims, cfg); err != nil {
			abort(c, http.StatusUnauthorized, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func checkClaims(c jwt.MapClaims, cfg VerifyConfig) error {
	if cfg.AllowedIssuer != "" {
		if iss, _ := c.GetIssuer(); iss != cfg.AllowedIssuer {
			return errors.New("invalid iss")
		}
	}
	if cfg.AllowedAudience != "" {
		aud, _ := c.GetAudience()
		for _, a := range aud {
			if a == cfg.AllowedAudience {
				return nil
			}
		}
		return errors.New("invalid aud")
	}
	return nil
}
