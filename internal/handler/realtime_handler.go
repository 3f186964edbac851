package handler

import (
	"net/http"
	"strings"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/realtime"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// RealtimeAuthenticator adapts the auth service into the hub's
// pre-upgrade check. The token comes from the Authorization header or,
// for browser websocket clients that cannot set headers, the token
// query parameter. Identity and hostel come from the signed claims.
func RealtimeAuthenticator(auth tokenValidator) realtime.Authenticator {
	return func(r *http.Request) (models.Actor, error) {
		token := bearerToken(r)
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			return models.Actor{}, appErrors.ErrUnauthorized
		}
		claims, err := auth.ValidateToken(token)
		if err != nil {
			return models.Actor{}, err
		}
		return claims.Actor(), nil
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
