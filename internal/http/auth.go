package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const ownerIDKey contextKey = "owner_id"

// parseToken extracts and validates the bearer token, returning the
// owner id carried in the user_id claim.
func (s *Server) parseToken(r *http.Request) (int64, error) {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		return 0, fmt.Errorf("missing token")
	}

	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}
	rawID, ok := claims["user_id"].(float64)
	if !ok || rawID <= 0 {
		return 0, fmt.Errorf("invalid token claims")
	}
	return int64(rawID), nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.parseToken(r)
		if err != nil {
			unauthorized(w, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownerID returns the authenticated owner stashed by requireAuth.
func ownerID(r *http.Request) int64 {
	id, _ := r.Context().Value(ownerIDKey).(int64)
	return id
}
