package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// CurrentUserID returns the authenticated user id stored by Middleware.
func CurrentUserID(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(UserIDKey).(uint)
	return id, ok
}

// Middleware authenticates operations that declare a security requirement,
// accepting a Bearer token or the auth_token cookie. Cookie sessions past
// half their lifetime get a fresh cookie.
func (h *AuthHandler) Middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op == nil || len(op.Security) == 0 {
			next(ctx)
			return
		}

		tokenString := bearer(ctx.Header("Authorization"))
		fromCookie := false
		if tokenString == "" {
			if cookie, err := huma.ReadCookie(ctx, CookieName); err == nil {
				tokenString = cookie.Value
				fromCookie = true
			}
		}
		if tokenString == "" {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: No token found")
			return
		}

		claims, err := h.ParseToken(tokenString)
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: Invalid token")
			return
		}
		userID, err := UserID(claims)
		if err != nil {
			huma.WriteErr(api, ctx, http.StatusUnauthorized, "Unauthorized: Invalid token claims")
			return
		}

		if exp, ok := claims["exp"].(float64); ok && fromCookie {
			remaining := time.Until(time.Unix(int64(exp), 0))
			if remaining < TokenDuration/2 {
				if newToken, err := h.GenerateToken(userID); err == nil {
					cookie := &http.Cookie{
						Name:     CookieName,
						Value:    newToken,
						Expires:  time.Now().Add(TokenDuration),
						HttpOnly: true,
						Path:     "/",
					}
					ctx.AppendHeader("Set-Cookie", cookie.String())
				}
			}
		}

		next(huma.WithValue(ctx, UserIDKey, userID))
	}
}
