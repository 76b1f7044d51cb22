// Copyright (c) 2026 Inkwell. All rights reserved.

package middleware

import (
	"net/http"
	"strings"

	"github.com/nhatvu/inkwell/internal/platform/constants"
	"github.com/nhatvu/inkwell/internal/platform/ctxutil"
	"github.com/nhatvu/inkwell/internal/platform/sec"
)

// # Authentication

// TokenVerifier validates a bearer token and returns its claims.
type TokenVerifier interface {
	VerifyToken(token string) (*sec.AuthClaims, error)
}

// Authenticate resolves the Authorization header into request-scoped user
// claims.
//
// The middleware is permissive: a request without credentials continues
// unauthenticated and individual handlers decide whether to require a user
// (via requestutil.RequiredClaims). A request that presents a token that
// fails verification is rejected immediately with a 401 and the standard
// bearer challenge, so clients learn to re-authenticate rather than
// silently degrading to anonymous access.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			header := request.Header.Get(constants.HeaderAuthorization)
			if header == "" {
				next.ServeHTTP(writer, request)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found {
				challenge(writer)
				return
			}

			claims, err := verifier.VerifyToken(strings.TrimSpace(token))
			if err != nil {
				challenge(writer)
				return
			}

			ctx := ctxutil.WithAuthUser(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// challenge writes a 401 with the WWW-Authenticate header preserved.
func challenge(writer http.ResponseWriter) {
	writer.Header().Set(constants.HeaderWWWAuthenticate, constants.BearerChallenge)
	writeError(writer, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired credentials")
}
