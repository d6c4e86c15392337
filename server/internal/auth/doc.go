// Package auth provides authentication middleware for the rollup server.
//
// APIKeyInterceptor(mode, header, key) guards the gRPC report endpoint and
// RequireKey guards mutating REST calls with the same key and header.
//
// When mode != "apikey" or key == "", all calls pass through (useful for local
// development with auth disabled).
package auth
