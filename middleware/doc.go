// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Every request gets an id in the X-Request-ID response header. A client may
supply its own. Logs request start (method, path, remote) and completion
(status, duration_ms).

# Metrics

Count requests under their route pattern:

	middleware.WithLogging(middleware.WithMetrics(m, "GET /years", handler))

# CORS Middleware

Enable cross-origin requests for the ballot frontend:

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type, X-Voter-Token, X-Admin-Key, X-Request-ID.

# Response Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.XMLResponse(w, http.StatusOK, backup)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

Parse JSON request bodies:

	var req models.JoinRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

Get the original client IP (handles X-Forwarded-For, X-Real-IP):

	ip := middleware.GetClientIP(r)
*/
package middleware
