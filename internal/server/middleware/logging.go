// Package middleware holds the HTTP server middleware.
package middleware

import (
	"context"
	"strings"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// slowRequestThreshold marks requests worth calling out separately.
const slowRequestThreshold = time.Second

// Logging returns a middleware that logs one line per request: method,
// path, status, duration and client address. Slow requests get an extra
// warning line.
func Logging(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			start := time.Now()

			var method, path, ip string
			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}
					ip = clientIP(httpReq)
				}
			}

			reply, err := handler(ctx, req)

			duration := time.Since(start)
			status := 200
			if err != nil {
				status = int(kerrors.FromError(err).Code)
			}

			helper.Infow("http request",
				"method", method,
				"path", path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"ip", ip)

			if duration > slowRequestThreshold {
				helper.Warnw("slow request",
					"method", method,
					"path", path,
					"duration_ms", duration.Milliseconds())
			}

			return reply, err
		}
	}
}

// clientIP resolves the client address, preferring proxy headers.
func clientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(forwarded)
	}
	return req.RemoteAddr
}
