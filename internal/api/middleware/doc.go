// Package middleware provides the gin middleware stack for the terminal API.
//
//   - CORS: gin-contrib/cors with configurable origins; OriginChecker applies
//     the same policy to websocket upgrades
//   - RateLimit: per-IP token buckets (x/time/rate) with idle-client sweeping
//   - RequestID: ULID request ids in the X-Request-ID header
//   - Logger: one zap line per request
//
// Example Usage:
//
//	limiter := middleware.NewLimiter(middleware.DefaultRateLimitConfig())
//	go limiter.Run(ctx, time.Minute)
//	router.Use(middleware.RequestID(), middleware.Logger(log))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(limiter.Handler())
package middleware
