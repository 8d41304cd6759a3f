package interceptor

import (
	"context"

	"go.uber.org/ratelimit"
	"google.golang.org/grpc"
)

func unaryRateLimiter(limiter ratelimit.Limiter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		limiter.Take()
		return handler(ctx, req)
	}
}
