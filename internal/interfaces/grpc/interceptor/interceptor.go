package interceptor

import (
	middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"go.uber.org/ratelimit"
	"google.golang.org/grpc"
)

// UnaryInterceptor returns the unary interceptor logging every call and
// limiting the calls to maxRequestsPerSecond, if positive.
func UnaryInterceptor(maxRequestsPerSecond int) grpc.ServerOption {
	interceptors := []grpc.UnaryServerInterceptor{unaryLogger}
	if maxRequestsPerSecond > 0 {
		interceptors = append(
			interceptors, unaryRateLimiter(ratelimit.New(maxRequestsPerSecond)),
		)
	}
	return grpc.UnaryInterceptor(middleware.ChainUnaryServer(interceptors...))
}
