package grpcbilling

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/uozi-tech/billing-sdk-go/billing"
)

// Authorizer decides whether a caller may proceed. *billing.Client
// implements it.
type Authorizer interface {
	RequireAPIKey(md billing.RequestMetadata) billing.Decision
}

type apiKeyContextKey struct{}

// APIKeyFromContext returns the key authorised for this call.
func APIKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(apiKeyContextKey{}).(string)
	return key, ok && key != ""
}

// ContextWithAPIKey attaches an authorised key to ctx.
func ContextWithAPIKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, apiKeyContextKey{}, key)
}

// authorize checks the incoming metadata and returns a context carrying the
// key, or a gRPC status error. Missing keys map to Unauthenticated; blocked
// and unknown keys map to PermissionDenied.
func authorize(ctx context.Context, a Authorizer) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	d := a.RequireAPIKey(billing.MetadataFromMap(md))
	if !d.Allowed {
		code := codes.PermissionDenied
		if d.Reason == billing.ReasonMissingKey {
			code = codes.Unauthenticated
		}
		return ctx, status.Error(code, d.Err().Error())
	}
	return ContextWithAPIKey(ctx, d.APIKey), nil
}

// UnaryServerInterceptor rejects unary calls without an authorised API key.
func UnaryServerInterceptor(a Authorizer) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authorize(ctx, a)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor rejects streams without an authorised API key.
func StreamServerInterceptor(a Authorizer) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authorize(ss.Context(), a)
		if err != nil {
			return err
		}
		return handler(srv, &authorizedStream{ServerStream: ss, ctx: ctx})
	}
}

type authorizedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authorizedStream) Context() context.Context {
	return s.ctx
}
