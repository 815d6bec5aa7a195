package grpcbilling

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/uozi-tech/billing-sdk-go/billing"
)

// defaultQuantity is billed when Usage.Quantity is nil.
const defaultQuantity = 1

// Reporter publishes usage. *billing.Client implements it.
type Reporter interface {
	ReportUsage(ctx context.Context, rec billing.Record) error
}

// Usage describes how one call is billed.
type Usage struct {
	Module string
	Model  string

	// Quantity computes the billable amount. resp is the zero value when the
	// handler failed. Nil bills 1.
	Quantity func(req, resp any) int64

	// Metadata adds context to the record. Optional.
	Metadata func(req, resp any) billing.Metadata
}

func (u Usage) record(apiKey string, req, resp any) billing.Record {
	quantity := int64(defaultQuantity)
	if u.Quantity != nil {
		quantity = u.Quantity(req, resp)
	}
	var md billing.Metadata
	if u.Metadata != nil {
		md = u.Metadata(req, resp)
	}
	return billing.NewRecord(apiKey, u.Module, u.Model, quantity, md)
}

// UsageResolver picks the Usage for a full gRPC method name. Methods it
// does not know are not billed.
type UsageResolver func(fullMethod string) (Usage, bool)

// Methods resolves usage from a fixed table keyed by full method name.
func Methods(table map[string]Usage) UsageResolver {
	return func(fullMethod string) (Usage, bool) {
		u, ok := table[fullMethod]
		return u, ok
	}
}

// TrackUsage runs fn and then reports usage for the key in ctx, whether or
// not fn failed. The report is not cut short by ctx cancellation. A failed
// report is joined to fn's error.
func TrackUsage[T any](ctx context.Context, r Reporter, u Usage, req any, fn func(context.Context) (T, error)) (resp T, err error) {
	defer func() {
		apiKey, _ := APIKeyFromContext(ctx)
		if reportErr := r.ReportUsage(context.WithoutCancel(ctx), u.record(apiKey, req, resp)); reportErr != nil {
			err = errors.Join(err, reportErr)
		}
	}()
	return fn(ctx)
}

// UsageInterceptor reports usage for every call resolve knows, after the
// handler returns. Place it after UnaryServerInterceptor; without an
// authorised key in the context it falls back to the key in the request
// metadata.
//
// A failed report becomes an Unavailable status joined to the handler's
// error, so the caller learns the call was not billed.
func UsageInterceptor(r Reporter, resolve UsageResolver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		u, ok := resolve(info.FullMethod)
		if !ok {
			return handler(ctx, req)
		}
		if _, ok := APIKeyFromContext(ctx); !ok {
			md, _ := metadata.FromIncomingContext(ctx)
			if key, found := billing.ExtractAPIKey(billing.MetadataFromMap(md)); found {
				ctx = ContextWithAPIKey(ctx, key)
			}
		}

		resp, err := TrackUsage(ctx, reporterFunc(func(ctx context.Context, rec billing.Record) error {
			if err := r.ReportUsage(ctx, rec); err != nil {
				return status.Errorf(codes.Unavailable, "usage report failed: %v", err)
			}
			return nil
		}), u, req, func(ctx context.Context) (any, error) {
			return handler(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
}

type reporterFunc func(ctx context.Context, rec billing.Record) error

func (f reporterFunc) ReportUsage(ctx context.Context, rec billing.Record) error {
	return f(ctx, rec)
}
