package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/robuust/reverserelations/internal/infrastructure/logger"
)

// UnaryServerInterceptor returns a gRPC interceptor that records every call
// and logs the failed ones. Errors are counted per status code, so calls
// rejected for a misconfigured field (FailedPrecondition) stay apart from
// internal failures.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter, log logger.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		method := info.FullMethod

		collector.RecordRequest(method)
		if exporter != nil {
			exporter.RecordRequest(method)
		}

		resp, err := handler(ctx, req)

		elapsed := time.Since(start)
		collector.RecordDuration(method, elapsed.Seconds())
		if exporter != nil {
			exporter.RecordDuration(method, elapsed.Seconds())
		}

		if err == nil {
			return resp, nil
		}

		code := status.Code(err)
		collector.RecordError(method, code)
		if exporter != nil {
			exporter.RecordError(method, code)
		}
		logFailure(ctx, log, method, code, elapsed, err)

		return resp, err
	}
}

// logFailure logs caller mistakes at debug level, configuration problems as
// warnings and everything else as errors.
func logFailure(ctx context.Context, log logger.Logger, method string, code codes.Code, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	}

	switch code {
	case codes.InvalidArgument, codes.NotFound, codes.Canceled, codes.DeadlineExceeded:
		log.DebugWithContext(ctx, "request rejected", fields...)
	case codes.FailedPrecondition:
		log.WarnWithContext(ctx, "request failed on field configuration", fields...)
	default:
		log.ErrorWithContext(ctx, "request failed", fields...)
	}
}
