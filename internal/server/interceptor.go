package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/manekies/document-converter-app/internal/common"
)

// RequestIDHeader is the metadata key carrying a caller-chosen request id.
const RequestIDHeader = "x-request-id"

// UnaryInterceptor tags each call with a request id, maps application errors onto gRPC
// status codes and logs the outcome.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		reqID := incomingRequestID(ctx)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, reqID))
		start := time.Now()

		resp, err := handler(ctx, req)
		err = common.ToStatus(err)
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			logger.Warn("grpc.call.failed", "method", info.FullMethod, "req_id", reqID,
				"code", status.Code(err).String(), "elapsed_ms", elapsed, "error", err)
			return nil, err
		}
		logger.Info("grpc.call.ok", "method", info.FullMethod, "req_id", reqID, "elapsed_ms", elapsed)
		return resp, nil
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(RequestIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}
