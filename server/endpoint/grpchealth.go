package endpoint

import (
	"context"
	"net/http"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/kbukum/meshkit/component"
	"github.com/kbukum/meshkit/logger"
	"github.com/kbukum/meshkit/observability"
)

// GRPCHealthPath is the mount prefix of the grpc.health.v1 service.
const GRPCHealthPath = "/grpc.health.v1.Health/"

// GRPCHealth serves grpc.health.v1.Health/Check over HTTP/2 from the same
// component health as GET /health. The empty service name and serviceName
// report the overall status; any other name is looked up as a component.
// Degraded counts as SERVING.
func GRPCHealth(serviceName string, checker HealthChecker, log *logger.Logger) http.Handler {
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogging(logger.OrNop(log).WithComponent("grpc-health"))))
	healthpb.RegisterHealthServer(gs, &healthService{service: serviceName, checker: checker})
	return gs
}

type healthService struct {
	healthpb.UnimplementedHealthServer
	service string
	checker HealthChecker
}

func (h *healthService) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	var healths []component.Health
	if h.checker != nil {
		healths = h.checker(ctx)
	}

	name := req.GetService()
	if name == "" || name == h.service {
		sh := observability.NewServiceHealth(h.service, "")
		for _, c := range healths {
			sh.AddComponent(c)
		}
		return servingStatus(sh.Status), nil
	}
	for _, c := range healths {
		if c.Name == name {
			return servingStatus(c.Status), nil
		}
	}
	return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
}

func servingStatus(s component.HealthStatus) *healthpb.HealthCheckResponse {
	if s == component.StatusUnhealthy {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}
}

func unaryLogging(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := logger.Fields(
			"method", path.Base(info.FullMethod),
			logger.FieldDuration, time.Since(start).Milliseconds(),
			logger.FieldStatus, status.Code(err).String(),
		)
		if err != nil {
			log.WithContext(ctx).Warn("gRPC call failed", logger.MergeWithError(fields, err))
			return resp, err
		}
		log.WithContext(ctx).Debug("gRPC call completed", fields)
		return resp, nil
	}
}
