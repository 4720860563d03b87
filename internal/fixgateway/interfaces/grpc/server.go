// Package grpc wires health checking and reflection onto the gateway's
// gRPC server. A bespoke session-control RPC surface would need a
// generated go-api/fixgateway/v1 package that this module does not own
// a source of; the admin HTTP API (interfaces/http) covers that surface
// instead, so this package stays deliberately thin.
package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// RegisterServer attaches the standard gRPC health and reflection
// services to srv, and marks serviceName SERVING.
func RegisterServer(srv *grpc.Server, serviceName string) *health.Server {
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)
	return healthSrv
}
