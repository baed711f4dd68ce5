package grpc

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

func TestToStatusMapsAppErrors(t *testing.T) {
	err := toStatus(errorbank.NotFound("order not found"))
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.NotFound || st.Message() != "order not found" {
		t.Fatalf("status = %v", err)
	}

	plain := errors.New("plain")
	if toStatus(plain) != plain {
		t.Fatal("foreign errors pass through")
	}
	if toStatus(nil) != nil {
		t.Fatal("nil stays nil")
	}
}

func TestHealthStartsNotServing(t *testing.T) {
	hs := NewHealth()
	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: OrderStoreService})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v", resp.Status)
	}
}
