package errorbank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

func TestStatusCodeAndGRPCCode(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{Validation("rejected"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Network("offline"), http.StatusBadGateway, codes.Unavailable},
		{Server("upstream"), http.StatusBadGateway, codes.Unknown},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}

	for _, tt := range tests {
		if got := tt.err.StatusCode(); got != tt.status {
			t.Errorf("%s: StatusCode() = %d, want %d", tt.err.Kind(), got, tt.status)
		}
		if got := tt.err.GRPCCode(); got != tt.code {
			t.Errorf("%s: GRPCCode() = %v, want %v", tt.err.Kind(), got, tt.code)
		}
	}
}

func TestFromWrapsForeignErrors(t *testing.T) {
	appErr := From(errors.New("plain"))
	if appErr.Kind() != KindInternal {
		t.Fatalf("kind = %q, want internal", appErr.Kind())
	}

	original := NotFound("order not found")
	wrapped := fmt.Errorf("loading: %w", original)
	if got := From(wrapped); got != original {
		t.Fatalf("From did not unwrap the original AppError")
	}

	if From(nil) != nil {
		t.Fatal("From(nil) should be nil")
	}
}

func TestIsAndUnwrap(t *testing.T) {
	err := Network("request failed", WithCause(context.DeadlineExceeded))
	if !Is(err, KindNetwork) {
		t.Error("expected network kind")
	}
	if Is(err, KindServer) {
		t.Error("did not expect server kind")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("cause should be reachable through errors.Is")
	}
	if Is(errors.New("plain"), KindNetwork) {
		t.Error("plain errors carry no kind")
	}
}

func TestDetails(t *testing.T) {
	err := Validation("invalid status",
		WithDetail("field", "status"),
		WithDetails(map[string]any{"value": "cooking"}),
	)
	if err.Details()["field"] != "status" || err.Details()["value"] != "cooking" {
		t.Fatalf("unexpected details: %v", err.Details())
	}
	if err.Error() != "invalid status" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
