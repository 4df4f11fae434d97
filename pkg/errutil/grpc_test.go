package errutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCode(t *testing.T) {
	cases := []struct {
		status CoreStatus
		code   codes.Code
	}{
		{StatusBadRequest, codes.InvalidArgument},
		{StatusValidationFailed, codes.InvalidArgument},
		{StatusUnauthorized, codes.Unauthenticated},
		{StatusForbidden, codes.PermissionDenied},
		{StatusNotFound, codes.NotFound},
		{StatusConflict, codes.AlreadyExists},
		{StatusTooManyRequests, codes.ResourceExhausted},
		{StatusTimeout, codes.DeadlineExceeded},
		{StatusGatewayTimeout, codes.DeadlineExceeded},
		{StatusClientClosedRequest, codes.Canceled},
		{StatusServiceUnavailable, codes.Unavailable},
		{StatusInternal, codes.Internal},
		{StatusUnknown, codes.Unknown},
	}

	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			require.Equal(t, tc.code, tc.status.GRPCCode())
		})
	}
}

func TestToGRPCError(t *testing.T) {
	require.NoError(t, ToGRPCError(nil))

	t.Run("base error", func(t *testing.T) {
		err := ToGRPCError(Forbidden("module not licensed"))
		st, ok := status.FromError(err)
		require.True(t, ok)
		require.Equal(t, codes.PermissionDenied, st.Code())
		require.Equal(t, "module not licensed", st.Message())
	})

	t.Run("wrapped cause is kept in the message", func(t *testing.T) {
		err := ToGRPCError(Internal("failed to read license", WithErr(errors.New("connection refused"))))
		st, ok := status.FromError(err)
		require.True(t, ok)
		require.Equal(t, codes.Internal, st.Code())
		require.Contains(t, st.Message(), "connection refused")
	})

	t.Run("existing status error passes through", func(t *testing.T) {
		orig := status.Error(codes.NotFound, "no such tenant")
		require.Equal(t, orig, ToGRPCError(orig))
	})

	t.Run("context errors", func(t *testing.T) {
		st, _ := status.FromError(ToGRPCError(context.Canceled))
		require.Equal(t, codes.Canceled, st.Code())

		st, _ = status.FromError(ToGRPCError(context.DeadlineExceeded))
		require.Equal(t, codes.DeadlineExceeded, st.Code())
	})

	t.Run("plain error maps to internal", func(t *testing.T) {
		st, _ := status.FromError(ToGRPCError(errors.New("boom")))
		require.Equal(t, codes.Internal, st.Code())
	})
}
