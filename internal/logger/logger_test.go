package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestConnectRequests_WrapUnary(t *testing.T) {
	var buf bytes.Buffer
	interceptor := NewConnectRequests(zerolog.New(&buf))

	ok := interceptor.WrapUnary(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		zerolog.Ctx(ctx).Info().Msg("inside")
		return connect.NewResponse(&struct{}{}), nil
	})
	_, err := ok(context.Background(), connect.NewRequest(&struct{}{}))
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"message":"inside"`)
	require.Contains(t, buf.String(), `"message":"rpc call"`)

	buf.Reset()
	failing := interceptor.WrapUnary(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("denied"))
	})
	_, err = failing(context.Background(), connect.NewRequest(&struct{}{}))
	require.Error(t, err)
	require.Contains(t, buf.String(), `"code":"permission_denied"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
}
