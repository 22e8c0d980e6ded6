package logger

import (
	"context"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

// Setup returns the process logger: JSON on stderr, or a human readable console at debug level in dev.
func Setup(dev bool) zerolog.Logger {
	if !dev {
		return zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().
			Timestamp().
			Str("service", "propertyos").
			Logger()
	}

	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(zerolog.DebugLevel).With().
		Timestamp().
		Caller().
		Stack().
		Logger()
}

var _ connect.Interceptor = (*ConnectRequests)(nil)

// ConnectRequests logs one line per dashboard API call, carrying the procedure and outcome.
type ConnectRequests struct {
	logger zerolog.Logger
}

func NewConnectRequests(logger zerolog.Logger) *ConnectRequests {
	return &ConnectRequests{logger: logger}
}

func (c *ConnectRequests) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return connect.UnaryFunc(func(
		ctx context.Context,
		req connect.AnyRequest,
	) (connect.AnyResponse, error) {
		started := time.Now()

		// prefer the request-scoped logger installed by the HTTP middleware
		base := c.logger
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			base = *l
		}

		ctx = base.With().
			Str("procedure", req.Spec().Procedure).
			Str("protocol", req.Peer().Protocol).
			Logger().WithContext(ctx)

		resp, err := next(ctx, req)

		if err != nil {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("code", connect.CodeOf(err).String()).
				Dur("duration", time.Since(started)).
				Msg("rpc call")

			return resp, err
		}

		zerolog.Ctx(ctx).Info().
			Dur("duration", time.Since(started)).
			Msg("rpc call")

		return resp, err
	})
}

// WrapStreamingClient is a no-op; the dashboard API has no streaming procedures.
func (c *ConnectRequests) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler is a no-op; the dashboard API has no streaming procedures.
func (c *ConnectRequests) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
