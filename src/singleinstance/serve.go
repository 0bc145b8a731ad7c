package singleinstance

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Serve answers requests from srv with h until ctx is done or srv is closed.
// Requests are handled one at a time, in arrival order.
func Serve(ctx context.Context, srv Server, h Handler) error {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return err
		}
		if err := respond(ctx, conn, h); err != nil {
			logrus.Warnf("singleinstance: reply failed: %v", err)
		}
	}
}

func respond(ctx context.Context, conn Conn, h Handler) error {
	var result *multierror.Error
	state, err := h(ctx, conn.Request().Verb)
	if err != nil {
		result = multierror.Append(result, conn.RespondError(err.Error()))
	} else {
		result = multierror.Append(result, conn.RespondSuccess(state))
	}
	result = multierror.Append(result, conn.Close())
	return result.ErrorOrNil()
}
