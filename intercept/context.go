package intercept

import (
	"context"
	"io"
	"net/http"

	"github.com/jonwraymond/httpchain/observe"
)

type clientKey struct{}

// WithClientName returns a context carrying the name of the client that
// issues requests made with it.
func WithClientName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, clientKey{}, name)
}

// ClientName returns the client name carried by ctx, or "".
func ClientName(ctx context.Context) string {
	name, _ := ctx.Value(clientKey{}).(string)
	return name
}

func metaOf(req *http.Request) observe.RequestMeta {
	return observe.MetaFromRequest(ClientName(req.Context()), req)
}

// discard closes resp without returning it to the caller.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
	_ = resp.Body.Close()
}
