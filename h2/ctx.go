package http2

import "github.com/valyala/fasthttp"

// Ctx carries a single client request through Conn's write/read loops.
//
// The caller fills Request, hands the Ctx to Conn.Write, then blocks on
// Err: a nil value (or close of the channel) signals Response is ready,
// anything else is the terminal error for that stream.
type Ctx struct {
	Request  *fasthttp.Request
	Response *fasthttp.Response
	Err      chan error
}

// AcquireCtx returns an empty Ctx ready to carry one request.
func AcquireCtx() *Ctx {
	return &Ctx{
		Request:  fasthttp.AcquireRequest(),
		Response: fasthttp.AcquireResponse(),
		Err:      make(chan error, 1),
	}
}

// ReleaseCtx returns ctx's request/response to fasthttp's pools. The
// caller must not use ctx afterwards.
func ReleaseCtx(ctx *Ctx) {
	fasthttp.ReleaseRequest(ctx.Request)
	fasthttp.ReleaseResponse(ctx.Response)
	ctx.Request = nil
	ctx.Response = nil
}
