package terminal

import (
	"github.com/kristofer/wisp/pkg/value"
)

// bind binds recv_req/send_resp into env, closed over t. These are
// deliberately never registered in pkg/stdlib's global environment:
// spec.md §6.3 calls them out as present only for processes attached to
// a client connection, so each Terminal hands them to its own worker's
// child env (see Serve) instead.
func (t *Terminal) bind(env value.Env) {
	env.Define("recv_req", value.NativeAsyncFnVal(&value.NativeAsyncFn{
		Name: "recv_req",
		Doc:  "(recv_req) blocks for the connection's next request, returning (req-id contents).",
		Fn: func(ctx value.AsyncCtx, _ value.Locals, args []value.Val) (value.Val, error) {
			select {
			case m, ok := <-t.reqCh:
				if !ok {
					return value.Val{}, value.NewErr(value.ErrRuntime, "recv_req: terminal closed")
				}
				contents, err := m.Value()
				if err != nil {
					return value.Val{}, value.NewErr(value.ErrRuntime, "recv_req: %s", err.Error())
				}
				return value.List(value.RequestIDVal(m.ID), contents), nil
			case <-ctx.Done():
				return value.Val{}, value.NewErr(value.ErrRuntime, "recv_req: %s", ctx.Err().Error())
			}
		},
	}))

	env.Define("send_resp", value.NativeAsyncFnVal(&value.NativeAsyncFn{
		Name: "send_resp",
		Doc:  "(send_resp req-id contents) sends contents back as the response to req-id.",
		Fn: func(_ value.AsyncCtx, _ value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 2 {
				return value.Val{}, value.NewErr(value.ErrUnexpectedArguments, "send_resp expects two arguments")
			}
			reqID, ok := args[0].AsRequestID()
			if !ok {
				return value.Val{}, value.NewErr(value.ErrUnexpectedArguments, "send_resp expects a request id as its first argument")
			}
			if err := t.sendResp(reqID, args[1]); err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "send_resp: %s", err.Error())
			}
			return value.Keyword("ok"), nil
		},
	}))
}
