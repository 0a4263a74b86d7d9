package stdlib

import (
	"context"

	"github.com/kristofer/wisp/pkg/value"
)

// registerSubscriptions binds subscribe/publish, grounded on
// original_source/libvrs/src/rt/bindings/pubsub.rs: subscribe spawns a
// forwarding goroutine that pushes every update as a
// (:topic_updated topic value) message into the subscribing process's
// own mailbox, so the process observes updates the same way it observes
// any other message, via recv/ls-msgs.
func registerSubscriptions(env value.Env) {
	asyncFn(env, "subscribe", "(subscribe topic-kw) subscribes the calling process to topic-kw, delivering updates as (:topic_updated topic-kw value) mailbox messages.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 1 || args[0].Kind != value.KindKeyword {
				return value.Val{}, value.NewErr(value.ErrUnexpectedArguments, "subscribe expects a single keyword argument")
			}
			l, err := wantProcessLocals("subscribe", locals)
			if err != nil {
				return value.Val{}, err
			}
			sub, err := l.PubSub.Subscribe(asCtx(ctx), args[0].Str)
			if err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "subscribe: %s", err.Error())
			}
			mb := l.Mailbox
			topic := args[0]
			// procCtx is this process's own lifetime context (the same
			// one the driver passes to every native async call), so the
			// forwarder below exits on process Kill/exit instead of
			// outliving it the way the teacher's fire-and-forget
			// tokio::spawn forwarder does.
			procCtx := asCtx(ctx)
			go func() {
				defer sub.Close()
				for {
					v, ok := sub.Next(procCtx)
					if !ok {
						return
					}
					mb.Push(value.List(value.Keyword("topic_updated"), topic, v))
				}
			}()
			return value.Keyword("ok"), nil
		})

	asyncFn(env, "publish", "(publish topic-kw value) publishes value on topic-kw to every current subscriber.",
		func(ctx value.AsyncCtx, locals value.Locals, args []value.Val) (value.Val, error) {
			if len(args) != 2 || args[0].Kind != value.KindKeyword {
				return value.Val{}, value.NewErr(value.ErrUnexpectedArguments, "publish expects a keyword topic and a value")
			}
			l, err := wantProcessLocals("publish", locals)
			if err != nil {
				return value.Val{}, err
			}
			if err := l.PubSub.Publish(asCtx(ctx), args[0].Str, args[1]); err != nil {
				return value.Val{}, value.NewErr(value.ErrRuntime, "publish: %s", err.Error())
			}
			return value.Keyword("ok"), nil
		})
}
