/*
Package actor is the small task runtime every long-lived easyharun component
runs on.

A Task owns a goroutine, a bounded mailbox and an optional fixed-delay
timer. Its Behavior handles one message or one tick at a time, so behavior
state needs no locking. Handlers that fail (return an error or panic) are
logged, counted and followed by a constant backoff before the loop resumes;
a task only stops when its context is cancelled.

	task := actor.Spawn[proxy.Msg](ctx, behavior, actor.Options{
		Name:     "0.0.0.0:8080",
		Kind:     "tcp_proxy",
		Registry: registry,
	})
	err := task.Send(ctx, msg)
	<-task.RequestShutdown()

Tasks spawned from another task's Context stop with it. A Registry, built
explicitly by the daemon, tracks running tasks for the control plane.
Every handler invocation is wrapped in an OpenTelemetry span named
"<kind>.tick" or "<kind>.message".
*/
package actor
