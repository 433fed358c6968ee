/*
Package events provides an in-memory event broker for easyharun.

Reconcilers, the health check manager and the proxy manager publish what
they changed (a container started, a check went unhealthy, a backend was
removed) and the control plane streams those events to `easyharun events`.

	Publisher → Event Channel (buffer: 100)
	      ↓
	Broadcast Loop
	      ↓
	Subscriber Channels (buffer: 50 each)

Publishing never blocks a reconciliation tick: a full broker queue drops
the event and a full subscriber buffer skips that subscriber. Events are
informational only and nothing in the daemon depends on receiving them.
*/
package events
