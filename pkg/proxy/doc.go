/*
Package proxy load-balances TCP traffic across container backends.

Each configured listen address gets one TCP proxy task. Containers declare
which proxies serve them; the manager turns the live containers into an
expected World, diffs it against the backends it has already sent with
Think, and delivers the resulting Add and RemoveAsk messages.

A proxy picks backends round-robin and skips a backend while any of its
health targets is unhealthy in the KV store. When no backend is healthy it
still picks one so traffic keeps flowing until health state settles.
RemoveAsk only stops new connections; established ones run to completion.
*/
package proxy
