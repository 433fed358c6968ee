/*
Package health runs the health checks containers declare and publishes their
outcomes to the shared KV store.

# Checkers

Three probe types implement Checker:

  - http: GET the rendered URL, any 2xx is healthy
  - tcp: open a TCP connection to the rendered address
  - exec: run a command inside the container through the runtime, exit code 0 is healthy

URLs and addresses are templates. {{container.port_dynamic_host}} becomes the
host port of the container's first declared port and
{{container.port_dynamic_host_<port>}} the host port of a specific one.

# Lifecycle

Manager is the behavior of the health manager task. On every tick it lists
the runtime and makes the set of running check tasks equal to the set of
(container, declared check) pairs: missing pairs are spawned, pairs of
containers that disappeared or were marked for deletion are killed.

Each check task probes on its own interval and writes the outcome to the KV
under the target "<check>-<container id>". Writes only happen when the
outcome changes.
*/
package health
