/*
Package runtime is the container runtime client used by easyharun.

Runtime is a small interface over what the reconcilers need: list owned
containers, start one, stop and remove one, and exec a command inside one.
DockerRuntime implements it against the Docker Engine API:

  - List filters on the ownership label easyharun=1.0.0 and includes stopped
    containers so callers can tell exited replicas apart.
  - Start publishes every container port on 0.0.0.0 with an empty host port,
    letting the OS choose. A NotFound from create triggers an image pull
    (retried with exponential backoff) followed by one more create.
  - StopAndRemove treats NotFound as success so repeated reaps are harmless.
  - Exec demultiplexes the attached stream with stdcopy and reports the
    exit code from exec inspect.

MemoryRuntime keeps containers in a map. It is used for `--runtime memory`
dry runs and throughout the tests.
*/
package runtime
