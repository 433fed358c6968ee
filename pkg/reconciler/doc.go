/*
Package reconciler runs the container loop and the reaper.

Every tick the Reconciler builds the expected world from config and the
current world from the runtime, diffs them and executes the single action
the brain decides. Starts create containers directly. Stops only mark the
container in the KV store, which hides it from every later current world;
the Reaper then stops and removes marked containers in the background.
*/
package reconciler
