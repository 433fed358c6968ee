// Package brain turns a world diff into the container reconciler's next action.
//
// Only one action is taken per tick. The next tick rebuilds both worlds, so
// an action that fails or is superseded is simply decided again.
package brain
