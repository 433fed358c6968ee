/*
Package world models the containers easyharun manages as snapshots and
computes the difference between them.

Every tick two Worlds are built from scratch: the expected World from config
(FromConfig, one entry per replica) and the current World from the runtime
(FromRuntime, one entry per owned container that is still up and not marked
for deletion). DiffBy pairs them greedily by a match key and reports what is
Extra in the runtime and what is Missing from it.

Runtime containers carry their declaration in labels (see Labels), so the
current World can be rebuilt without any local database.
*/
package world
