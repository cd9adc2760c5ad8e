// Package sync orchestrates the externals pipeline.
//
// Each external declared in .gitexternals moves through the same stages:
//
//  1. Parse: the config section becomes a [config.External].
//  2. Cache: a persistent shallow clone under .git/externals is created or
//     fast-forwarded to the branch head ([cache.Manager]).
//  3. Materialize: the target directory is rebuilt from the cache's working
//     tree and the .gitexternal provenance marker is rewritten.
//  4. Script: an optional post-sync script runs with the target as argument.
//
// Externals are processed sequentially in file order. A failure in any
// stage is captured in that external's [Result] and processing moves on to
// the next external; there is no cross-external rollback. Outcomes are also
// recorded in a [journal.Journal] next to the cache entries, which backs
// the status command.
package sync
