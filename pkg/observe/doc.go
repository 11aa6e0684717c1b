// Package observe coordinates change-driven snapshot fetching: it bridges
// per-commit change notifications to "fetch a fresh consistent snapshot and
// diff it against the last one".
//
// The Hub receives one Publish per durable commit and conflates delivery per
// subscriber through a single-slot mailbox, so a slow observation skips
// intermediate states but always sees the latest relevant commit. Observe
// runs the fetch loop: one Event immediately on subscription, then one per
// relevant commit, serially, in commit order. Writes coalesced inside one
// transaction produce a single notification and thus a single Event.
package observe
