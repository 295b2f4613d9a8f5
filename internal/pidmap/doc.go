// Package pidmap resolves identifiers between the two pid namespaces a
// recording straddles.
//
// The recording is taken from inside a (possibly containerized) pid
// namespace, but scheduling records reference the kernel's own idea of a
// pid. This package maintains:
//   - inner kernel pid -> user-visible (pid, tid) pair, first write wins
//   - backup (tentative) inner -> (pid, tid) associations, resolved only at
//     end of stream
//   - inner pid -> comm (program name), first write wins
//   - pseudo pid allocation for synthetic tracks, guaranteed disjoint from
//     every observed real pid
package pidmap
