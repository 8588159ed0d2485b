// Package freelist implements the free-page pool as an index-based stack.
//
// Free pages are identified by their slot in the allocator's dense page
// index space. The links of the stack live in a typed side table
// (next[idx] is the slot below idx), not in the free pages themselves, so
// page bytes are never reinterpreted as pointers. A membership bitmap lets
// the pool refuse a second push of a page it already holds, which turns a
// double free into an error instead of a corrupt, cyclic list.
//
// All operations take the pool's mutex for a short, bounded critical section.
package freelist
