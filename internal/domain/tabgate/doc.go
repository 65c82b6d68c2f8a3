// Package tabgate cancels network requests that do not originate from a tab
// the browsing surface currently recognises as active.
//
// The active set is seeded from the focused tab at startup and then follows
// tab lifecycle notifications:
//   - activated: unknown tabs are admitted and reloaded
//   - created: admitted immediately
//   - removed: forgotten immediately
//
// BeforeRequest answers synchronously with a BlockingResponse. Requests with
// TabID NoTab always pass. A request racing ahead of its tab's creation
// notification is cancelled; that is accepted and never retried.
package tabgate
