// Package scope provides frames: lexical lifetimes that release what is
// bound to them when they exit.
//
// Run starts a frame and hands it to a function. Values bound with Bind,
// cleanups registered with Defer and handles created with Own are released
// in reverse order when the function returns, fails or panics. Errors from
// the cleanups are joined with the function's own error; a panic is
// re-raised once cleanup is done.
//
// A frame models automatic (stack) storage. A handle created with Own can
// still escape the frame by transferring its resource to a handle owned by
// the caller; the frame then finds its handle empty and releases nothing.
//
// Frame IDs are xid values and appear in the package's log fields as
// "frame".
package scope
