// Package session defines the resource sessions a task uses to do its work.
// A session stages key/value changes and persists them on Commit; a Source
// establishes new sessions and is the only place acquisition can fail.
package session
