/*
Package session keeps live forms addressed by session id.

A Manager serializes every operation on a session with a reference counted local mutex,
optionally backed by a ports.DistributedLocker when several replicas share one store.
After each mutating operation the form's current response is written to the
ports.ResponseStore, so a session survives restarts and can be rehydrated elsewhere.
*/
package session
