/*
Package registration holds the in-memory state of the mock registration server.

A Store maps node identifiers to the record derived from their latest
submission and counts every submission it processes. Overwriting an existing
node still increments the count, so TotalCount tracks submissions rather than
distinct nodes:

	store := registration.NewStore()
	store.Record("node1", api.NodeInfo{Node: "alice", Passwd: "secret"}, "10.0.0.5", 4570)
	records, total := store.Snapshot()

ParseRequest validates a raw registration body up front, so a rejected body
never reaches the store. It tells unparseable bodies (ErrInvalidPayload) apart
from well-formed JSON of the wrong shape (ErrMalformedStructure).

Nothing in this package is persisted; a Store lives as long as the process.
*/
package registration
