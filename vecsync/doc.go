// Package vecsync provides SCN-based synchronization of vec shadow tables
// between an upstream SQLite database and downstream SQLite replicas.
// Upstream, triggers append every shadow change to vec_shadow_log with a
// per-dataset sequence change number (SCN). Downstream, Sync pulls log
// entries past the last applied SCN and replays them into the replica shadow
// table, where the vec module triggers invalidate the affected indexes.
package vecsync
