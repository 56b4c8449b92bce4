// Package audit records queue lifecycle events as structured audit
// entries: who ran what, when, and how it ended. It implements the hook
// interfaces and writes through a pluggable Recorder, so the trail can
// land in a file, a database, or an external audit service.
//
// Wire it into an engine like any other hook:
//
//	rec := audit.NewJSONRecorder(f)
//	eng, err := engine.New(s, engine.WithHook(audit.New(rec)))
//
// Restrict the recorded actions when only terminal states matter:
//
//	audit.New(rec, audit.WithActions(audit.ActionJobCompleted, audit.ActionJobDead))
package audit
