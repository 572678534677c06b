// Package trace records resource lifecycle events in SQLite and audits
// them.
//
// A Recorder subscribes to a resource.Table like any other observer. Each
// event is stamped with a session ID and buffered; batches are written in
// one transaction. Audit then answers the question the lifetime model
// cares about: did every created resource leave the table exactly once?
//
//	rec, err := trace.New()
//	if err != nil {
//		return err
//	}
//	defer rec.Close()
//	table.Subscribe(rec)
//
//	// ... work with own and scope ...
//
//	report, err := rec.Audit()
//	if err == nil && !report.Clean() {
//		log.Printf("leaked: %v", report.Leaked)
//	}
package trace
