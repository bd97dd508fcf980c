// Package logtail reads the tail of the proxy log for the console's activity
// view.
//
// # Reading
//
// Read returns the last N lines of a file using a ring buffer, so memory stays
// O(N) no matter how large the log grows. A missing file is not an error; the
// proxy may simply not have written anything yet.
//
//	lines, err := logtail.Read(cfg.LogFile, 400)
//
// # Parsing
//
// The proxy writes log/slog records in either text or JSON form depending on
// log_format. Parse accepts both:
//
//	time=2026-10-19T10:00:00Z level=INFO msg=forwarded method=GET action=list status=200
//	{"time":"2026-10-19T10:00:00Z","level":"INFO","msg":"forwarded","status":200}
//
// time, level and msg are lifted into Entry; every other attribute lands in
// Fields. Text attributes keep their log order. JSON attributes are sorted by
// key since objects carry no order.
//
// Lines in neither format (panics, output from other tools) are returned with
// Message set to the trimmed line so the view can still show them.
//
// Nothing here follows the file; the console re-reads on its refresh tick.
package logtail
