package trace

import (
	"github.com/wippyai/lifetime/errors"
	"github.com/wippyai/lifetime/resource"
)

// Report summarizes a session's lifecycle history.
type Report struct {
	Created int
	Dropped int
	Taken   int

	// Leaked lists handles that were created but neither dropped nor taken.
	Leaked []resource.Handle

	// DoubleDropped lists handles with more than one drop event.
	DoubleDropped []resource.Handle
}

// Clean reports whether every created resource left the table exactly once.
func (r *Report) Clean() bool {
	return len(r.Leaked) == 0 && len(r.DoubleDropped) == 0
}

// Audit flushes pending events and checks that every handle created in
// this session was released exactly once.
func (r *Recorder) Audit() (*Report, error) {
	if err := r.Flush(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT
			handle,
			SUM(CASE WHEN event = 'created' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event = 'dropped' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event = 'taken'   THEN 1 ELSE 0 END)
		FROM lifecycle
		WHERE session = ?
		GROUP BY handle
		ORDER BY MIN(seq)`,
		r.session.String())
	if err != nil {
		return nil, errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "audit query")
	}
	defer rows.Close()

	report := &Report{}
	for rows.Next() {
		var h, created, dropped, taken int64
		if err := rows.Scan(&h, &created, &dropped, &taken); err != nil {
			return nil, errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "audit scan")
		}

		report.Created += int(created)
		report.Dropped += int(dropped)
		report.Taken += int(taken)

		if created > 0 && dropped+taken == 0 {
			report.Leaked = append(report.Leaked, resource.Handle(h))
		}
		if dropped > 1 {
			report.DoubleDropped = append(report.DoubleDropped, resource.Handle(h))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseTrace, errors.KindStorage, err, "audit query")
	}
	return report, nil
}
