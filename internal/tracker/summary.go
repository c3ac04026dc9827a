package tracker

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type StageSummary struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

type Summary struct {
	Submissions StageSummary `json:"submissions"`
	Processing  StageSummary `json:"processing"`
}

const summaryQuery = `
	SELECT stage,
	      success,
	      COUNT(*) AS total
	FROM transaction_events
	WHERE ($1::timestamp IS NULL OR observed_at >= $1::timestamp)
	 AND ($2::timestamp IS NULL OR observed_at <= $2::timestamp)
	GROUP BY stage, success;
	`

func (t *PgTracker) Summary(ctx context.Context, from, to pgtype.Timestamp) (*Summary, error) {
	rows, err := t.dbpool.Query(ctx, summaryQuery, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var stage string
		var success bool
		var total int64
		if err := rows.Scan(&stage, &success, &total); err != nil {
			return nil, err
		}

		target := &summary.Processing
		if Stage(stage) == StageSubmission {
			target = &summary.Submissions
		}
		target.Total += total
		if success {
			target.Succeeded += total
		} else {
			target.Failed += total
		}
	}

	return &summary, rows.Err()
}

func (t *PgTracker) Purge(ctx context.Context) error {
	_, err := t.dbpool.Exec(ctx, "TRUNCATE TABLE transaction_events")
	return err
}
