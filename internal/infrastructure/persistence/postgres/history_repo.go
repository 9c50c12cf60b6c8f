package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/unitrack-hub/attendance-engine/internal/domain/attendance"
	"github.com/unitrack-hub/attendance-engine/internal/domain/shared"
)

// HistoryRepository implements attendance.SyncHistory for PostgreSQL.
type HistoryRepository struct {
	conn *Connection
}

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

// Record appends one completed sync to the archive.
func (r *HistoryRepository) Record(ctx context.Context, rec attendance.SyncRecord) error {
	subjects, err := json.Marshal(rec.Subjects)
	if err != nil {
		return shared.WrapError("history", "Record", shared.ErrStorage, "marshal subjects", err)
	}

	query := `
		INSERT INTO sync_history (
			id, student_name, institution, total_subjects,
			overall_present, overall_total, overall_percentage, overall_tier,
			subjects, fetched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.conn.Exec(ctx, query,
		rec.ID,
		rec.StudentName,
		rec.Institution,
		rec.TotalSubjects,
		rec.OverallPresent,
		rec.OverallTotal,
		rec.OverallPercentage,
		string(rec.OverallTier),
		subjects,
		rec.FetchedAt,
	)
	if err != nil {
		return shared.WrapError("history", "Record", shared.ErrStorage, "insert sync record", err)
	}
	return nil
}

// Recent returns the most recent syncs, newest first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]attendance.SyncRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, student_name, institution, total_subjects,
			   overall_present, overall_total, overall_percentage, overall_tier,
			   subjects, fetched_at
		FROM sync_history
		ORDER BY fetched_at DESC
		LIMIT $1
	`

	return r.queryRecords(ctx, query, limit)
}

// Trend returns syncs fetched at or after the cutoff, oldest first.
func (r *HistoryRepository) Trend(ctx context.Context, since time.Time) ([]attendance.SyncRecord, error) {
	query := `
		SELECT id, student_name, institution, total_subjects,
			   overall_present, overall_total, overall_percentage, overall_tier,
			   subjects, fetched_at
		FROM sync_history
		WHERE fetched_at >= $1
		ORDER BY fetched_at ASC
	`

	return r.queryRecords(ctx, query, since)
}

func (r *HistoryRepository) queryRecords(ctx context.Context, query string, args ...interface{}) ([]attendance.SyncRecord, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("history", "Query", shared.ErrStorage, "query sync history", err)
	}
	defer rows.Close()

	var records []attendance.SyncRecord
	for rows.Next() {
		var rec attendance.SyncRecord
		var tier string
		var subjectsJSON []byte

		err := rows.Scan(
			&rec.ID,
			&rec.StudentName,
			&rec.Institution,
			&rec.TotalSubjects,
			&rec.OverallPresent,
			&rec.OverallTotal,
			&rec.OverallPercentage,
			&tier,
			&subjectsJSON,
			&rec.FetchedAt,
		)
		if err != nil {
			return nil, shared.WrapError("history", "Query", shared.ErrStorage, "scan sync record", err)
		}

		rec.OverallTier = attendance.Tier(tier)
		if len(subjectsJSON) > 0 {
			if err := json.Unmarshal(subjectsJSON, &rec.Subjects); err != nil {
				return nil, shared.WrapError("history", "Query", shared.ErrStorage, "unmarshal subjects", err)
			}
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("history", "Query", shared.ErrStorage, "iterate sync history", err)
	}
	return records, nil
}

var _ attendance.SyncHistory = (*HistoryRepository)(nil)
