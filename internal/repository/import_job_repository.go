package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/staging"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	jobColumns = []string{
		"id", "user_id", "kind", "status", "file_name", "mime_type", "storage_key", "error_message",
		"created_at", "committed_at", "inserted_count", "skipped_count", "commit_errors",
	}
	draftColumns = []string{
		"type", "amount", "currency", "occurred_at", "category_id", "merchant", "notes", "edited",
	}
)

// ImportJobRepository is the Postgres-backed staging store.
type ImportJobRepository struct {
	db     DB
	logger *zap.Logger
}

func NewImportJobRepository(db DB, logger *zap.Logger) *ImportJobRepository {
	return &ImportJobRepository{
		db:     db,
		logger: logger,
	}
}

func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	sql, args, err := psql.Insert("import_jobs").
		Columns("id", "user_id", "kind", "status", "file_name", "mime_type", "storage_key", "error_message", "created_at").
		Values(job.ID, job.UserID, job.Kind, job.Status, job.FileName, job.MimeType, job.StorageKey, job.ErrorMessage, job.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return err
	}

	if len(job.Drafts) > 0 {
		builder := psql.Insert("import_drafts").
			Columns(append([]string{"job_id", "idx"}, draftColumns...)...)
		for i, d := range job.Drafts {
			builder = builder.Values(job.ID, i, d.Type, nullDecimal(d.Amount), d.Currency, d.OccurredAt, d.CategoryID, d.Merchant, d.Notes, d.Edited)
		}
		sql, args, err := builder.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ImportJobRepository) Get(ctx context.Context, id uuid.UUID) (*models.ImportJob, error) {
	sql, args, err := psql.Select(jobColumns...).
		From("import_jobs").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	job, err := scanJob(r.db.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	drafts, err := r.loadDrafts(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	job.Drafts = drafts[id]

	return job, nil
}

func (r *ImportJobRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ImportJob, error) {
	query := psql.Select(jobColumns...).
		From("import_jobs").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	if offset > 0 {
		query = query.Offset(uint64(offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	var ids []uuid.UUID
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
		ids = append(ids, job.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return jobs, nil
	}

	drafts, err := r.loadDrafts(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		job.Drafts = drafts[job.ID]
	}

	return jobs, nil
}

// CompareAndSetStatus relies on the row lock taken by UPDATE: of several concurrent
// callers exactly one sees RowsAffected() == 1.
func (r *ImportJobRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, expected, next models.ImportStatus) (bool, error) {
	sql, args, err := psql.Update("import_jobs").
		Set("status", next).
		Where(squirrel.Eq{"id": id, "status": expected}).
		ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		r.logger.Debug("Import job status changed",
			zap.String("job_id", id.String()),
			zap.String("from", string(expected)),
			zap.String("to", string(next)),
		)
		return true, nil
	}

	if _, err := r.status(ctx, r.db, id, false); err != nil {
		return false, err
	}
	return false, nil
}

func (r *ImportJobRepository) ReplaceDraft(ctx context.Context, id uuid.UUID, index int, draft models.Draft) error {
	_, err := r.UpdateDraft(ctx, id, index, func(d *models.Draft) error {
		*d = draft
		return nil
	})
	return err
}

func (r *ImportJobRepository) UpdateDraft(ctx context.Context, id uuid.UUID, index int, fn staging.DraftMutator) (models.Draft, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.Draft{}, err
	}
	defer tx.Rollback(ctx)

	// Locking the job row serialises this edit against commit's status update.
	status, err := r.status(ctx, tx, id, true)
	if err != nil {
		return models.Draft{}, err
	}
	if status != models.ImportStatusParsed {
		return models.Draft{}, models.ErrJobNotEditable
	}

	sql, args, err := psql.Select(draftColumns...).
		From("import_drafts").
		Where(squirrel.Eq{"job_id": id, "idx": index}).
		ToSql()
	if err != nil {
		return models.Draft{}, err
	}

	draft, err := scanDraft(tx.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Draft{}, models.ErrDraftNotFound
	}
	if err != nil {
		return models.Draft{}, err
	}

	if err := fn(&draft); err != nil {
		return models.Draft{}, err
	}

	sql, args, err = psql.Update("import_drafts").
		SetMap(map[string]interface{}{
			"type":        draft.Type,
			"amount":      nullDecimal(draft.Amount),
			"currency":    draft.Currency,
			"occurred_at": draft.OccurredAt,
			"category_id": draft.CategoryID,
			"merchant":    draft.Merchant,
			"notes":       draft.Notes,
			"edited":      draft.Edited,
		}).
		Where(squirrel.Eq{"job_id": id, "idx": index}).
		ToSql()
	if err != nil {
		return models.Draft{}, err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return models.Draft{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Draft{}, err
	}
	return draft, nil
}

func (r *ImportJobRepository) SaveCommitResult(ctx context.Context, id uuid.UUID, result *models.CommitResult) error {
	errs := result.Errors
	if errs == nil {
		errs = []models.DraftError{}
	}
	payload, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode commit errors: %w", err)
	}

	sql, args, err := psql.Update("import_jobs").
		Set("committed_at", result.CommittedAt).
		Set("inserted_count", result.Inserted).
		Set("skipped_count", result.Skipped).
		Set("commit_errors", payload).
		Where(squirrel.Eq{"id": id, "status": models.ImportStatusCommitted, "committed_at": nil}).
		ToSql()
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	status, err := r.status(ctx, r.db, id, false)
	if err != nil {
		return err
	}
	if status != models.ImportStatusCommitted {
		return fmt.Errorf("job %s is %s, not committed", id, status)
	}
	// already stored by an earlier call
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *ImportJobRepository) status(ctx context.Context, q queryRower, id uuid.UUID, forUpdate bool) (models.ImportStatus, error) {
	query := psql.Select("status").
		From("import_jobs").
		Where(squirrel.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return "", err
	}

	var status models.ImportStatus
	err = q.QueryRow(ctx, sql, args...).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrJobNotFound
	}
	return status, err
}

func (r *ImportJobRepository) loadDrafts(ctx context.Context, jobIDs []uuid.UUID) (map[uuid.UUID][]models.Draft, error) {
	sql, args, err := psql.Select(append([]string{"job_id"}, draftColumns...)...).
		From("import_drafts").
		Where(squirrel.Eq{"job_id": jobIDs}).
		OrderBy("job_id", "idx").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID][]models.Draft, len(jobIDs))
	for rows.Next() {
		var jobID uuid.UUID
		var d models.Draft
		var amount decimal.NullDecimal
		if err := rows.Scan(&jobID, &d.Type, &amount, &d.Currency, &d.OccurredAt, &d.CategoryID, &d.Merchant, &d.Notes, &d.Edited); err != nil {
			return nil, err
		}
		d.Amount = fromNullDecimal(amount)
		d.OccurredAt = inUTC(d.OccurredAt)
		result[jobID] = append(result[jobID], d)
	}

	return result, rows.Err()
}

func scanJob(row pgx.Row) (*models.ImportJob, error) {
	var job models.ImportJob
	var inserted, skipped *int
	var commitErrors []byte
	err := row.Scan(
		&job.ID, &job.UserID, &job.Kind, &job.Status, &job.FileName, &job.MimeType, &job.StorageKey, &job.ErrorMessage,
		&job.CreatedAt, &job.CommittedAt, &inserted, &skipped, &commitErrors,
	)
	if err != nil {
		return nil, err
	}
	job.CreatedAt = job.CreatedAt.UTC()

	if job.CommittedAt != nil {
		committedAt := job.CommittedAt.UTC()
		job.CommittedAt = &committedAt
		result := &models.CommitResult{CommittedAt: *job.CommittedAt, Errors: []models.DraftError{}}
		if inserted != nil {
			result.Inserted = *inserted
		}
		if skipped != nil {
			result.Skipped = *skipped
		}
		if len(commitErrors) > 0 {
			if err := json.Unmarshal(commitErrors, &result.Errors); err != nil {
				return nil, fmt.Errorf("failed to decode commit errors: %w", err)
			}
		}
		job.Result = result
	}

	return &job, nil
}

func scanDraft(row pgx.Row) (models.Draft, error) {
	var d models.Draft
	var amount decimal.NullDecimal
	if err := row.Scan(&d.Type, &amount, &d.Currency, &d.OccurredAt, &d.CategoryID, &d.Merchant, &d.Notes, &d.Edited); err != nil {
		return models.Draft{}, err
	}
	d.Amount = fromNullDecimal(amount)
	d.OccurredAt = inUTC(d.OccurredAt)
	return d, nil
}

func inUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

var _ staging.Store = (*ImportJobRepository)(nil)
