package service

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/parser"
	"fintrack/internal/staging"
	"fintrack/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CategoryResolver looks up a category by the opaque id stored on a draft.
type CategoryResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, categoryID string) (*models.Category, error)
}

// LedgerWriter is the permanent transaction store.
type LedgerWriter interface {
	Insert(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
}

type ImportOptions struct {
	DefaultCurrency string
	// CommitWaitTimeout bounds how long a losing committer waits for the winner's result.
	CommitWaitTimeout time.Duration
	// LedgerRetries is the number of extra attempts for a failed ledger insert.
	LedgerRetries int
	RetryBackoff  time.Duration
	PollInterval  time.Duration
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = "INR"
	}
	if o.CommitWaitTimeout <= 0 {
		o.CommitWaitTimeout = 30 * time.Second
	}
	if o.LedgerRetries < 0 {
		o.LedgerRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 100 * time.Millisecond
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Millisecond
	}
	return o
}

type UploadInput struct {
	Data     []byte
	FileName string
	MimeType string
	Kind     models.ImportKind
}

// ImportService runs the document import pipeline: upload and parse, staged
// edits, and the one-time commit of drafts into the ledger.
type ImportService struct {
	store      staging.Store
	parser     parser.Parser
	documents  storage.Store
	categories CategoryResolver
	ledger     LedgerWriter
	opts       ImportOptions
	commits    singleflight.Group
	inflight   sync.WaitGroup
	// unsaved holds results whose ledger writes are done but whose save to the
	// store failed; the next commit of the job stores them again.
	unsavedMu  sync.Mutex
	unsaved    map[uuid.UUID]*models.CommitResult
	logger     *zap.Logger
	now        func() time.Time
}

func NewImportService(
	store staging.Store,
	docParser parser.Parser,
	documents storage.Store,
	categories CategoryResolver,
	ledger LedgerWriter,
	opts ImportOptions,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		store:      store,
		parser:     docParser,
		documents:  documents,
		categories: categories,
		ledger:     ledger,
		opts:       opts.withDefaults(),
		unsaved:    make(map[uuid.UUID]*models.CommitResult),
		logger:     logger,
		now:        time.Now,
	}
}

// Upload archives and parses a document and stages the result as a new job.
// Malformed input creates no job. A document the parser cannot read is recorded
// as a failed job for audit and reported as ErrUnprocessableDocument.
func (s *ImportService) Upload(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.ImportJob, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: empty document", models.ErrUnprocessableDocument)
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown import kind %q", models.ErrUnprocessableDocument, in.Kind)
	}
	mimeType := detectMimeType(in.MimeType, in.Data)
	if !parser.Supported(mimeType) {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedMedia, mimeType)
	}

	now := s.timestamp()
	job := &models.ImportJob{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      in.Kind,
		FileName:  in.FileName,
		MimeType:  mimeType,
		CreatedAt: now,
	}

	job.StorageKey = storage.Key(userID, in.FileName, now)
	if err := s.documents.Put(ctx, job.StorageKey, in.Data, mimeType); err != nil {
		s.logger.Error("Failed to archive document", zap.String("job_id", job.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: archive document: %v", models.ErrStoreUnavailable, err)
	}

	records, err := s.parser.Parse(ctx, in.Data, mimeType, in.Kind)
	if err == nil && in.Kind == models.ImportKindStatementBatch && len(records) == 0 {
		err = errors.New("no transaction rows found")
	}
	if err != nil {
		job.Status = models.ImportStatusFailed
		job.ErrorMessage = err.Error()
		if createErr := s.store.Create(ctx, job); createErr != nil {
			s.logger.Error("Failed to record failed import", zap.String("job_id", job.ID.String()), zap.Error(createErr))
		}
		s.logger.Info("Document could not be parsed",
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(in.Kind)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", models.ErrUnprocessableDocument, err)
	}

	job.Status = models.ImportStatusParsed
	job.Drafts = s.draftsFromRecords(in.Kind, records)
	if err := s.store.Create(ctx, job); err != nil {
		return nil, storeError(err)
	}

	s.logger.Info("Import job staged",
		zap.String("job_id", job.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("kind", string(in.Kind)),
		zap.Int("drafts", len(job.Drafts)),
	)
	return job, nil
}

func (s *ImportService) draftsFromRecords(kind models.ImportKind, records []parser.ParsedRecord) []models.Draft {
	if kind == models.ImportKindSingleReceipt {
		// always exactly one draft the user can edit
		if len(records) == 0 {
			return []models.Draft{s.emptyDraft()}
		}
		records = records[:1]
	}

	drafts := make([]models.Draft, 0, len(records))
	for _, r := range records {
		d := s.emptyDraft()
		if r.Type != nil && r.Type.Valid() {
			d.Type = *r.Type
		}
		// amounts too large to store are OCR noise; the user fills them in
		if r.Amount != nil && r.Amount.Abs().LessThan(maxAmount) {
			amount := *r.Amount
			if amount.IsNegative() {
				amount = amount.Abs()
				d.Type = models.TransactionTypeIncome
			}
			d.Amount = &amount
		}
		if r.Currency != nil && currencyCodePattern.MatchString(*r.Currency) {
			d.Currency = *r.Currency
		}
		d.OccurredAt = r.OccurredAt
		d.CategoryID = r.CategoryID
		d.Merchant = r.Merchant
		d.Notes = r.Notes
		drafts = append(drafts, d.Clone())
	}
	return drafts
}

func (s *ImportService) emptyDraft() models.Draft {
	return models.Draft{
		Type:     models.TransactionTypeExpense,
		Currency: s.opts.DefaultCurrency,
	}
}

func (s *ImportService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.ImportJob, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, storeError(err)
	}
	if job.UserID != userID {
		return nil, models.ErrJobNotFound
	}
	return job, nil
}

func (s *ImportService) ListJobs(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.ImportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	jobs, err := s.store.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, storeError(err)
	}
	return jobs, nil
}

// EditDraft applies the fields present in patch to one draft.
// Either every field is applied or none is.
func (s *ImportService) EditDraft(ctx context.Context, userID, jobID uuid.UUID, index int, patch DraftPatch) (*models.Draft, error) {
	edit, err := patch.validate(s.opts.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}

	draft, err := s.store.UpdateDraft(ctx, jobID, index, func(d *models.Draft) error {
		edit.apply(d)
		return nil
	})
	if err != nil {
		return nil, storeError(err)
	}

	s.logger.Debug("Draft edited", zap.String("job_id", jobID.String()), zap.Int("index", index))
	return &draft, nil
}

// ReplaceDraft overwrites a draft entirely; fields missing from patch are cleared.
func (s *ImportService) ReplaceDraft(ctx context.Context, userID, jobID uuid.UUID, index int, patch DraftPatch) (*models.Draft, error) {
	draft, err := patch.replacement(s.opts.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}

	if err := s.store.ReplaceDraft(ctx, jobID, index, draft); err != nil {
		return nil, storeError(err)
	}

	s.logger.Debug("Draft replaced", zap.String("job_id", jobID.String()), zap.Int("index", index))
	return &draft, nil
}

// Commit writes every eligible draft of a job to the ledger exactly once.
// Concurrent and repeated calls all return the result stored by the single winner.
func (s *ImportService) Commit(ctx context.Context, userID, jobID uuid.UUID) (*models.CommitResult, error) {
	job, err := s.GetJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	switch job.Status {
	case models.ImportStatusFailed:
		return nil, models.ErrJobNotCommittable
	case models.ImportStatusCommitted:
		if job.Result != nil {
			return job.Result, nil
		}
	}

	// The shared call must outlive any single caller: once the status CAS is won
	// the job has to reach a stored result.
	detached := context.WithoutCancel(ctx)
	ch := s.commits.DoChan(jobID.String(), func() (interface{}, error) {
		s.inflight.Add(1)
		defer s.inflight.Done()
		return s.commit(detached, userID, jobID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.CommitResult).Clone(), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", models.ErrCommitInProgress, ctx.Err())
	}
}

// Drain waits for commits that are still running after their callers left.
func (s *ImportService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ImportService) commit(ctx context.Context, userID, jobID uuid.UUID) (*models.CommitResult, error) {
	won, err := s.store.CompareAndSetStatus(ctx, jobID, models.ImportStatusParsed, models.ImportStatusCommitted)
	if err != nil {
		return nil, storeError(err)
	}
	if !won {
		if result, ok := s.unsavedResult(jobID); ok {
			return s.saveResult(ctx, jobID, result)
		}
		return s.awaitResult(ctx, jobID)
	}

	s.logger.Info("Commit started", zap.String("job_id", jobID.String()))

	// Re-read after the CAS: every edit that landed before it is included and no
	// later edit can succeed.
	var job *models.ImportJob
	err = s.retry(ctx, func() error {
		var getErr error
		job, getErr = s.store.Get(ctx, jobID)
		return getErr
	})
	if err != nil {
		return nil, storeError(err)
	}

	result := s.writeDrafts(ctx, userID, job)
	return s.saveResult(ctx, jobID, result)
}

// saveResult stores the result of a finished commit. On failure the result is
// kept in memory so a retried commit returns it instead of waiting forever.
func (s *ImportService) saveResult(ctx context.Context, jobID uuid.UUID, result *models.CommitResult) (*models.CommitResult, error) {
	if err := s.retry(ctx, func() error {
		return s.store.SaveCommitResult(ctx, jobID, result)
	}); err != nil {
		s.unsavedMu.Lock()
		s.unsaved[jobID] = result
		s.unsavedMu.Unlock()
		s.logger.Error("Failed to store commit result", zap.String("job_id", jobID.String()), zap.Error(err))
		return nil, storeError(err)
	}

	s.unsavedMu.Lock()
	delete(s.unsaved, jobID)
	s.unsavedMu.Unlock()

	s.logger.Info("Commit finished",
		zap.String("job_id", jobID.String()),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func (s *ImportService) unsavedResult(jobID uuid.UUID) (*models.CommitResult, bool) {
	s.unsavedMu.Lock()
	defer s.unsavedMu.Unlock()
	result, ok := s.unsaved[jobID]
	return result, ok
}

func (s *ImportService) writeDrafts(ctx context.Context, userID uuid.UUID, job *models.ImportJob) *models.CommitResult {
	result := &models.CommitResult{Errors: []models.DraftError{}}
	fail := func(index int, reason models.CommitFailureReason, msg string) {
		result.Errors = append(result.Errors, models.DraftError{DraftIndex: index, Reason: reason, Message: msg})
	}

	for i, d := range job.Drafts {
		if msg, ok := checkEligible(d); !ok {
			result.Skipped++
			fail(i, models.ReasonInvalidDraft, msg)
			continue
		}

		var categoryID *uuid.UUID
		if d.CategoryID != nil && *d.CategoryID != "" {
			category, err := s.categories.Resolve(ctx, userID, *d.CategoryID)
			switch {
			case err == nil:
				categoryID = &category.ID
			case errors.Is(err, models.ErrCategoryNotFound):
				fail(i, models.ReasonCategoryNotFound, fmt.Sprintf("category %q does not exist", *d.CategoryID))
			default:
				s.logger.Warn("Category lookup failed, inserting without category",
					zap.String("job_id", job.ID.String()),
					zap.Int("index", i),
					zap.Error(err),
				)
				fail(i, models.ReasonCategoryNotFound, fmt.Sprintf("category %q could not be resolved", *d.CategoryID))
			}
		}

		currency := d.Currency
		if currency == "" {
			currency = s.opts.DefaultCurrency
		}
		jobID := job.ID
		tx := &models.Transaction{
			ID:          uuid.New(),
			UserID:      userID,
			ImportJobID: &jobID,
			Type:        d.Type,
			Amount:      *d.Amount,
			Currency:    currency,
			CategoryID:  categoryID,
			Merchant:    d.Merchant,
			Notes:       d.Notes,
			OccurredAt:  *d.OccurredAt,
			CreatedAt:   s.timestamp(),
		}

		if err := s.insert(ctx, tx); err != nil {
			s.logger.Error("Ledger insert failed",
				zap.String("job_id", job.ID.String()),
				zap.Int("index", i),
				zap.Error(err),
			)
			result.Skipped++
			fail(i, models.ReasonLedgerWriteFailed, err.Error())
			continue
		}
		result.Inserted++
	}

	result.CommittedAt = s.timestamp()
	return result
}

// insert retries transient ledger failures. The transaction id stays the same
// across attempts, so a write that succeeded but reported an error is not duplicated.
func (s *ImportService) insert(ctx context.Context, tx *models.Transaction) error {
	return s.retry(ctx, func() error {
		_, err := s.ledger.Insert(ctx, tx)
		if errors.Is(err, models.ErrTransactionExists) {
			return nil
		}
		return err
	})
}

func (s *ImportService) retry(ctx context.Context, fn func() error) error {
	backoff := s.opts.RetryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= s.opts.LedgerRetries || !retryable(err) {
			return err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return err
		}
		backoff *= 2
	}
}

func retryable(err error) bool {
	return !errors.Is(err, models.ErrValidation) &&
		!errors.Is(err, models.ErrJobNotFound) &&
		!errors.Is(err, models.ErrCategoryNotFound)
}

// awaitResult is the losing side of the status CAS: another request or process
// owns the commit and the result shows up in the store once it is done.
func (s *ImportService) awaitResult(ctx context.Context, jobID uuid.UUID) (*models.CommitResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CommitWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		job, err := s.store.Get(ctx, jobID)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, storeError(err)
		}
		if job != nil {
			if job.Status == models.ImportStatusFailed {
				return nil, models.ErrJobNotCommittable
			}
			if job.Result != nil {
				return job.Result, nil
			}
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: job %s", models.ErrCommitInProgress, jobID)
		}
	}
}

func checkEligible(d models.Draft) (string, bool) {
	switch {
	case d.Amount == nil:
		return "amount is missing", false
	case !d.Amount.IsPositive():
		return "amount must be greater than zero", false
	case d.OccurredAt == nil || d.OccurredAt.IsZero():
		return "occurred_at is missing", false
	}
	return "", true
}

// timestamp is truncated to what Postgres stores so a result read back from the
// store compares equal to the one returned by the committer.
func (s *ImportService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// storeError passes domain errors through and marks everything else retryable.
func storeError(err error) error {
	for _, known := range []error{
		models.ErrJobNotFound,
		models.ErrDraftNotFound,
		models.ErrJobNotEditable,
		models.ErrJobNotCommittable,
		models.ErrCommitInProgress,
		models.ErrStoreUnavailable,
		models.ErrValidation,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
}

// detectMimeType trusts a specific declared type and sniffs the content otherwise.
func detectMimeType(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		declared = mt
	}
	switch declared {
	case "image/jpg", "image/pjpeg":
		return parser.MimeJPEG
	case "", "application/octet-stream", "binary/octet-stream":
		sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
		return sniffed
	}
	return declared
}
