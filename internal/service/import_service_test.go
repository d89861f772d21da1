package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/parser"
	"fintrack/internal/staging"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeParser struct {
	records []parser.ParsedRecord
	err     error
}

func (f *fakeParser) Parse(ctx context.Context, data []byte, mimeType string, kind models.ImportKind) ([]parser.ParsedRecord, error) {
	return f.records, f.err
}

type fakeDocuments struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (f *fakeDocuments) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objs == nil {
		f.objs = make(map[string][]byte)
	}
	f.objs[key] = data
	return nil
}

func (f *fakeDocuments) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objs[key], nil
}

type fakeCategories struct {
	known map[string]*models.Category
	err   error
}

func (f *fakeCategories) Resolve(ctx context.Context, userID uuid.UUID, categoryID string) (*models.Category, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.known[categoryID]; ok && c.UserID == userID {
		return c, nil
	}
	return nil, models.ErrCategoryNotFound
}

type fakeLedger struct {
	mu       sync.Mutex
	inserted []*models.Transaction
	// failures is the number of upcoming Insert calls that fail
	failures int
	broken   bool
	delay    time.Duration
}

func (f *fakeLedger) Insert(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return nil, errors.New("connection refused")
	}
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("deadlock detected")
	}
	for _, existing := range f.inserted {
		if existing.ID == tx.ID {
			return nil, models.ErrTransactionExists
		}
	}
	c := *tx
	f.inserted = append(f.inserted, &c)
	return &c, nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

type importFixture struct {
	svc        *ImportService
	store      *staging.MemoryStore
	parser     *fakeParser
	documents  *fakeDocuments
	categories *fakeCategories
	ledger     *fakeLedger
	userID     uuid.UUID
}

var testOptions = ImportOptions{
	DefaultCurrency:   "INR",
	CommitWaitTimeout: 2 * time.Second,
	LedgerRetries:     2,
	RetryBackoff:      time.Millisecond,
	PollInterval:      5 * time.Millisecond,
}

func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	f := &importFixture{
		store:      staging.NewMemoryStore(),
		parser:     &fakeParser{},
		documents:  &fakeDocuments{},
		categories: &fakeCategories{known: map[string]*models.Category{}},
		ledger:     &fakeLedger{},
		userID:     uuid.New(),
	}
	f.svc = NewImportService(f.store, f.parser, f.documents, f.categories, f.ledger, testOptions, zap.NewNop())
	return f
}

func (f *importFixture) upload(t *testing.T, kind models.ImportKind, records ...parser.ParsedRecord) *models.ImportJob {
	t.Helper()
	f.parser.records = records
	job, err := f.svc.Upload(context.Background(), f.userID, UploadInput{
		Data:     []byte("%PDF-1.7 statement"),
		FileName: "statement.pdf",
		MimeType: parser.MimePDF,
		Kind:     kind,
	})
	require.NoError(t, err)
	return job
}

func record(amount string, day int) parser.ParsedRecord {
	a := decimal.RequireFromString(amount)
	at := time.Date(2025, 8, day, 0, 0, 0, 0, time.UTC)
	return parser.ParsedRecord{Amount: &a, OccurredAt: &at, Merchant: str("Shop")}
}

func str(s string) *string { return &s }

func TestImportService_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("receipt keeps exactly one draft", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindSingleReceipt, record("10", 1), record("20", 2))

		assert.Equal(t, models.ImportStatusParsed, job.Status)
		require.Len(t, job.Drafts, 1)
		assert.True(t, job.Drafts[0].Amount.Equal(decimal.RequireFromString("10")))
		assert.NotEmpty(t, job.StorageKey)
		assert.Len(t, f.documents.objs, 1)
	})

	t.Run("unreadable receipt still yields an editable draft", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindSingleReceipt)

		require.Len(t, job.Drafts, 1)
		d := job.Drafts[0]
		assert.Nil(t, d.Amount)
		assert.Equal(t, models.TransactionTypeExpense, d.Type)
		assert.Equal(t, "INR", d.Currency)
	})

	t.Run("statement rows are normalised", func(t *testing.T) {
		f := newImportFixture(t)
		refund := record("-120.50", 3)
		usd := record("5", 4)
		usd.Currency = str("USD")
		job := f.upload(t, models.ImportKindStatementBatch, record("350", 1), refund, usd)

		require.Len(t, job.Drafts, 3)
		assert.Equal(t, "INR", job.Drafts[0].Currency)
		assert.Equal(t, models.TransactionTypeIncome, job.Drafts[1].Type)
		assert.True(t, job.Drafts[1].Amount.Equal(decimal.RequireFromString("120.50")))
		assert.Equal(t, "USD", job.Drafts[2].Currency)

		stored, err := f.svc.GetJob(ctx, f.userID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.Drafts, stored.Drafts)
	})

	t.Run("amounts too large to store are dropped", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindStatementBatch,
			record("1000000000000", 1), record("-1000000000000", 2), record("999999999999.99", 3))

		require.Len(t, job.Drafts, 3)
		assert.Nil(t, job.Drafts[0].Amount)
		assert.Nil(t, job.Drafts[1].Amount)
		require.NotNil(t, job.Drafts[2].Amount)
		assert.True(t, job.Drafts[2].Amount.Equal(decimal.RequireFromString("999999999999.99")))
	})

	t.Run("mime type sniffed when not declared", func(t *testing.T) {
		f := newImportFixture(t)
		f.parser.records = []parser.ParsedRecord{record("1", 1)}
		job, err := f.svc.Upload(ctx, f.userID, UploadInput{
			Data:     []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
			FileName: "receipt",
			MimeType: "application/octet-stream",
			Kind:     models.ImportKindSingleReceipt,
		})
		require.NoError(t, err)
		assert.Equal(t, parser.MimePNG, job.MimeType)
	})
}

func TestImportService_UploadRejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		in    UploadInput
		setup func(f *importFixture)
		want  error
	}{
		{
			name: "empty document",
			in:   UploadInput{MimeType: parser.MimePDF, Kind: models.ImportKindStatementBatch},
			want: models.ErrUnprocessableDocument,
		},
		{
			name: "unknown kind",
			in:   UploadInput{Data: []byte("%PDF"), MimeType: parser.MimePDF, Kind: "invoice"},
			want: models.ErrUnprocessableDocument,
		},
		{
			name: "unsupported media",
			in:   UploadInput{Data: []byte("hello"), MimeType: "text/plain", Kind: models.ImportKindSingleReceipt},
			want: models.ErrUnsupportedMedia,
		},
		{
			name:  "archive unavailable",
			in:    UploadInput{Data: []byte("%PDF"), MimeType: parser.MimePDF, Kind: models.ImportKindStatementBatch},
			setup: func(f *importFixture) { f.documents.err = errors.New("bucket gone") },
			want:  models.ErrStoreUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newImportFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			job, err := f.svc.Upload(ctx, f.userID, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, job)

			jobs, err := f.svc.ListJobs(ctx, f.userID, 0, 0)
			require.NoError(t, err)
			assert.Empty(t, jobs, "no job may be created")
		})
	}
}

func TestImportService_UploadParseFailure(t *testing.T) {
	ctx := context.Background()

	for name, setup := range map[string]func(f *importFixture){
		"parser error":           func(f *importFixture) { f.parser.err = parser.ErrNoText },
		"statement without rows": func(f *importFixture) { f.parser.records = nil },
	} {
		t.Run(name, func(t *testing.T) {
			f := newImportFixture(t)
			setup(f)

			_, err := f.svc.Upload(ctx, f.userID, UploadInput{
				Data:     []byte("%PDF"),
				MimeType: parser.MimePDF,
				Kind:     models.ImportKindStatementBatch,
			})
			require.ErrorIs(t, err, models.ErrUnprocessableDocument)
			assert.NotErrorIs(t, err, models.ErrUnsupportedMedia)

			jobs, err := f.svc.ListJobs(ctx, f.userID, 10, 0)
			require.NoError(t, err)
			require.Len(t, jobs, 1)
			failed := jobs[0]
			assert.Equal(t, models.ImportStatusFailed, failed.Status)
			assert.NotEmpty(t, failed.ErrorMessage)

			_, err = f.svc.Commit(ctx, f.userID, failed.ID)
			assert.ErrorIs(t, err, models.ErrJobNotCommittable)

			_, err = f.svc.EditDraft(ctx, f.userID, failed.ID, 0, DraftPatch{Notes: str("x")})
			assert.ErrorIs(t, err, models.ErrJobNotEditable)
		})
	}
}

func TestImportService_Commit(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid drafts are skipped", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindStatementBatch, record("350", 1), record("0", 2), record("99.99", 3))

		result, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 1, result.Skipped)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, models.DraftError{
			DraftIndex: 1,
			Reason:     models.ReasonInvalidDraft,
			Message:    "amount must be greater than zero",
		}, result.Errors[0])
		assert.Equal(t, 2, f.ledger.count())

		for _, tx := range f.ledger.inserted {
			assert.Equal(t, f.userID, tx.UserID)
			assert.Equal(t, job.ID, *tx.ImportJobID)
			assert.Equal(t, "INR", tx.Currency)
		}

		stored, err := f.svc.GetJob(ctx, f.userID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ImportStatusCommitted, stored.Status)
		require.NotNil(t, stored.CommittedAt)
		assert.Equal(t, result.CommittedAt, *stored.CommittedAt)
	})

	t.Run("missing date is invalid", func(t *testing.T) {
		f := newImportFixture(t)
		undated := record("10", 1)
		undated.OccurredAt = nil
		job := f.upload(t, models.ImportKindSingleReceipt, undated)

		result, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 1, result.Skipped)
		assert.Equal(t, "occurred_at is missing", result.Errors[0].Message)
	})

	t.Run("unknown category is reported but the draft is kept", func(t *testing.T) {
		f := newImportFixture(t)
		groceries := &models.Category{ID: uuid.New(), UserID: f.userID, Name: "Groceries"}
		f.categories.known[groceries.ID.String()] = groceries

		ghost := record("10", 1)
		ghost.CategoryID = str("ghost")
		known := record("20", 2)
		known.CategoryID = str(groceries.ID.String())
		job := f.upload(t, models.ImportKindStatementBatch, ghost, known)

		result, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 0, result.Skipped)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, 0, result.Errors[0].DraftIndex)
		assert.Equal(t, models.ReasonCategoryNotFound, result.Errors[0].Reason)

		require.Len(t, f.ledger.inserted, 2)
		assert.Nil(t, f.ledger.inserted[0].CategoryID)
		require.NotNil(t, f.ledger.inserted[1].CategoryID)
		assert.Equal(t, groceries.ID, *f.ledger.inserted[1].CategoryID)
	})

	t.Run("category lookup failure", func(t *testing.T) {
		f := newImportFixture(t)
		f.categories.err = errors.New("timeout")
		r := record("10", 1)
		r.CategoryID = str(uuid.NewString())
		job := f.upload(t, models.ImportKindSingleReceipt, r)

		result, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Inserted)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0].Message, "could not be resolved")
	})

	t.Run("repeat commit returns the stored result", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindStatementBatch, record("1", 1), record("2", 2))

		first, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)
		second, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.NotNil(t, second.Errors)
		assert.Equal(t, 2, f.ledger.count())
	})

	t.Run("transient ledger failures are retried", func(t *testing.T) {
		f := newImportFixture(t)
		f.ledger.failures = 2
		job := f.upload(t, models.ImportKindSingleReceipt, record("10", 1))

		result, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Inserted)
		assert.Empty(t, result.Errors)
	})

	t.Run("ledger outage skips the draft", func(t *testing.T) {
		f := newImportFixture(t)
		f.ledger.broken = true
		job := f.upload(t, models.ImportKindStatementBatch, record("10", 1), record("20", 2))

		result, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 2, result.Skipped)
		require.Len(t, result.Errors, 2)
		assert.Equal(t, models.ReasonLedgerWriteFailed, result.Errors[1].Reason)
	})

	t.Run("other users cannot see the job", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindSingleReceipt, record("10", 1))
		stranger := uuid.New()

		_, err := f.svc.GetJob(ctx, stranger, job.ID)
		assert.ErrorIs(t, err, models.ErrJobNotFound)
		_, err = f.svc.Commit(ctx, stranger, job.ID)
		assert.ErrorIs(t, err, models.ErrJobNotFound)
		_, err = f.svc.EditDraft(ctx, stranger, job.ID, 0, DraftPatch{Amount: str("1")})
		assert.ErrorIs(t, err, models.ErrJobNotFound)
		assert.Zero(t, f.ledger.count())
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newImportFixture(t)
		_, err := f.svc.Commit(ctx, f.userID, uuid.New())
		assert.ErrorIs(t, err, models.ErrJobNotFound)
	})
}

func TestImportService_ConcurrentCommit(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	f.ledger.delay = 5 * time.Millisecond
	job := f.upload(t, models.ImportKindStatementBatch, record("1", 1), record("0", 2), record("3", 3))

	// a second service instance over the same store stands in for another process
	other := NewImportService(f.store, f.parser, f.documents, f.categories, f.ledger, testOptions, zap.NewNop())

	const callers = 12
	results := make([]*models.CommitResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		svc := f.svc
		if i%2 == 1 {
			svc = other
		}
		wg.Add(1)
		go func(i int, svc *ImportService) {
			defer wg.Done()
			<-start
			results[i], errs[i] = svc.Commit(ctx, f.userID, job.ID)
		}(i, svc)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		assert.Equal(t, results[0], results[i], "caller %d", i)
	}
	assert.Equal(t, 2, results[0].Inserted)
	assert.Equal(t, 1, results[0].Skipped)
	assert.Equal(t, 2, f.ledger.count(), "drafts must reach the ledger once")
}

func TestImportService_CommitCallerGivesUp(t *testing.T) {
	f := newImportFixture(t)
	f.ledger.delay = 50 * time.Millisecond
	job := f.upload(t, models.ImportKindStatementBatch, record("1", 1), record("2", 2))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.svc.Commit(ctx, f.userID, job.ID)
	require.ErrorIs(t, err, models.ErrCommitInProgress)

	// the commit keeps running without its caller
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer drainCancel()
	require.NoError(t, f.svc.Drain(drainCtx))
	assert.Equal(t, 2, f.ledger.count())

	result, err := f.svc.Commit(context.Background(), f.userID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 2, f.ledger.count())
}

func TestImportService_CommitWaitTimeout(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	opts := testOptions
	opts.CommitWaitTimeout = 30 * time.Millisecond
	f.svc = NewImportService(f.store, f.parser, f.documents, f.categories, f.ledger, opts, zap.NewNop())
	job := f.upload(t, models.ImportKindSingleReceipt, record("1", 1))

	// someone else won the transition and never stored a result
	won, err := f.store.CompareAndSetStatus(ctx, job.ID, models.ImportStatusParsed, models.ImportStatusCommitted)
	require.NoError(t, err)
	require.True(t, won)

	_, err = f.svc.Commit(ctx, f.userID, job.ID)
	assert.ErrorIs(t, err, models.ErrCommitInProgress)
	assert.Zero(t, f.ledger.count())
}

// resultFailingStore rejects the next failures calls to SaveCommitResult.
type resultFailingStore struct {
	staging.Store
	mu       sync.Mutex
	failures int
}

func (s *resultFailingStore) SaveCommitResult(ctx context.Context, id uuid.UUID, result *models.CommitResult) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.Store.SaveCommitResult(ctx, id, result)
}

func TestImportService_CommitResultSaveFails(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	store := &resultFailingStore{Store: f.store, failures: testOptions.LedgerRetries + 1}
	svc := NewImportService(store, f.parser, f.documents, f.categories, f.ledger, testOptions, zap.NewNop())
	job := f.upload(t, models.ImportKindStatementBatch, record("1", 1), record("2", 2))

	_, err := svc.Commit(ctx, f.userID, job.ID)
	require.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Equal(t, 2, f.ledger.count())

	result, err := svc.Commit(ctx, f.userID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 2, f.ledger.count())

	stored, err := f.store.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Result)
	assert.Equal(t, 2, stored.Result.Inserted)

	again, err := svc.Commit(ctx, f.userID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, result, again)
}

func TestImportService_EditDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("edits reach the ledger", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindSingleReceipt, record("10", 1))

		draft, err := f.svc.EditDraft(ctx, f.userID, job.ID, 0, DraftPatch{
			Amount:   str("42.50"),
			Type:     str("income"),
			Currency: str("eur"),
			Merchant: str("  Corner Bakery "),
		})
		require.NoError(t, err)
		assert.True(t, draft.Edited)
		assert.Equal(t, "EUR", draft.Currency)
		assert.Equal(t, "Corner Bakery", *draft.Merchant)

		_, err = f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)

		require.Len(t, f.ledger.inserted, 1)
		tx := f.ledger.inserted[0]
		assert.True(t, tx.Amount.Equal(decimal.RequireFromString("42.50")))
		assert.Equal(t, models.TransactionTypeIncome, tx.Type)
		assert.Equal(t, "EUR", tx.Currency)
	})

	t.Run("invalid patch changes nothing", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindSingleReceipt, record("10", 1))

		_, err := f.svc.EditDraft(ctx, f.userID, job.ID, 0, DraftPatch{
			Merchant:   str("New name"),
			Amount:     str("ten"),
			OccurredAt: str("last tuesday"),
		})
		require.ErrorIs(t, err, models.ErrValidation)

		var verr *models.ValidationError
		require.True(t, errors.As(err, &verr))
		fields := []string{}
		for _, fe := range verr.Errors {
			fields = append(fields, fe.Field)
		}
		assert.ElementsMatch(t, []string{"amount", "occurred_at"}, fields)

		stored, err := f.svc.GetJob(ctx, f.userID, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.Drafts[0], stored.Drafts[0])
	})

	t.Run("missing draft", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindSingleReceipt, record("10", 1))

		_, err := f.svc.EditDraft(ctx, f.userID, job.ID, 1, DraftPatch{Notes: str("x")})
		assert.ErrorIs(t, err, models.ErrDraftNotFound)
		_, err = f.svc.EditDraft(ctx, f.userID, job.ID, -1, DraftPatch{Notes: str("x")})
		assert.ErrorIs(t, err, models.ErrDraftNotFound)
	})

	t.Run("committed job is frozen", func(t *testing.T) {
		f := newImportFixture(t)
		job := f.upload(t, models.ImportKindSingleReceipt, record("10", 1))
		_, err := f.svc.Commit(ctx, f.userID, job.ID)
		require.NoError(t, err)

		_, err = f.svc.EditDraft(ctx, f.userID, job.ID, 0, DraftPatch{Amount: str("11")})
		assert.ErrorIs(t, err, models.ErrJobNotEditable)
		_, err = f.svc.ReplaceDraft(ctx, f.userID, job.ID, 0, DraftPatch{Amount: str("11")})
		assert.ErrorIs(t, err, models.ErrJobNotEditable)
	})
}

func TestImportService_ReplaceDraft(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	r := record("10", 1)
	r.Notes = str("from the scan")
	job := f.upload(t, models.ImportKindSingleReceipt, r)

	draft, err := f.svc.ReplaceDraft(ctx, f.userID, job.ID, 0, DraftPatch{
		Amount:     str("15"),
		OccurredAt: str("2025-09-01"),
	})
	require.NoError(t, err)

	assert.Nil(t, draft.Notes)
	assert.Nil(t, draft.Merchant)
	assert.Equal(t, "INR", draft.Currency)
	assert.Equal(t, models.TransactionTypeExpense, draft.Type)

	stored, err := f.svc.GetJob(ctx, f.userID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, *draft, stored.Drafts[0])
}

func TestImportService_ListJobs(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	for i := 0; i < 3; i++ {
		f.upload(t, models.ImportKindSingleReceipt, record("1", 1))
	}

	jobs, err := f.svc.ListJobs(ctx, f.userID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = f.svc.ListJobs(ctx, uuid.New(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

type textExtractor string

func (e textExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	return string(e), nil
}

func TestImportService_ReceiptEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	receipt := "CAFE COFFEE DAY\nDate: 02/09/2025\nLatte 180.00\nTotal Rs. 189.00\n"
	docParser := parser.NewDocumentParser(textExtractor(receipt), nil, zap.NewNop())
	svc := NewImportService(f.store, docParser, f.documents, f.categories, f.ledger, testOptions, zap.NewNop())

	job, err := svc.Upload(ctx, f.userID, UploadInput{
		Data:     []byte("\xff\xd8\xff\xe0 jpeg"),
		FileName: "coffee.jpg",
		MimeType: "image/jpeg",
		Kind:     models.ImportKindSingleReceipt,
	})
	require.NoError(t, err)
	require.Len(t, job.Drafts, 1)

	result, err := svc.Commit(ctx, f.userID, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	tx := f.ledger.inserted[0]
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("189")), "got %s", tx.Amount)
	assert.Equal(t, "INR", tx.Currency)
	assert.Equal(t, time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC), tx.OccurredAt)
	assert.Equal(t, "CAFE COFFEE DAY", *tx.Merchant)
}

func TestImportService_BlankReceiptImage(t *testing.T) {
	ctx := context.Background()
	f := newImportFixture(t)
	docParser := parser.NewDocumentParser(textExtractor(""), nil, zap.NewNop())
	svc := NewImportService(f.store, docParser, f.documents, f.categories, f.ledger, testOptions, zap.NewNop())

	job, err := svc.Upload(ctx, f.userID, UploadInput{
		Data:     []byte("\x89PNG\r\n\x1a\n blank"),
		FileName: "blank.png",
		MimeType: "image/png",
		Kind:     models.ImportKindSingleReceipt,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ImportStatusParsed, job.Status)
	require.Len(t, job.Drafts, 1)
	assert.Nil(t, job.Drafts[0].Amount)
	assert.Equal(t, "INR", job.Drafts[0].Currency)

	_, err = svc.Upload(ctx, f.userID, UploadInput{
		Data:     []byte("%PDF-1.4 blank"),
		FileName: "blank.pdf",
		MimeType: "application/pdf",
		Kind:     models.ImportKindStatementBatch,
	})
	assert.ErrorIs(t, err, models.ErrUnprocessableDocument)
}
