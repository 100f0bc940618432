package core

// loader.go drives the load of a feed table by table.
//
// Each table moves through idle, reading, binding and flushing until it is
// closed or has failed. Rows are validated field by field, checked for
// duplicate keys and dangling references, then handed to the Store in
// batches. Every table (and the errors recorded while reading it) is
// committed on its own, so a failure only loses the table in progress.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ContextCheckInterval is how often, in rows, the loader checks for
// cancellation.
var ContextCheckInterval = 100

// RowSource yields the rows of one table. Each row is in the table's field
// order with the line number in slot 0. Next returns io.EOF after the last row.
type RowSource interface {
	Next() ([]string, error)
	Close() error
}

// Feed opens the row source of a table. It returns ErrTableNotFound when the
// feed has no file for the table.
type Feed interface {
	Rows(t *Table) (RowSource, error)
}

// columnReporter is implemented by row sources that can tell which required
// columns are missing from the file header.
type columnReporter interface {
	MissingColumns() []string
}

// sizer is implemented by row sources that know the size of their file.
type sizer interface {
	Size() int64
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize      int
	ErrorBatchSize int
	RetainErrors   int
	// ExtendedTables lists the tables reported by HasExtendedData.
	ExtendedTables []string
	// ContinueOnTableFailure keeps loading later tables after one aborts.
	ContinueOnTableFailure bool
	// OnTable, if set, is called before each table is opened.
	OnTable func(name string)
	Logger  *slog.Logger
}

// TableLoadError reports that a table load aborted.
type TableLoadError struct {
	Table string
	Phase LoadPhase
	Err   error
}

func (e *TableLoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Table, e.Phase, e.Err)
}

func (e *TableLoadError) Unwrap() error {
	return e.Err
}

// Loader loads feeds into a single Store. It is not safe for concurrent use.
type Loader struct {
	store  Store
	cfg    LoaderConfig
	errors *ErrorStorage
	refs   *ReferenceTracker
	conds  *ConditionEvaluator
	logger *slog.Logger
	phase  LoadPhase
}

// NewLoader creates a Loader writing to store.
func NewLoader(store Store, cfg LoaderConfig) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.ErrorBatchSize <= 0 {
		cfg.ErrorBatchSize = cfg.BatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	refs := NewReferenceTracker()
	return &Loader{
		store:  store,
		cfg:    cfg,
		errors: NewErrorStorage(store, cfg.ErrorBatchSize, cfg.RetainErrors),
		refs:   refs,
		conds:  NewConditionEvaluator(refs),
		logger: cfg.Logger,
		phase:  PhaseIdle,
	}
}

// Errors returns the storage holding every error recorded by the loader.
func (l *Loader) Errors() *ErrorStorage { return l.errors }

// Phase returns the phase of the table currently loading.
func (l *Loader) Phase() LoadPhase { return l.phase }

// LoadFeed loads tables from feed in order. A result is returned whenever the
// errors table could be created, even if a table aborted; the error is non-nil
// when the load stopped early.
func (l *Loader) LoadFeed(ctx context.Context, id string, feed Feed, tables []*Table) (*FeedLoadResult, error) {
	result := NewFeedLoadResult(id, l.store.Schema(), l.cfg.ExtendedTables)
	start := result.StartedAt
	log := l.logger.With("load_id", id, "schema", l.store.Schema())

	if err := l.errors.CreateTable(ctx); err != nil {
		return nil, err
	}
	TrackReferencedColumns(l.refs, tables)

	for _, t := range tables {
		if l.cfg.OnTable != nil {
			l.cfg.OnTable(t.Name())
		}
		src, err := feed.Rows(t)
		if errors.Is(err, ErrTableNotFound) {
			if t.IsRequired() {
				l.errors.RegisterError(TableEntity(t), MissingTable, t.FileName())
			}
			result.Tables[t.Name()] = TableLoadResult{Missing: true, ErrorCount: boolToInt(t.IsRequired())}
			log.Debug("table not in feed", "table", t.Name())
			continue
		}
		if err != nil {
			err = &TableLoadError{Table: t.Name(), Phase: PhaseIdle, Err: err}
			result.Tables[t.Name()] = failedTableResult(err, 0)
			if stop := l.abort(ctx, result, err, log); stop {
				return l.finish(result, start), err
			}
			continue
		}

		tr, err := l.LoadTable(ctx, t, src)
		src.Close()
		result.Tables[t.Name()] = tr
		if err != nil {
			if stop := l.abort(ctx, result, err, log); stop {
				return l.finish(result, start), err
			}
			continue
		}
		log.Info("table loaded",
			"table", t.Name(),
			"rows", tr.RowCount,
			"error_rows", tr.ErrorRowCount,
			"keys", l.refs.KeyCount(t.Name()),
			"duration", tr.Duration,
		)
	}

	// Table-level errors recorded outside any table load.
	if err := l.errors.Flush(ctx); err != nil {
		return l.finish(result, start), err
	}
	if err := l.store.Commit(ctx); err != nil {
		return l.finish(result, start), err
	}
	return l.finish(result, start), nil
}

func (l *Loader) abort(ctx context.Context, result *FeedLoadResult, err error, log *slog.Logger) bool {
	if rbErr := l.store.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
		log.Warn("rollback failed", "error", rbErr)
	}
	log.Error("table load failed", "error", err)
	if result.FatalException == "" {
		result.FatalException = err.Error()
	}
	return !l.cfg.ContinueOnTableFailure || ctx.Err() != nil
}

func (l *Loader) finish(result *FeedLoadResult, start time.Time) *FeedLoadResult {
	result.ErrorCount = l.errors.Count()
	result.ErrorCountByType = l.errors.CountByType()
	result.Duration = time.Since(start).String()
	return result
}

func failedTableResult(err error, rows int) TableLoadResult {
	return TableLoadResult{
		RowCount:   rows,
		FatalError: err.Error(),
		FatalCode:  MapError(err).Code,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// LoadTable creates t in the store, loads every row of src and commits. On
// failure the table's transaction is left for the caller to roll back and a
// *TableLoadError is returned. The errors, keys and deferred rule checks
// recorded for a failed table are forgotten, as if the table had not been
// read.
func (l *Loader) LoadTable(ctx context.Context, t *Table, src RowSource) (TableLoadResult, error) {
	start := time.Now()
	var tr TableLoadResult
	mark := l.errors.Mark()
	errorsBefore := l.errors.Count()
	l.refs.Begin()

	fail := func(err error) (TableLoadResult, error) {
		phase := l.phase
		l.phase = PhaseFailed
		lerr := &TableLoadError{Table: t.Name(), Phase: phase, Err: err}
		failed := failedTableResult(lerr, tr.RowCount)
		failed.ErrorRowCount = tr.ErrorRowCount
		failed.ErrorCount = l.errors.Count() - errorsBefore
		failed.Duration = time.Since(start).String()

		l.errors.Reset(mark)
		l.refs.Rollback()
		l.conds.Discard(t.Name())
		return failed, lerr
	}

	l.phase = PhaseIdle
	d := l.store.Dialect()
	schema := l.store.Schema()
	if err := l.store.Exec(ctx, t.CreateSQL(d, schema)); err != nil {
		return fail(fmt.Errorf("create table: %w", err))
	}

	if s, ok := src.(sizer); ok {
		tr.FileSize = s.Size()
	}
	if cr, ok := src.(columnReporter); ok {
		for _, col := range cr.MissingColumns() {
			l.errors.RegisterError(TableEntity(t), MissingColumn, col)
		}
	}

	columns := t.ColumnNames()
	errorLines := make(map[int]struct{})
	batch := make([][]any, 0, l.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		l.phase = PhaseFlushing
		if err := l.store.CopyRows(ctx, t.Name(), columns, batch); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		batch = batch[:0]
		if l.errors.Full() {
			return l.errors.Flush(ctx)
		}
		return nil
	}

	for {
		if tr.RowCount%ContextCheckInterval == 0 && ctx.Err() != nil {
			return fail(ctx.Err())
		}

		l.phase = PhaseReading
		row, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("read row %d: %w", tr.RowCount+1, err))
		}

		l.phase = PhaseBinding
		params, rowErrs := l.bindRow(t, row)
		tr.RowCount++
		if !rowErrs.Empty() {
			tr.ErrorRowCount++
			errorLines[int(params[0].(int32))] = struct{}{}
			l.errors.StoreErrors(rowErrs)
		}

		batch = append(batch, params)
		if len(batch) >= l.cfg.BatchSize {
			if err := flush(); err != nil {
				return fail(err)
			}
		}
	}

	if err := flush(); err != nil {
		return fail(err)
	}
	deferred := l.conds.EvaluateTable(t.Name(), tr.RowCount)
	for _, e := range deferred.Errors() {
		if _, seen := errorLines[e.Line]; !seen {
			errorLines[e.Line] = struct{}{}
			tr.ErrorRowCount++
		}
	}
	l.errors.StoreErrors(deferred)

	for _, stmt := range t.IndexSQL(d, schema) {
		if err := l.store.Exec(ctx, stmt); err != nil {
			return fail(fmt.Errorf("create index: %w", err))
		}
	}
	if err := l.errors.Flush(ctx); err != nil {
		return fail(err)
	}
	if err := l.store.Commit(ctx); err != nil {
		return fail(fmt.Errorf("commit: %w", err))
	}

	l.refs.Commit()
	l.phase = PhaseClosed
	tr.ErrorCount = l.errors.Count() - errorsBefore
	tr.Duration = time.Since(start).String()
	return tr, nil
}

// bindRow validates and binds one row. The returned errors are attributed to
// the row.
func (l *Loader) bindRow(t *Table, row []string) (RowParams, ErrorSet) {
	line := NewLineContext(t, row)
	fields := t.Fields()
	params := make(RowParams, len(fields)+1)
	params[0] = int32(line.LineNumber())

	var errs ErrorSet
	for i, f := range fields {
		raw := line.ValueAt(i)
		errs.AddAll(f.Bind(params, i+1, raw))

		if !hasValue(raw) {
			continue
		}
		if ref := f.ForeignTable(); ref != nil && !l.refs.HasKey(ref.Name(), raw) {
			errs.Add(NewError(ReferentialIntegrity, raw).
				ForField(f.Name()).
				WithContext("references", ref.Name()))
		}
		if l.refs.IsTracked(t.Name(), f.Name()) {
			l.refs.AddValue(t.Name(), f.Name(), raw)
		}
	}

	if id := line.EntityID(); hasValue(id) {
		duplicate := l.refs.AddKey(t.Name(), id)
		if duplicate && t.HasUniqueKey() {
			errs.Add(NewError(DuplicateID, id).ForField(t.KeyField()))
		}
		if other := t.KeysProvidedFor(); other != nil {
			l.refs.AddKey(other.Name(), id)
		}
	}

	for _, f := range fields {
		if f.IsConditionallyRequired() {
			errs.AddAll(l.conds.EvaluateRow(line, f))
		}
	}

	var stamped ErrorSet
	for _, e := range errs.Errors() {
		stamped.Add(e.ForEntity(line))
	}
	return params, stamped
}
