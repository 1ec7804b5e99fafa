// Package history persists submissions and their verdicts.
package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/udovin/gosql"
	"golang.org/x/exp/slices"

	"github.com/competitive-cli/judge/internal/archive"
	"github.com/competitive-cli/judge/internal/db"
	"github.com/competitive-cli/judge/internal/db/schema"
	"github.com/competitive-cli/judge/internal/pkg/logs"
	"github.com/competitive-cli/judge/pkg/judges"
)

// Submission represents stored submission.
type Submission struct {
	ID           int64  `db:"id"`
	Judge        string `db:"judge"`
	Account      string `db:"account"`
	SubmissionID string `db:"submission_id"`
	Problem      string `db:"problem"`
	Language     string `db:"language"`
	Contest      string `db:"contest"`
	Verdict      string `db:"verdict"`
	VerdictLabel string `db:"verdict_label"`
	// Runtime contains runtime in milliseconds.
	Runtime int64 `db:"runtime"`
	// Memory contains used memory in kilobytes.
	Memory     int64 `db:"memory"`
	SubmitTime int64 `db:"submit_time"`
	// SourceKey contains key of source in archive.
	SourceKey    string `db:"source_key"`
	SourceDigest string `db:"source_digest"`
}

// Record converts stored submission to record.
func (s Submission) Record() (judges.SubmissionRecord, error) {
	verdict, err := judges.ParseVerdict(s.Verdict)
	if err != nil {
		return judges.SubmissionRecord{}, err
	}
	record := judges.SubmissionRecord{
		ID:           judges.SubmissionID(s.SubmissionID),
		Problem:      s.Problem,
		Verdict:      verdict,
		VerdictLabel: s.VerdictLabel,
		Runtime:      time.Duration(s.Runtime) * time.Millisecond,
		MemoryKB:     s.Memory,
		Language:     s.Language,
		Contest:      s.Contest,
	}
	if s.SubmitTime != 0 {
		record.SubmittedAt = time.Unix(s.SubmitTime, 0).UTC()
	}
	return record, nil
}

const defaultTable = "judge_submission"

// Store stores submission history in database.
type Store struct {
	db     *gosql.DB
	table  string
	logger *logs.Logger
}

// NewStore creates store over database connection.
func NewStore(conn *gosql.DB, logger *logs.Logger) *Store {
	if logger == nil {
		logger = logs.NewLogger(logs.WithOutput(io.Discard))
	}
	return &Store{db: conn, table: defaultTable, logger: logger}
}

func (s *Store) schema() []schema.Operation {
	table := schema.CreateTable{
		Name: s.table,
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "judge", Type: schema.String},
			{Name: "account", Type: schema.String},
			{Name: "submission_id", Type: schema.String},
			{Name: "problem", Type: schema.String},
			{Name: "language", Type: schema.String},
			{Name: "contest", Type: schema.String},
			{Name: "verdict", Type: schema.String},
			{Name: "verdict_label", Type: schema.String},
			{Name: "runtime", Type: schema.Int64},
			{Name: "memory", Type: schema.Int64},
			{Name: "submit_time", Type: schema.Int64},
			{Name: "source_key", Type: schema.String},
			{Name: "source_digest", Type: schema.String},
		},
		Unique: [][]string{{"judge", "submission_id"}},
	}
	return []schema.Operation{
		table,
		schema.CreateIndex{Table: s.table, Columns: []string{"judge", "account"}},
	}
}

// Init creates table and its indexes if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	for _, operation := range s.schema() {
		query, err := operation.BuildApply(s.db.Dialect())
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// Get returns stored submission.
func (s *Store) Get(ctx context.Context, judge judges.Judge, id judges.SubmissionID) (Submission, bool, error) {
	rows, err := db.FindRows[Submission](ctx, s.db, s.table, db.FindQuery{
		Where: gosql.Column("judge").Equal(string(judge)).
			And(gosql.Column("submission_id").Equal(string(id))),
		Limit: 1,
	})
	if err != nil {
		return Submission{}, false, err
	}
	found, err := db.CollectRows(rows)
	if err != nil || len(found) == 0 {
		return Submission{}, false, err
	}
	return found[0], true, nil
}

// upsert inserts submission or merges it into existing one.
func (s *Store) upsert(ctx context.Context, row Submission, merge func(old, row Submission) Submission) error {
	return db.WrapTx(ctx, s.db, func(ctx context.Context) error {
		old, ok, err := s.Get(ctx, judges.Judge(row.Judge), judges.SubmissionID(row.SubmissionID))
		if err != nil {
			return err
		}
		if !ok {
			_, err := db.InsertRow(ctx, s.db, row, "id", s.table)
			return err
		}
		updated := merge(old, row)
		updated.ID = old.ID
		if updated == old {
			return nil
		}
		return db.UpdateRow(ctx, s.db, updated, old.ID, "id", s.table)
	})
}

// SaveSubmission stores fresh submission with its archived source.
func (s *Store) SaveSubmission(
	ctx context.Context, judge judges.Judge, account string,
	sub judges.Submission, source archive.Entry,
) error {
	row := Submission{
		Judge:        string(judge),
		Account:      account,
		SubmissionID: string(sub.ID),
		Problem:      sub.Problem,
		Language:     sub.Language,
		Contest:      sub.Contest,
		Verdict:      sub.Verdict.String(),
		SubmitTime:   sub.SubmittedAt.Unix(),
		SourceKey:    source.Key,
		SourceDigest: source.Digest,
	}
	if err := s.upsert(ctx, row, func(old, row Submission) Submission {
		row.Verdict = mergeVerdict(old.Verdict, row.Verdict)
		return row
	}); err != nil {
		return fmt.Errorf("cannot save submission %q: %w", sub.ID, err)
	}
	s.logger.Debug(
		"Submission saved",
		logs.Any("judge", string(judge)),
		logs.Any("submission", string(sub.ID)),
	)
	return nil
}

// SaveRecords stores submission records fetched from judge.
func (s *Store) SaveRecords(
	ctx context.Context, judge judges.Judge, account string,
	records []judges.SubmissionRecord,
) error {
	return db.WrapTx(ctx, s.db, func(ctx context.Context) error {
		for _, record := range records {
			row := Submission{
				Judge:        string(judge),
				Account:      account,
				SubmissionID: string(record.ID),
				Problem:      record.Problem,
				Language:     record.Language,
				Contest:      record.Contest,
				Verdict:      record.Verdict.String(),
				VerdictLabel: record.VerdictLabel,
				Runtime:      record.Runtime.Milliseconds(),
				Memory:       record.MemoryKB,
			}
			if !record.SubmittedAt.IsZero() {
				row.SubmitTime = record.SubmittedAt.Unix()
			}
			if err := s.upsert(ctx, row, func(old, row Submission) Submission {
				row.Verdict = mergeVerdict(old.Verdict, row.Verdict)
				row.SourceKey = old.SourceKey
				row.SourceDigest = old.SourceDigest
				if row.Contest == "" {
					row.Contest = old.Contest
				}
				if row.SubmitTime == 0 {
					row.SubmitTime = old.SubmitTime
				}
				return row
			}); err != nil {
				return fmt.Errorf("cannot save record %q: %w", record.ID, err)
			}
		}
		return nil
	})
}

// Records returns stored submissions of account, newest first.
func (s *Store) Records(
	ctx context.Context, judge judges.Judge, account string,
) ([]judges.SubmissionRecord, error) {
	rows, err := db.FindRows[Submission](ctx, s.db, s.table, db.FindQuery{
		Where: gosql.Column("judge").Equal(string(judge)).
			And(gosql.Column("account").Equal(account)),
	})
	if err != nil {
		return nil, err
	}
	found, err := db.CollectRows(rows)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(found, func(a, b Submission) bool {
		if a.SubmitTime != b.SubmitTime {
			return a.SubmitTime > b.SubmitTime
		}
		return a.ID > b.ID
	})
	records := make([]judges.SubmissionRecord, 0, len(found))
	for _, row := range found {
		record, err := row.Record()
		if err != nil {
			return nil, fmt.Errorf("submission %q: %w", row.SubmissionID, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// LoadVerdict returns stored terminal verdict.
func (s *Store) LoadVerdict(
	ctx context.Context, judge judges.Judge, id judges.SubmissionID,
) (judges.Verdict, bool, error) {
	row, ok, err := s.Get(ctx, judge, id)
	if err != nil || !ok {
		return judges.Pending, false, err
	}
	verdict, err := judges.ParseVerdict(row.Verdict)
	if err != nil {
		return judges.Pending, false, err
	}
	if !verdict.IsTerminal() {
		return judges.Pending, false, nil
	}
	return verdict, true, nil
}

// StoreVerdict records verdict of submission.
func (s *Store) StoreVerdict(
	ctx context.Context, judge judges.Judge, id judges.SubmissionID, verdict judges.Verdict,
) error {
	row := Submission{
		Judge:        string(judge),
		SubmissionID: string(id),
		Verdict:      verdict.String(),
	}
	return s.upsert(ctx, row, func(old, row Submission) Submission {
		old.Verdict = mergeVerdict(old.Verdict, row.Verdict)
		return old
	})
}

// mergeVerdict keeps terminal verdict once it is known.
func mergeVerdict(old, verdict string) string {
	if v, err := judges.ParseVerdict(old); err == nil && v.IsTerminal() {
		return old
	}
	return verdict
}

var _ judges.VerdictCache = (*Store)(nil)
