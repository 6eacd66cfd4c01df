package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// recordViewDataset is the ledger joined with book titles and
// usernames. Books join left so history survives a deleted title.
func recordViewDataset() *goqu.SelectDataset {
	return dialect.From(goqu.T("borrowing_records").As("br")).
		LeftJoin(goqu.T("books").As("b"), goqu.On(goqu.Ex{"b.book_id": goqu.I("br.book_id")})).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.user_id": goqu.I("br.user_id")})).
		Select(
			goqu.I("br.record_id"),
			goqu.I("br.book_id"),
			goqu.COALESCE(goqu.I("b.title"), "").As("book_title"),
			goqu.I("br.user_id"),
			goqu.I("u.username"),
			goqu.I("br.borrow_date"),
			goqu.I("br.due_date"),
			goqu.I("br.return_date"),
			goqu.I("br.status"),
			goqu.I("br.renew_count"),
		).
		Order(goqu.I("br.record_id").Desc())
}

// Borrow lends a copy of a book to a user: it inserts a borrowed record
// due in LoanDays days and takes one available copy, all in a single
// transaction.
//
// Preconditions, checked in order: the user exists and is active, the
// book exists with a free copy, and the user holds no unreturned copy
// of the same book. The decrement itself is guarded by
// available_copies > 0 so two racing borrows cannot both take the last
// copy.
func (d *Database) Borrow(userID, bookID int64) (*LoanRecord, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var active bool
	err = tx.QueryRow(`SELECT status FROM users WHERE user_id=?`, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: account %d is disabled", ErrValidation, userID)
	}

	var available int
	err = tx.QueryRow(`SELECT available_copies FROM books WHERE book_id=?`, bookID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrNoCopiesAvailable)
	}

	var held int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM borrowing_records
        WHERE user_id=? AND book_id=? AND status=?`, userID, bookID, StatusBorrowed).Scan(&held); err != nil {
		return nil, err
	}
	if held > 0 {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrDuplicateActiveLoan)
	}

	res, err := tx.Exec(`UPDATE books SET available_copies = available_copies - 1
        WHERE book_id=? AND available_copies > 0`, bookID)
	if err != nil {
		return nil, fmt.Errorf("take copy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("book %d: %w", bookID, ErrNoCopiesAvailable)
	}

	rec := &LoanRecord{
		BookID:     bookID,
		UserID:     userID,
		BorrowDate: d.today(),
		DueDate:    d.today().AddDate(0, 0, d.cfg.LoanDays),
		Status:     StatusBorrowed,
	}
	ins, err := tx.Exec(`INSERT INTO borrowing_records
        (book_id, user_id, borrow_date, due_date, status, renew_count)
        VALUES (?, ?, ?, ?, ?, 0)`,
		rec.BookID, rec.UserID, rec.BorrowDate, rec.DueDate, rec.Status)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	if rec.ID, err = ins.LastInsertId(); err != nil {
		return nil, err
	}

	return rec, tx.Commit()
}

// Return closes a borrowed record: stamps the return date, flips the
// status and gives the copy back to the catalog. The returned count is
// the number of days the loan was overdue, zero when on time.
func (d *Database) Return(recordID int64) (int, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bookID int64
	var status string
	var due time.Time
	err = tx.QueryRow(`SELECT book_id, status, due_date FROM borrowing_records
        WHERE record_id=?`, recordID).Scan(&bookID, &status, &due)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record %d: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	if status == StatusReturned {
		return 0, fmt.Errorf("record %d: %w", recordID, ErrAlreadyReturned)
	}

	overdue := daysBetween(d.today(), due)
	if overdue < 0 {
		overdue = 0
	}

	if _, err := tx.Exec(`UPDATE borrowing_records SET status=?, return_date=?
        WHERE record_id=?`, StatusReturned, d.today(), recordID); err != nil {
		return 0, fmt.Errorf("close record: %w", err)
	}
	if _, err := tx.Exec(`UPDATE books SET available_copies = available_copies + 1
        WHERE book_id=?`, bookID); err != nil {
		return 0, fmt.Errorf("release copy: %w", err)
	}

	return overdue, tx.Commit()
}

// Renew extends a borrowed record's due date by the loan period,
// counted from the current due date rather than from today. A record
// can be renewed at most MaxRenewals times and never while overdue.
func (d *Database) Renew(recordID int64) (time.Time, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback()

	var status string
	var due time.Time
	var renewCount int
	err = tx.QueryRow(`SELECT status, due_date, renew_count FROM borrowing_records
        WHERE record_id=?`, recordID).Scan(&status, &due, &renewCount)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("record %d: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return time.Time{}, err
	}
	if status == StatusReturned {
		return time.Time{}, fmt.Errorf("record %d: %w", recordID, ErrAlreadyReturned)
	}
	if renewCount >= d.cfg.MaxRenewals {
		return time.Time{}, fmt.Errorf("record %d: %w", recordID, ErrRenewalLimitReached)
	}
	if daysBetween(d.today(), due) > 0 {
		return time.Time{}, fmt.Errorf("record %d: %w", recordID, ErrOverdue)
	}

	newDue := due.AddDate(0, 0, d.cfg.LoanDays)
	if _, err := tx.Exec(`UPDATE borrowing_records SET due_date=?, renew_count=renew_count+1
        WHERE record_id=?`, newDue, recordID); err != nil {
		return time.Time{}, fmt.Errorf("renew record: %w", err)
	}

	return newDue, tx.Commit()
}

// CheckOverdue reports whether a borrowed record is past due and by how
// many days. Missing and already-returned records count as not overdue;
// no error is raised for them.
func (d *Database) CheckOverdue(recordID int64) (bool, int, error) {
	var due time.Time
	err := d.db.QueryRow(`SELECT due_date FROM borrowing_records
        WHERE record_id=? AND status=?`, recordID, StatusBorrowed).Scan(&due)
	if errors.Is(err, sql.ErrNoRows) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	days := daysBetween(d.today(), due)
	if days <= 0 {
		return false, 0, nil
	}
	return true, days, nil
}

// GetRecord fetches a single loan record.
func (d *Database) GetRecord(id int64) (*LoanRecord, error) {
	var rec LoanRecord
	err := d.db.Get(&rec, `SELECT record_id, book_id, user_id, borrow_date, due_date,
        return_date, status, renew_count FROM borrowing_records WHERE record_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRecords returns the whole ledger as presentation views, newest
// first.
func (d *Database) ListRecords() ([]*LoanRecordView, error) {
	return d.selectRecordViews(recordViewDataset())
}

// SearchRecords runs one of the fixed ledger searches; every kind keys
// on a numeric identifier.
func (d *Database) SearchRecords(kind RecordSearchKind, keyword string) ([]*LoanRecordView, error) {
	id, err := strconv.ParseInt(keyword, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: record search keyword must be numeric", ErrValidation)
	}

	ds := recordViewDataset()
	switch kind {
	case RecordByID:
		ds = ds.Where(goqu.I("br.record_id").Eq(id))
	case RecordByUserID:
		ds = ds.Where(goqu.I("br.user_id").Eq(id))
	case RecordByBookID:
		ds = ds.Where(goqu.I("br.book_id").Eq(id))
	default:
		return nil, fmt.Errorf("%w: unknown record search kind %q", ErrValidation, kind)
	}

	return d.selectRecordViews(ds)
}

// UserRecords returns one user's loan history, optionally narrowed to
// borrowed or returned records.
func (d *Database) UserRecords(userID int64, statusFilter string) ([]*LoanRecordView, error) {
	ds := recordViewDataset().Where(goqu.I("br.user_id").Eq(userID))

	switch statusFilter {
	case FilterAll:
	case FilterBorrowed, FilterReturned:
		ds = ds.Where(goqu.I("br.status").Eq(statusFilter))
	default:
		return nil, fmt.Errorf("%w: unknown status filter %q", ErrValidation, statusFilter)
	}

	return d.selectRecordViews(ds)
}

func (d *Database) selectRecordViews(ds *goqu.SelectDataset) ([]*LoanRecordView, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build record query: %w", err)
	}

	var views []*LoanRecordView
	if err := d.db.Select(&views, query, args...); err != nil {
		return nil, err
	}
	return views, nil
}
