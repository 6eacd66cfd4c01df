package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

// activeLoans counts unreturned records for a book straight from the
// ledger, bypassing the workflow.
func activeLoans(t *testing.T, db *Database, bookID int64) int {
	t.Helper()
	var n int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM borrowing_records WHERE book_id=? AND status=?`,
		bookID, StatusBorrowed).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestBorrowCreatesRecordAndTakesCopy(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "reader7")
	bookID := seedBook(t, db, "Dune", 2)

	rec, err := db.Borrow(userID, bookID)
	require.NoError(t, err)

	assert.Equal(t, bookID, rec.BookID)
	assert.Equal(t, userID, rec.UserID)
	assert.Equal(t, StatusBorrowed, rec.Status)
	assert.Equal(t, 0, rec.RenewCount)
	assert.Equal(t, db.today(), rec.BorrowDate)
	assert.Equal(t, db.today().AddDate(0, 0, 30), rec.DueDate)

	b, err := db.GetBook(bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.AvailableCopies)
	assert.Equal(t, 2, b.TotalCopies)
}

func TestBorrowFailures(t *testing.T) {
	db := tempDB(t)
	userID := seedUser(t, db, "reader")
	bookID := seedBook(t, db, "Solaris", 1)

	t.Run("unknown user", func(t *testing.T) {
		_, err := db.Borrow(9999, bookID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown book", func(t *testing.T) {
		_, err := db.Borrow(userID, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("disabled account", func(t *testing.T) {
		blockedID := seedUser(t, db, "blocked")
		require.NoError(t, db.SetUserStatus(blockedID, false))
		_, err := db.Borrow(blockedID, bookID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("duplicate active loan", func(t *testing.T) {
		_, err := db.Borrow(userID, bookID)
		require.NoError(t, err)
		_, err = db.Borrow(userID, bookID)
		assert.ErrorIs(t, err, ErrDuplicateActiveLoan)
	})

	t.Run("no copies available", func(t *testing.T) {
		otherID := seedUser(t, db, "other")
		_, err := db.Borrow(otherID, bookID) // single copy already out
		assert.ErrorIs(t, err, ErrNoCopiesAvailable)
	})
}

func TestReturnFlow(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "reader")
	bookID := seedBook(t, db, "Hyperion", 2)

	rec, err := db.Borrow(userID, bookID)
	require.NoError(t, err)

	b, _ := db.GetBook(bookID)
	require.Equal(t, 1, b.AvailableCopies)

	overdue, err := db.Return(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, overdue)

	b, _ = db.GetBook(bookID)
	assert.Equal(t, 2, b.AvailableCopies)

	got, err := db.GetRecord(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, got.Status)
	require.True(t, got.ReturnDate.Valid)
	assert.True(t, got.ReturnDate.Time.Equal(db.today()))

	// Second return fails and has no side effect.
	_, err = db.Return(rec.ID)
	assert.ErrorIs(t, err, ErrAlreadyReturned)
	b, _ = db.GetBook(bookID)
	assert.Equal(t, 2, b.AvailableCopies)
}

func TestReturnReportsOverdueDays(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "latecomer")
	bookID := seedBook(t, db, "Slow Reader", 1)

	rec, err := db.Borrow(userID, bookID)
	require.NoError(t, err)

	setToday(db, day0.AddDate(0, 0, 35)) // 5 days past the 30-day term
	overdue, err := db.Return(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, overdue)
}

func TestReturnMissingRecord(t *testing.T) {
	db := tempDB(t)
	_, err := db.Return(404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRenewAdvancesDueDateTwice(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "renewer")
	bookID := seedBook(t, db, "Long Read", 1)

	rec, err := db.Borrow(userID, bookID)
	require.NoError(t, err)
	firstDue := rec.DueDate

	// Renewals extend from the current due date, not from today.
	due1, err := db.Renew(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, firstDue.AddDate(0, 0, 30), due1)

	due2, err := db.Renew(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, firstDue.AddDate(0, 0, 60), due2)

	_, err = db.Renew(rec.ID)
	assert.ErrorIs(t, err, ErrRenewalLimitReached)

	got, err := db.GetRecord(rec.ID)
	require.NoError(t, err)
	assert.True(t, got.DueDate.Equal(due2))
	assert.Equal(t, 2, got.RenewCount)
}

func TestRenewRejections(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "reader")

	t.Run("missing record", func(t *testing.T) {
		_, err := db.Renew(404)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned record", func(t *testing.T) {
		bookID := seedBook(t, db, "Done", 1)
		rec, err := db.Borrow(userID, bookID)
		require.NoError(t, err)
		_, err = db.Return(rec.ID)
		require.NoError(t, err)
		_, err = db.Renew(rec.ID)
		assert.ErrorIs(t, err, ErrAlreadyReturned)
	})

	t.Run("overdue record", func(t *testing.T) {
		bookID := seedBook(t, db, "Late", 1)
		rec, err := db.Borrow(userID, bookID)
		require.NoError(t, err)

		setToday(db, day0.AddDate(0, 0, 31))
		_, err = db.Renew(rec.ID)
		assert.ErrorIs(t, err, ErrOverdue)
		setToday(db, day0)
	})
}

func TestCheckOverdue(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "reader")
	bookID := seedBook(t, db, "Clock", 1)

	rec, err := db.Borrow(userID, bookID)
	require.NoError(t, err)

	// On the due date itself the loan is not overdue.
	setToday(db, rec.DueDate)
	overdue, days, err := db.CheckOverdue(rec.ID)
	require.NoError(t, err)
	assert.False(t, overdue)
	assert.Equal(t, 0, days)

	setToday(db, rec.DueDate.AddDate(0, 0, 3))
	overdue, days, err = db.CheckOverdue(rec.ID)
	require.NoError(t, err)
	assert.True(t, overdue)
	assert.Equal(t, 3, days)

	// Missing records count as not overdue, no error.
	overdue, days, err = db.CheckOverdue(404)
	require.NoError(t, err)
	assert.False(t, overdue)
	assert.Equal(t, 0, days)

	// Returned records too, however late the return was.
	_, err = db.Return(rec.ID)
	require.NoError(t, err)
	overdue, days, err = db.CheckOverdue(rec.ID)
	require.NoError(t, err)
	assert.False(t, overdue)
	assert.Equal(t, 0, days)
}

// TestCopyCountConservation drives a borrow/return sequence and checks
// that available_copies always equals total minus unreturned records.
func TestCopyCountConservation(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)

	bookID := seedBook(t, db, "Popular", 3)
	users := []int64{
		seedUser(t, db, "u1"),
		seedUser(t, db, "u2"),
		seedUser(t, db, "u3"),
	}

	check := func() {
		t.Helper()
		b, err := db.GetBook(bookID)
		require.NoError(t, err)
		assert.Equal(t, b.TotalCopies-activeLoans(t, db, bookID), b.AvailableCopies)
	}

	var recs []int64
	for _, u := range users {
		rec, err := db.Borrow(u, bookID)
		require.NoError(t, err)
		recs = append(recs, rec.ID)
		check()
	}

	b, _ := db.GetBook(bookID)
	require.Equal(t, 0, b.AvailableCopies)

	_, err := db.Return(recs[1])
	require.NoError(t, err)
	check()

	// u2 borrows again after returning.
	_, err = db.Borrow(users[1], bookID)
	require.NoError(t, err)
	check()

	for _, id := range []int64{recs[0], recs[2]} {
		_, err := db.Return(id)
		require.NoError(t, err)
		check()
	}
}

// TestConcurrentBorrowLastCopy races two users for a single copy; the
// guarded decrement must admit exactly one.
func TestConcurrentBorrowLastCopy(t *testing.T) {
	db := tempDB(t)
	bookID := seedBook(t, db, "Last Copy", 1)
	u1 := seedUser(t, db, "fast")
	u2 := seedUser(t, db, "faster")

	done1 := make(chan error, 1)
	done2 := make(chan error, 1)

	go func() {
		_, err := db.Borrow(u1, bookID)
		done1 <- err
	}()
	go func() {
		_, err := db.Borrow(u2, bookID)
		done2 <- err
	}()

	err1 := <-done1
	err2 := <-done2

	if (err1 == nil) == (err2 == nil) {
		t.Fatalf("want exactly one winner, got err1=%v err2=%v", err1, err2)
	}

	b, err := db.GetBook(bookID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.AvailableCopies)
	assert.Equal(t, 1, activeLoans(t, db, bookID))
}

func TestUserRecordsFilter(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "reader")
	b1 := seedBook(t, db, "Kept", 1)
	b2 := seedBook(t, db, "Given Back", 1)

	_, err := db.Borrow(userID, b1)
	require.NoError(t, err)
	rec2, err := db.Borrow(userID, b2)
	require.NoError(t, err)
	_, err = db.Return(rec2.ID)
	require.NoError(t, err)

	all, err := db.UserRecords(userID, FilterAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	borrowed, err := db.UserRecords(userID, FilterBorrowed)
	require.NoError(t, err)
	require.Len(t, borrowed, 1)
	assert.Equal(t, "Kept", borrowed[0].BookTitle)
	assert.Equal(t, "reader", borrowed[0].Username)

	returned, err := db.UserRecords(userID, FilterReturned)
	require.NoError(t, err)
	require.Len(t, returned, 1)
	assert.Equal(t, "Given Back", returned[0].BookTitle)
	require.True(t, returned[0].ReturnDate.Valid)

	_, err = db.UserRecords(userID, "overdue")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearchRecords(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	u1 := seedUser(t, db, "first")
	u2 := seedUser(t, db, "second")
	bookID := seedBook(t, db, "Shared", 2)

	rec1, err := db.Borrow(u1, bookID)
	require.NoError(t, err)
	_, err = db.Borrow(u2, bookID)
	require.NoError(t, err)

	byRecord, err := db.SearchRecords(RecordByID, itoa(rec1.ID))
	require.NoError(t, err)
	require.Len(t, byRecord, 1)
	assert.Equal(t, "first", byRecord[0].Username)

	byUser, err := db.SearchRecords(RecordByUserID, itoa(u2))
	require.NoError(t, err)
	require.Len(t, byUser, 1)

	byBook, err := db.SearchRecords(RecordByBookID, itoa(bookID))
	require.NoError(t, err)
	assert.Len(t, byBook, 2)

	_, err = db.SearchRecords(RecordByID, "abc")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = db.SearchRecords(RecordSearchKind("title"), "1")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListRecordsNewestFirst(t *testing.T) {
	db := tempDB(t)
	setToday(db, day0)
	userID := seedUser(t, db, "reader")
	b1 := seedBook(t, db, "Older", 1)
	b2 := seedBook(t, db, "Newer", 1)

	_, err := db.Borrow(userID, b1)
	require.NoError(t, err)
	_, err = db.Borrow(userID, b2)
	require.NoError(t, err)

	views, err := db.ListRecords()
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Newer", views[0].BookTitle)
	assert.Equal(t, "Older", views[1].BookTitle)
}
