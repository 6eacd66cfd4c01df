package library

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LibraryManager is the boundary the presentation layer talks to.
// Mutating operations come back as a (ok, message) pair; every store
// error is recovered here and turned into a human-readable message, so
// nothing the caller does can crash the process. Queries stay typed.
type LibraryManager struct {
	db *Database
}

// NewLibraryManager opens (or creates) the database described by cfg.
func NewLibraryManager(cfg Config) (*LibraryManager, error) {
	db, err := NewDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Store exposes the underlying database for callers that need the
// typed operations directly (the seeding tool does).
func (lm *LibraryManager) Store() *Database { return lm.db }

// ------------------ Borrowing workflow ------------------

func (lm *LibraryManager) BorrowBook(userID, bookID int64) (bool, string) {
	rec, err := lm.db.Borrow(userID, bookID)
	if err != nil {
		return false, lm.failureMessage(err)
	}
	return true, fmt.Sprintf("borrowed successfully, due on %s", DateString(rec.DueDate))
}

func (lm *LibraryManager) ReturnLoan(recordID int64) (bool, string) {
	overdue, err := lm.db.Return(recordID)
	if err != nil {
		return false, lm.failureMessage(err)
	}
	if overdue > 0 {
		return true, fmt.Sprintf("returned successfully; this loan was %d day(s) overdue", overdue)
	}
	return true, "returned successfully"
}

func (lm *LibraryManager) RenewLoan(recordID int64) (bool, string) {
	newDue, err := lm.db.Renew(recordID)
	if err != nil {
		return false, lm.failureMessage(err)
	}
	return true, fmt.Sprintf("renewed successfully, new due date is %s", DateString(newDue))
}

func (lm *LibraryManager) CheckOverdue(recordID int64) (bool, int, error) {
	return lm.db.CheckOverdue(recordID)
}

// ------------------ Loan ledger queries ------------------

func (lm *LibraryManager) ListLoans() ([]*LoanRecordView, error) { return lm.db.ListRecords() }

func (lm *LibraryManager) SearchLoans(kind RecordSearchKind, keyword string) ([]*LoanRecordView, error) {
	return lm.db.SearchRecords(kind, keyword)
}

func (lm *LibraryManager) UserLoans(userID int64, statusFilter string) ([]*LoanRecordView, error) {
	return lm.db.UserRecords(userID, statusFilter)
}

// ------------------ Catalog ------------------

func (lm *LibraryManager) AddBook(b *Book) (bool, string) {
	id, err := lm.db.AddBook(b)
	if err != nil {
		return false, lm.failureMessage(err)
	}
	return true, fmt.Sprintf("book added with ID %d", id)
}

func (lm *LibraryManager) UpdateBook(id int64, b *Book) (bool, string) {
	if err := lm.db.UpdateBook(id, b); err != nil {
		return false, lm.failureMessage(err)
	}
	return true, "book updated"
}

func (lm *LibraryManager) DeleteBook(id int64) (bool, string) {
	if err := lm.db.DeleteBook(id); err != nil {
		return false, lm.failureMessage(err)
	}
	return true, "book deleted"
}

func (lm *LibraryManager) GetBook(id int64) (*Book, error) { return lm.db.GetBook(id) }
func (lm *LibraryManager) ListBooks() ([]*Book, error)     { return lm.db.ListBooks() }

func (lm *LibraryManager) SearchBooks(kind BookSearchKind, keyword string) ([]*Book, error) {
	return lm.db.SearchBooks(kind, keyword)
}

// ------------------ Membership ------------------

func (lm *LibraryManager) Register(username, password, realName, phone, email string) (bool, string) {
	id, err := lm.db.RegisterUser(username, password, realName, phone, email)
	if err != nil {
		return false, lm.failureMessage(err)
	}
	return true, fmt.Sprintf("registered successfully, your user ID is %d", id)
}

// Login verifies credentials; role may be empty to accept any role. On
// failure the user is nil and the message says why.
func (lm *LibraryManager) Login(username, password, role string) (*User, string) {
	u, err := lm.db.VerifyUser(username, password, role)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "invalid username or password"
		}
		return nil, lm.failureMessage(err)
	}
	return u, fmt.Sprintf("welcome, %s", u.Username)
}

func (lm *LibraryManager) GetUser(id int64) (*User, error) { return lm.db.GetUser(id) }
func (lm *LibraryManager) ListUsers() ([]*User, error)     { return lm.db.ListUsers() }

func (lm *LibraryManager) SearchUsers(kind UserSearchKind, keyword string) ([]*User, error) {
	return lm.db.SearchUsers(kind, keyword)
}

func (lm *LibraryManager) SetUserStatus(id int64, active bool) (bool, string) {
	if err := lm.db.SetUserStatus(id, active); err != nil {
		return false, lm.failureMessage(err)
	}
	if active {
		return true, "user enabled"
	}
	return true, "user disabled"
}

func (lm *LibraryManager) ResetPassword(id int64, newPassword string) (bool, string) {
	if err := lm.db.ResetPassword(id, newPassword); err != nil {
		return false, lm.failureMessage(err)
	}
	return true, "password reset"
}

func (lm *LibraryManager) ChangePassword(id int64, oldPassword, newPassword string) (bool, string) {
	if err := lm.db.ChangePassword(id, oldPassword, newPassword); err != nil {
		return false, lm.failureMessage(err)
	}
	return true, "password changed"
}

func (lm *LibraryManager) UpdateUserInfo(id int64, realName, phone, email string) (bool, string) {
	if err := lm.db.UpdateUserInfo(id, realName, phone, email); err != nil {
		return false, lm.failureMessage(err)
	}
	return true, "profile updated"
}

// ------------------ Error surfacing ------------------

func (lm *LibraryManager) failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrNoCopiesAvailable):
		return "no copies of this book are available"
	case errors.Is(err, ErrDuplicateActiveLoan):
		return "you already have this book on loan"
	case errors.Is(err, ErrAlreadyReturned):
		return "this book has already been returned"
	case errors.Is(err, ErrRenewalLimitReached):
		return fmt.Sprintf("this loan has reached the renewal limit (%d)", lm.db.cfg.MaxRenewals)
	case errors.Is(err, ErrOverdue):
		return "this loan is overdue, please return the book first"
	case errors.Is(err, ErrUsernameTaken):
		return "username already exists"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrStoreUnavailable):
		return "database unavailable, please try again"
	default:
		return "operation failed: " + err.Error()
	}
}

// ------------------ Formatting helpers ------------------

// DateString renders a loan date the way lists display it.
func DateString(t time.Time) string { return t.Format("2006-01-02") }

// NullDateString renders a nullable date, blank when unset.
func NullDateString(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return DateString(t.Time)
}

// PrettyBook formats a book for lists.
func PrettyBook(b *Book) string {
	return fmt.Sprintf("%-5d %-15s %-30s %-20s %-8d %-8d %s",
		b.ID, b.ISBN, b.Title, b.Author, b.TotalCopies, b.AvailableCopies, b.AvailabilityStatus())
}

// PrettyLoan formats a loan record view for lists.
func PrettyLoan(v *LoanRecordView) string {
	return fmt.Sprintf("%-5d %-30s %-15s %-12s %-12s %-12s %-9s %d",
		v.ID, v.BookTitle, v.Username, DateString(v.BorrowDate), DateString(v.DueDate),
		NullDateString(v.ReturnDate), v.Status, v.RenewCount)
}
