package library

import (
	"database/sql"
	"time"
)

// Loan record statuses. A record starts as borrowed and flips to
// returned exactly once; there is no other transition.
const (
	StatusBorrowed = "borrowed"
	StatusReturned = "returned"
)

// User roles. Role is fixed at account creation.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Book represents one title in the catalog. total_copies counts units
// owned, available_copies counts units not currently on loan.
type Book struct {
	ID              int64   `db:"book_id" json:"id"`
	ISBN            string  `db:"isbn" json:"isbn"`
	Title           string  `db:"title" json:"title"`
	Author          string  `db:"author" json:"author"`
	Publisher       string  `db:"publisher" json:"publisher"`
	PublishDate     string  `db:"publish_date" json:"publish_date"`
	Category        string  `db:"category" json:"category"`
	Location        string  `db:"location" json:"location"`
	Price           float64 `db:"price" json:"price"`
	TotalCopies     int     `db:"total_copies" json:"total_copies"`
	AvailableCopies int     `db:"available_copies" json:"available_copies"`
}

// LoanedOut is the number of copies currently on loan.
func (b *Book) LoanedOut() int { return b.TotalCopies - b.AvailableCopies }

// AvailabilityStatus renders the catalog status column.
func (b *Book) AvailabilityStatus() string {
	if b.AvailableCopies > 0 {
		return "available"
	}
	return "all copies on loan"
}

// User represents a registered account.
type User struct {
	ID           int64        `db:"user_id" json:"id"`
	Username     string       `db:"username" json:"username"`
	PasswordHash string       `db:"password" json:"-"`
	Role         string       `db:"role" json:"role"`
	RealName     string       `db:"real_name" json:"real_name"`
	Phone        string       `db:"phone" json:"phone"`
	Email        string       `db:"email" json:"email"`
	Active       bool         `db:"status" json:"active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	LastLogin    sql.NullTime `db:"last_login" json:"last_login"`
}

// LoanRecord is one borrow transaction. return_date is set if and only
// if status is returned. Records are never deleted.
type LoanRecord struct {
	ID         int64        `db:"record_id" json:"id"`
	BookID     int64        `db:"book_id" json:"book_id"`
	UserID     int64        `db:"user_id" json:"user_id"`
	BorrowDate time.Time    `db:"borrow_date" json:"borrow_date"`
	DueDate    time.Time    `db:"due_date" json:"due_date"`
	ReturnDate sql.NullTime `db:"return_date" json:"return_date"`
	Status     string       `db:"status" json:"status"`
	RenewCount int          `db:"renew_count" json:"renew_count"`
}

// LoanRecordView is a loan record joined with the book title and the
// borrower's username, the shape the presentation layer lists.
type LoanRecordView struct {
	ID         int64        `db:"record_id" json:"id"`
	BookID     int64        `db:"book_id" json:"book_id"`
	BookTitle  string       `db:"book_title" json:"book_title"`
	UserID     int64        `db:"user_id" json:"user_id"`
	Username   string       `db:"username" json:"username"`
	BorrowDate time.Time    `db:"borrow_date" json:"borrow_date"`
	DueDate    time.Time    `db:"due_date" json:"due_date"`
	ReturnDate sql.NullTime `db:"return_date" json:"return_date"`
	Status     string       `db:"status" json:"status"`
	RenewCount int          `db:"renew_count" json:"renew_count"`
}

// BookSearchKind enumerates the supported book searches. Search never
// interpolates caller-supplied column names; each kind maps to a fixed
// parameterized query.
type BookSearchKind string

const (
	BookByID     BookSearchKind = "id"
	BookByISBN   BookSearchKind = "isbn"
	BookByTitle  BookSearchKind = "title"
	BookByAuthor BookSearchKind = "author"
)

// UserSearchKind enumerates the supported user searches.
type UserSearchKind string

const (
	UserByID       UserSearchKind = "id"
	UserByUsername UserSearchKind = "username"
)

// RecordSearchKind enumerates the supported loan record searches.
type RecordSearchKind string

const (
	RecordByID     RecordSearchKind = "record_id"
	RecordByUserID RecordSearchKind = "user_id"
	RecordByBookID RecordSearchKind = "book_id"
)

// Status filters accepted by UserRecords.
const (
	FilterAll      = "all"
	FilterBorrowed = StatusBorrowed
	FilterReturned = StatusReturned
)
