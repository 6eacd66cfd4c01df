package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/doug-martin/goqu/v9"
)

var bookColumns = []any{
	"book_id", "isbn", "title", "author", "publisher", "publish_date",
	"category", "location", "price", "total_copies", "available_copies",
}

// AddBook inserts a new title. The available count starts equal to the
// total count: a new book has nothing on loan yet.
func (d *Database) AddBook(b *Book) (int64, error) {
	if b.Title == "" {
		return 0, fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if b.TotalCopies < 0 {
		return 0, fmt.Errorf("%w: total copies must not be negative", ErrValidation)
	}

	res, err := d.db.Exec(`INSERT INTO books
        (isbn, title, author, publisher, publish_date, category, location, price, total_copies, available_copies)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ISBN, b.Title, b.Author, b.Publisher, b.PublishDate,
		b.Category, b.Location, b.Price, b.TotalCopies, b.TotalCopies)
	if err != nil {
		return 0, fmt.Errorf("add book: %w", err)
	}
	return res.LastInsertId()
}

// GetBook fetches a single book.
func (d *Database) GetBook(id int64) (*Book, error) {
	var b Book
	err := d.db.Get(&b, `SELECT book_id, isbn, title, author, publisher, publish_date,
        category, location, price, total_copies, available_copies
        FROM books WHERE book_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBooks returns the whole catalog, newest first.
func (d *Database) ListBooks() ([]*Book, error) {
	var books []*Book
	err := d.db.Select(&books, `SELECT book_id, isbn, title, author, publisher, publish_date,
        category, location, price, total_copies, available_copies
        FROM books ORDER BY book_id DESC`)
	if err != nil {
		return nil, err
	}
	return books, nil
}

// SearchBooks runs one of the fixed catalog searches. ID and ISBN match
// exactly, title and author match substrings.
func (d *Database) SearchBooks(kind BookSearchKind, keyword string) ([]*Book, error) {
	ds := dialect.From("books").Select(bookColumns...).Order(goqu.I("book_id").Desc())

	switch kind {
	case BookByID:
		id, err := strconv.ParseInt(keyword, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: book id must be numeric", ErrValidation)
		}
		ds = ds.Where(goqu.C("book_id").Eq(id))
	case BookByISBN:
		ds = ds.Where(goqu.C("isbn").Eq(keyword))
	case BookByTitle:
		ds = ds.Where(goqu.C("title").Like("%" + keyword + "%"))
	case BookByAuthor:
		ds = ds.Where(goqu.C("author").Like("%" + keyword + "%"))
	default:
		return nil, fmt.Errorf("%w: unknown book search kind %q", ErrValidation, kind)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}

	var books []*Book
	if err := d.db.Select(&books, query, args...); err != nil {
		return nil, err
	}
	return books, nil
}

// UpdateBook edits a title. Changing total_copies moves the available
// count by the same delta; the new total may never drop below the
// copies currently on loan.
func (d *Database) UpdateBook(id int64, b *Book) error {
	if b.Title == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}

	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var oldTotal, oldAvailable int
	err = tx.QueryRow(`SELECT total_copies, available_copies FROM books WHERE book_id=?`, id).
		Scan(&oldTotal, &oldAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}

	loanedOut := oldTotal - oldAvailable
	if b.TotalCopies < loanedOut {
		return fmt.Errorf("%w: new total copies (%d) cannot be less than copies on loan (%d)",
			ErrValidation, b.TotalCopies, loanedOut)
	}
	newAvailable := oldAvailable + (b.TotalCopies - oldTotal)

	if _, err := tx.Exec(`UPDATE books SET
        isbn=?, title=?, author=?, publisher=?, publish_date=?,
        category=?, location=?, price=?, total_copies=?, available_copies=?
        WHERE book_id=?`,
		b.ISBN, b.Title, b.Author, b.Publisher, b.PublishDate,
		b.Category, b.Location, b.Price, b.TotalCopies, newAvailable, id); err != nil {
		return fmt.Errorf("update book: %w", err)
	}

	return tx.Commit()
}

// DeleteBook removes a title. Blocked while any unreturned loan record
// references it; returned history records do not block deletion because
// the ledger keeps them forever.
func (d *Database) DeleteBook(id int64) error {
	tx, err := d.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var active int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM borrowing_records
        WHERE book_id=? AND status=?`, id, StatusBorrowed).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return fmt.Errorf("%w: book %d has %d unreturned loan(s)", ErrValidation, id, active)
	}

	res, err := tx.Exec(`DELETE FROM books WHERE book_id=?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}

	return tx.Commit()
}
