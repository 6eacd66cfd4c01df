package main

import (
	"flag"
	"fmt"
	"os"

	"librarydesk/library"
)

func main() {
	dbFile := flag.String("db", "library.db", "database file to (re)create")
	adminPassword := flag.String("admin-password", "admin123", "password for the seeded admin account")
	flag.Parse()

	// Clean up any existing database files.
	fmt.Println("Cleaning up existing database files...")
	for _, file := range []string{*dbFile, *dbFile + "-shm", *dbFile + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: could not remove %s: %v\n", file, err)
		}
	}

	cfg := library.DefaultConfig()
	cfg.DBPath = *dbFile

	mgr, err := library.NewLibraryManager(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Close()

	store := mgr.Store()

	if _, err := store.CreateUser("admin", *adminPassword, library.RoleAdmin, "Administrator", "", ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating admin account: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Created admin account (username: admin)")

	sampleUsers := []struct {
		username, password, realName string
	}{
		{"alice", "alice123", "Alice Zhang"},
		{"bob", "bob123", "Bob Li"},
	}
	for _, u := range sampleUsers {
		id, err := store.RegisterUser(u.username, u.password, u.realName, "", "")
		if err != nil {
			fmt.Printf("ERROR seeding user %s: %v\n", u.username, err)
			continue
		}
		fmt.Printf("Created user %s (ID: %d)\n", u.username, id)
	}

	sampleBooks := []*library.Book{
		{ISBN: "9780451524935", Title: "1984", Author: "George Orwell", Publisher: "Signet Classics", PublishDate: "1949-06-08", Category: "Fiction", Location: "A-1", Price: 9.99, TotalCopies: 3},
		{ISBN: "9780547928227", Title: "The Hobbit", Author: "J.R.R. Tolkien", Publisher: "Houghton Mifflin", PublishDate: "1937-09-21", Category: "Fantasy", Location: "A-2", Price: 14.99, TotalCopies: 2},
		{ISBN: "9780141439518", Title: "Pride and Prejudice", Author: "Jane Austen", Publisher: "Penguin Classics", PublishDate: "1813-01-28", Category: "Fiction", Location: "B-1", Price: 7.99, TotalCopies: 4},
		{ISBN: "9787111544937", Title: "Computer Systems: A Programmer's Perspective", Author: "Randal E. Bryant", Publisher: "Pearson", PublishDate: "2015-03-02", Category: "Computing", Location: "C-3", Price: 59.99, TotalCopies: 2},
		{ISBN: "9780132350884", Title: "Clean Code", Author: "Robert C. Martin", Publisher: "Prentice Hall", PublishDate: "2008-08-01", Category: "Computing", Location: "C-1", Price: 44.99, TotalCopies: 1},
	}

	successCount := 0
	for _, b := range sampleBooks {
		id, err := store.AddBook(b)
		if err != nil {
			fmt.Printf("ERROR seeding %q: %v\n", b.Title, err)
			continue
		}
		fmt.Printf("Added book %q (ID: %d, copies: %d)\n", b.Title, id, b.TotalCopies)
		successCount++
	}

	fmt.Printf("\nSeed complete: %d book(s), %d user account(s) plus admin.\n", successCount, len(sampleUsers))
}
