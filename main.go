package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"librarydesk/library"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgPath string
	dbPath  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "librarydesk",
		Short: "Library management system: catalog, accounts and borrowing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runShell(cfg)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (library.Config, error) {
	cfg, err := library.LoadConfig(cfgPath)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

// readPassword securely reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

func runShell(cfg library.Config) error {
	mgr, err := library.NewLibraryManager(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer mgr.Close()

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Welcome to the library management system!")
	fmt.Println("Commands: login, register, exit")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return nil
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "login":
			user := handleLogin(scanner, mgr)
			if user != nil {
				sessionLoop(scanner, mgr, user)
			}
		case "register":
			handleRegister(scanner, mgr)
		case "exit":
			fmt.Println("Goodbye!")
			return nil
		default:
			fmt.Println("Unknown command. Use: login, register, exit")
		}
	}
}

func handleLogin(sc *bufio.Scanner, mgr *library.LibraryManager) *library.User {
	fmt.Print("Username: ")
	if !sc.Scan() {
		return nil
	}
	username := strings.TrimSpace(sc.Text())

	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return nil
	}

	user, msg := mgr.Login(username, password, "")
	fmt.Println(msg)
	return user
}

func handleRegister(sc *bufio.Scanner, mgr *library.LibraryManager) {
	fmt.Print("Username: ")
	if !sc.Scan() {
		return
	}
	username := strings.TrimSpace(sc.Text())

	password, err := readPassword("Password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}

	fmt.Print("Real name: ")
	if !sc.Scan() {
		return
	}
	realName := strings.TrimSpace(sc.Text())

	fmt.Print("Phone (optional): ")
	if !sc.Scan() {
		return
	}
	phone := strings.TrimSpace(sc.Text())

	fmt.Print("Email (optional): ")
	if !sc.Scan() {
		return
	}
	email := strings.TrimSpace(sc.Text())

	_, msg := mgr.Register(username, password, realName, phone, email)
	fmt.Println(msg)
}

func sessionLoop(sc *bufio.Scanner, mgr *library.LibraryManager, user *library.User) {
	fmt.Printf("\nLogged in as %s (%s).\n", user.Username, user.Role)
	fmt.Println("Commands: list books, search books, borrow, return, renew, check overdue,")
	fmt.Println("          my loans, profile, update profile, change password, logout")
	if user.Role == library.RoleAdmin {
		fmt.Println("Admin:    add book, update book, delete book, list users, search users,")
		fmt.Println("          enable user, disable user, reset password, records, search records")
	}

	for {
		fmt.Printf("\n%s> ", user.Username)
		if !sc.Scan() {
			return
		}
		cmd := strings.TrimSpace(sc.Text())

		switch cmd {
		case "list books":
			handleListBooks(mgr)
		case "search books":
			handleSearchBooks(sc, mgr)
		case "borrow":
			handleBorrow(sc, mgr, user)
		case "return":
			handleReturn(sc, mgr)
		case "renew":
			handleRenew(sc, mgr)
		case "check overdue":
			handleCheckOverdue(sc, mgr)
		case "my loans":
			handleMyLoans(sc, mgr, user)
		case "profile":
			handleProfile(mgr, user)
		case "update profile":
			handleUpdateProfile(sc, mgr, user)
		case "change password":
			handleChangePassword(sc, mgr, user)
		case "logout":
			fmt.Println("Logged out.")
			return
		default:
			if user.Role == library.RoleAdmin && handleAdminCommand(cmd, sc, mgr) {
				continue
			}
			fmt.Println("Unknown command.")
		}
	}
}

func handleAdminCommand(cmd string, sc *bufio.Scanner, mgr *library.LibraryManager) bool {
	switch cmd {
	case "add book":
		handleAddBook(sc, mgr)
	case "update book":
		handleUpdateBook(sc, mgr)
	case "delete book":
		handleDeleteBook(sc, mgr)
	case "list users":
		handleListUsers(mgr)
	case "search users":
		handleSearchUsers(sc, mgr)
	case "enable user":
		handleSetUserStatus(sc, mgr, true)
	case "disable user":
		handleSetUserStatus(sc, mgr, false)
	case "reset password":
		handleResetPassword(sc, mgr)
	case "records":
		handleListRecords(mgr)
	case "search records":
		handleSearchRecords(sc, mgr)
	default:
		return false
	}
	return true
}

// ------------------ Catalog ------------------

func handleListBooks(mgr *library.LibraryManager) {
	books, err := mgr.ListBooks()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printBooks(books)
}

func handleSearchBooks(sc *bufio.Scanner, mgr *library.LibraryManager) {
	fmt.Print("Search by (id/isbn/title/author): ")
	if !sc.Scan() {
		return
	}
	kind := library.BookSearchKind(strings.TrimSpace(sc.Text()))

	fmt.Print("Keyword: ")
	if !sc.Scan() {
		return
	}
	keyword := strings.TrimSpace(sc.Text())

	books, err := mgr.SearchBooks(kind, keyword)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if len(books) == 0 {
		fmt.Printf("No books found matching %q.\n", keyword)
		return
	}
	printBooks(books)
}

func printBooks(books []*library.Book) {
	if len(books) == 0 {
		fmt.Println("No books in the catalog.")
		return
	}
	fmt.Printf("%-5s %-15s %-30s %-20s %-8s %-8s %s\n",
		"ID", "ISBN", "Title", "Author", "Total", "Avail", "Status")
	fmt.Println(strings.Repeat("-", 100))
	for _, b := range books {
		fmt.Println(library.PrettyBook(b))
	}
}

func handleAddBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	b, ok := promptBook(sc)
	if !ok {
		return
	}
	_, msg := mgr.AddBook(b)
	fmt.Println(msg)
}

func handleUpdateBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := promptID(sc, "Book ID: ")
	if !ok {
		return
	}
	b, ok := promptBook(sc)
	if !ok {
		return
	}
	_, msg := mgr.UpdateBook(id, b)
	fmt.Println(msg)
}

func handleDeleteBook(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := promptID(sc, "Book ID: ")
	if !ok {
		return
	}
	_, msg := mgr.DeleteBook(id)
	fmt.Println(msg)
}

func promptBook(sc *bufio.Scanner) (*library.Book, bool) {
	b := &library.Book{}
	fields := []struct {
		prompt string
		dest   *string
	}{
		{"ISBN: ", &b.ISBN},
		{"Title: ", &b.Title},
		{"Author: ", &b.Author},
		{"Publisher: ", &b.Publisher},
		{"Publish date (YYYY-MM-DD): ", &b.PublishDate},
		{"Category: ", &b.Category},
		{"Shelf location: ", &b.Location},
	}
	for _, f := range fields {
		fmt.Print(f.prompt)
		if !sc.Scan() {
			return nil, false
		}
		*f.dest = strings.TrimSpace(sc.Text())
	}

	fmt.Print("Price: ")
	if !sc.Scan() {
		return nil, false
	}
	if s := strings.TrimSpace(sc.Text()); s != "" {
		price, err := strconv.ParseFloat(s, 64)
		if err != nil {
			fmt.Printf("Invalid price: %s\n", s)
			return nil, false
		}
		b.Price = price
	}

	fmt.Print("Total copies: ")
	if !sc.Scan() {
		return nil, false
	}
	total, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil {
		fmt.Printf("Invalid copy count: %s\n", sc.Text())
		return nil, false
	}
	b.TotalCopies = total

	return b, true
}

// ------------------ Borrowing ------------------

func handleBorrow(sc *bufio.Scanner, mgr *library.LibraryManager, user *library.User) {
	id, ok := promptID(sc, "Book ID: ")
	if !ok {
		return
	}
	_, msg := mgr.BorrowBook(user.ID, id)
	fmt.Println(msg)
}

func handleReturn(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := promptID(sc, "Record ID: ")
	if !ok {
		return
	}
	_, msg := mgr.ReturnLoan(id)
	fmt.Println(msg)
}

func handleRenew(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := promptID(sc, "Record ID: ")
	if !ok {
		return
	}
	_, msg := mgr.RenewLoan(id)
	fmt.Println(msg)
}

func handleCheckOverdue(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := promptID(sc, "Record ID: ")
	if !ok {
		return
	}
	overdue, days, err := mgr.CheckOverdue(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if overdue {
		fmt.Printf("This loan is %d day(s) overdue. Please return it soon.\n", days)
	} else {
		fmt.Println("This loan is not overdue.")
	}
}

func handleMyLoans(sc *bufio.Scanner, mgr *library.LibraryManager, user *library.User) {
	fmt.Print("Filter (all/borrowed/returned, default all): ")
	if !sc.Scan() {
		return
	}
	filter := strings.TrimSpace(sc.Text())
	if filter == "" {
		filter = library.FilterAll
	}

	loans, err := mgr.UserLoans(user.ID, filter)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printLoans(loans)
}

func handleListRecords(mgr *library.LibraryManager) {
	loans, err := mgr.ListLoans()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printLoans(loans)
}

func handleSearchRecords(sc *bufio.Scanner, mgr *library.LibraryManager) {
	fmt.Print("Search by (record_id/user_id/book_id): ")
	if !sc.Scan() {
		return
	}
	kind := library.RecordSearchKind(strings.TrimSpace(sc.Text()))

	fmt.Print("Keyword: ")
	if !sc.Scan() {
		return
	}
	keyword := strings.TrimSpace(sc.Text())

	loans, err := mgr.SearchLoans(kind, keyword)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printLoans(loans)
}

func printLoans(loans []*library.LoanRecordView) {
	if len(loans) == 0 {
		fmt.Println("No loan records.")
		return
	}
	fmt.Printf("%-5s %-30s %-15s %-12s %-12s %-12s %-9s %s\n",
		"ID", "Book", "User", "Borrowed", "Due", "Returned", "Status", "Renewals")
	fmt.Println(strings.Repeat("-", 115))
	for _, v := range loans {
		fmt.Println(library.PrettyLoan(v))
	}
}

// ------------------ Membership ------------------

func handleListUsers(mgr *library.LibraryManager) {
	users, err := mgr.ListUsers()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printUsers(users)
}

func handleSearchUsers(sc *bufio.Scanner, mgr *library.LibraryManager) {
	fmt.Print("Search by (id/username): ")
	if !sc.Scan() {
		return
	}
	kind := library.UserSearchKind(strings.TrimSpace(sc.Text()))

	fmt.Print("Keyword: ")
	if !sc.Scan() {
		return
	}
	keyword := strings.TrimSpace(sc.Text())

	users, err := mgr.SearchUsers(kind, keyword)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	printUsers(users)
}

func printUsers(users []*library.User) {
	if len(users) == 0 {
		fmt.Println("No users found.")
		return
	}
	fmt.Printf("%-5s %-20s %-8s %-20s %-8s %s\n", "ID", "Username", "Role", "Real name", "Active", "Last login")
	fmt.Println(strings.Repeat("-", 85))
	for _, u := range users {
		fmt.Printf("%-5d %-20s %-8s %-20s %-8t %s\n",
			u.ID, u.Username, u.Role, u.RealName, u.Active, library.NullDateString(u.LastLogin))
	}
}

func handleSetUserStatus(sc *bufio.Scanner, mgr *library.LibraryManager, active bool) {
	id, ok := promptID(sc, "User ID: ")
	if !ok {
		return
	}
	_, msg := mgr.SetUserStatus(id, active)
	fmt.Println(msg)
}

func handleResetPassword(sc *bufio.Scanner, mgr *library.LibraryManager) {
	id, ok := promptID(sc, "User ID: ")
	if !ok {
		return
	}
	newPassword, err := readPassword("New password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	_, msg := mgr.ResetPassword(id, newPassword)
	fmt.Println(msg)
}

func handleProfile(mgr *library.LibraryManager, user *library.User) {
	u, err := mgr.GetUser(user.ID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Username:   %s\n", u.Username)
	fmt.Printf("Role:       %s\n", u.Role)
	fmt.Printf("Real name:  %s\n", u.RealName)
	fmt.Printf("Phone:      %s\n", u.Phone)
	fmt.Printf("Email:      %s\n", u.Email)
	fmt.Printf("Created:    %s\n", library.DateString(u.CreatedAt))
	fmt.Printf("Last login: %s\n", library.NullDateString(u.LastLogin))
}

func handleUpdateProfile(sc *bufio.Scanner, mgr *library.LibraryManager, user *library.User) {
	fmt.Print("Real name: ")
	if !sc.Scan() {
		return
	}
	realName := strings.TrimSpace(sc.Text())

	fmt.Print("Phone: ")
	if !sc.Scan() {
		return
	}
	phone := strings.TrimSpace(sc.Text())

	fmt.Print("Email: ")
	if !sc.Scan() {
		return
	}
	email := strings.TrimSpace(sc.Text())

	_, msg := mgr.UpdateUserInfo(user.ID, realName, phone, email)
	fmt.Println(msg)
}

func handleChangePassword(sc *bufio.Scanner, mgr *library.LibraryManager, user *library.User) {
	oldPassword, err := readPassword("Current password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	newPassword, err := readPassword("New password: ")
	if err != nil {
		fmt.Printf("Error reading password: %v\n", err)
		return
	}
	_, msg := mgr.ChangePassword(user.ID, oldPassword, newPassword)
	fmt.Println(msg)
}

// ------------------ Utilities ------------------

func promptID(sc *bufio.Scanner, prompt string) (int64, bool) {
	fmt.Print(prompt)
	if !sc.Scan() {
		return 0, false
	}
	s := strings.TrimSpace(sc.Text())
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Printf("Invalid ID: %s\n", s)
		return 0, false
	}
	return id, true
}
