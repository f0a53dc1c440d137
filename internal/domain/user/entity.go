package user

// User represents a user entity in the system.
type User struct {
	ID    int64  // ID is assigned by the database sequence and never reused
	Name  string // Name is the full name of the user
	Email string // Email is the contact address of the user
}
