package sqlite

// pragmas are applied to every connection through the DSN.
var pragmas = []string{
	"journal_mode(wal)",
	"synchronous(normal)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

const userColumns = `id, name, age, email, created_at`

const todoColumns = `id, title, completed, user_id, created_at`
