// Package memory is an in-process implementation of the repository stores.
// It backs DB_DRIVER=memory and the service and handler tests. A single
// mutex guards all tables so every call is atomic, like a single statement
// against MySQL, and foreign-key RESTRICT rules are emulated on delete.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/albaranes/internal/model"
	"github.com/iliyamo/albaranes/internal/repository"
)

// DB holds every table.
type DB struct {
	mu     sync.Mutex
	seq    uint64
	now    func() time.Time
	users  map[uint64]*model.User
	tokens map[string]*model.RefreshToken
	client map[uint64]*model.Client
	proj   map[uint64]*model.Project
	notes  map[uint64]*model.DeliveryNote
}

func New() *DB {
	return &DB{
		now:    func() time.Time { return time.Now().UTC() },
		users:  map[uint64]*model.User{},
		tokens: map[string]*model.RefreshToken{},
		client: map[uint64]*model.Client{},
		proj:   map[uint64]*model.Project{},
		notes:  map[uint64]*model.DeliveryNote{},
	}
}

func (db *DB) Users() *UserStore                 { return &UserStore{db} }
func (db *DB) Tokens() *TokenStore               { return &TokenStore{db} }
func (db *DB) Clients() *ClientStore             { return &ClientStore{db} }
func (db *DB) Projects() *ProjectStore           { return &ProjectStore{db} }
func (db *DB) DeliveryNotes() *DeliveryNoteStore { return &DeliveryNoteStore{db} }

// nextID must be called with mu held.
func (db *DB) nextID() uint64 {
	db.seq++
	return db.seq
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// byIDDesc orders newest first, like the MySQL queries.
func byIDDesc[T any](items []T, id func(T) uint64) {
	sort.Slice(items, func(i, j int) bool { return id(items[i]) > id(items[j]) })
}

var (
	_ repository.UserStore         = (*UserStore)(nil)
	_ repository.TokenStore        = (*TokenStore)(nil)
	_ repository.ClientStore       = (*ClientStore)(nil)
	_ repository.ProjectStore      = (*ProjectStore)(nil)
	_ repository.DeliveryNoteStore = (*DeliveryNoteStore)(nil)
)
