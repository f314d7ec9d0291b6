package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"remind-server/models"
)

// Keys in the kv table. The whole reminder collection is one JSON array
// under a single key; the account is a second blob.
const (
	remindersKey = "reminders_list"
	accountKey   = "account"
)

// ErrNotFound is returned when an id is not present in the collection.
var ErrNotFound = errors.New("reminder not found")

// Snapshotter receives the serialized collection after every successful save.
// Failures are the implementation's problem; the store never blocks on it.
type Snapshotter interface {
	Snapshot(data []byte)
}

// Store owns the canonical reminder collection: a key-value table holding the
// whole collection as one JSON blob, read-modify-written on every mutation.
// A single mutex serializes writers in-process; last write wins across the
// whole collection.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	log  *zap.SugaredLogger
	snap Snapshotter
}

func New(dbPath string, log *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, log: log}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`)
	return err
}

// SetSnapshotter attaches an optional post-save snapshot hook.
func (s *Store) SetSnapshotter(snap Snapshotter) {
	s.snap = snap
}

func (s *Store) Close() error {
	return s.db.Close()
}

// load reads the whole collection. Any storage or decode failure degrades to
// an empty collection, logged, never propagated: a corrupt blob must not
// crash the service.
func (s *Store) load() []models.Reminder {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, remindersKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		s.log.Errorf("[store] read failed, treating collection as empty: %v", err)
		return nil
	}

	var reminders []models.Reminder
	if err := json.Unmarshal([]byte(raw), &reminders); err != nil {
		s.log.Errorf("[store] corrupt reminders blob, treating collection as empty: %v", err)
		return nil
	}
	return reminders
}

func (s *Store) save(reminders []models.Reminder) error {
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	data, err := json.Marshal(reminders)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, remindersKey, string(data))
	if err != nil {
		return err
	}
	if s.snap != nil {
		s.snap.Snapshot(data)
	}
	return nil
}

// All returns the whole collection, active and history alike.
func (s *Store) All() []models.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the reminder with the given id.
func (s *Store) Get(id string) (models.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.load() {
		if r.ID == id {
			return r, true
		}
	}
	return models.Reminder{}, false
}

// Upsert replaces the reminder with the same id, or appends it.
func (s *Store) Upsert(rem models.Reminder) error {
	rem.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	reminders := s.load()
	for i, existing := range reminders {
		if existing.ID == rem.ID {
			reminders[i] = rem
			return s.save(reminders)
		}
	}
	return s.save(append(reminders, rem))
}

// mutate applies fn to the reminder with the given id, bumps its timestamp
// and saves the collection.
func (s *Store) mutate(id string, fn func(*models.Reminder)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders := s.load()
	for i := range reminders {
		if reminders[i].ID == id {
			fn(&reminders[i])
			reminders[i].Timestamp = time.Now().UnixMilli()
			return s.save(reminders)
		}
	}
	return ErrNotFound
}

// SoftDelete marks the reminder deleted; the record stays in the collection.
func (s *Store) SoftDelete(id string) error {
	return s.mutate(id, func(r *models.Reminder) { r.IsDeleted = true })
}

// Complete marks the reminder completed.
func (s *Store) Complete(id string) error {
	return s.mutate(id, func(r *models.Reminder) { r.IsCompleted = true })
}

// Restore clears both flags, returning the reminder to active views.
func (s *Store) Restore(id string) error {
	return s.mutate(id, func(r *models.Reminder) {
		r.IsCompleted = false
		r.IsDeleted = false
	})
}

// Purge physically removes the reminder from the collection.
func (s *Store) Purge(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders := s.load()
	for i, r := range reminders {
		if r.ID == id {
			return s.save(append(reminders[:i], reminders[i+1:]...))
		}
	}
	return ErrNotFound
}

// ClearHistory drops every completed or deleted reminder, keeping only the
// active ones.
func (s *Store) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []models.Reminder
	for _, r := range s.load() {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	return s.save(active)
}

// ListActive returns reminders with both flags clear, today's entries first,
// then by date ascending.
func (s *Store) ListActive(now time.Time) []models.Reminder {
	today := now.Format(models.DateLayout)

	var active []models.Reminder
	for _, r := range s.All() {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		iToday := active[i].Date == today
		jToday := active[j].Date == today
		if iToday != jToday {
			return iToday
		}
		return active[i].Date < active[j].Date
	})
	return active
}

// ListHistory returns completed or deleted reminders, most recently touched
// first.
func (s *Store) ListHistory() []models.Reminder {
	var history []models.Reminder
	for _, r := range s.All() {
		if !r.IsActive() {
			history = append(history, r)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp > history[j].Timestamp
	})
	return history
}

// storedAccount is the persisted shape of the account; the password hash is
// excluded from the API model's JSON but must round-trip here.
type storedAccount struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

// GetAccount loads the single local account, if one has been registered.
func (s *Store) GetAccount() (*models.Account, bool) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, accountKey).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			s.log.Errorf("[store] account read failed: %v", err)
		}
		return nil, false
	}

	var sa storedAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		s.log.Errorf("[store] corrupt account blob: %v", err)
		return nil, false
	}
	return &models.Account{
		ID:           sa.ID,
		Username:     sa.Username,
		PasswordHash: sa.PasswordHash,
		CreatedAt:    sa.CreatedAt,
	}, true
}

// CreateAccount registers the single local account. Fails once one exists.
func (s *Store) CreateAccount(username, password string) (*models.Account, error) {
	if _, ok := s.GetAccount(); ok {
		return nil, errors.New("account already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	acc := &models.Account{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UnixMilli(),
	}
	data, err := json.Marshal(storedAccount{
		ID:           acc.ID,
		Username:     acc.Username,
		PasswordHash: acc.PasswordHash,
		CreatedAt:    acc.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, accountKey, string(data)); err != nil {
		return nil, err
	}
	return acc, nil
}

// ValidatePassword checks a login attempt against the stored hash.
func (s *Store) ValidatePassword(acc *models.Account, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) == nil
}
