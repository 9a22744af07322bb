package testutil

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/finance"
	"github.com/trezcool/masomo-fees/core/student"
	"github.com/trezcool/masomo-fees/storage/database"
)

var dbCounter int64

func init() {
	goose.SetLogger(log.New(io.Discard, "", 0))
}

// OpenDB returns a migrated in-memory database, closed when the test ends.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	name := fmt.Sprintf("masomo_test_%d_%s", atomic.AddInt64(&dbCounter, 1), uuid.New().String()[:8])
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed to migrate: %v", err)
	}
	return db
}

// NewValidator returns a validator with every app validation registered.
func NewValidator() *validator.Validate {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	finance.InitValidators(validate, translator)
	return validate
}

func Decimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Decimal(%q) failed: %v", s, err)
	}
	return d
}

func StrPtr(s string) *string { return &s }

func CreateStudent(t *testing.T, repo student.Repository, name string, createdAt ...time.Time) student.Student {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	std, err := repo.CreateStudent(context.Background(), student.Student{
		Name:      name,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func CreateFeeStructure(t *testing.T, repo finance.Repository, name, amount string, createdAt ...time.Time) finance.FeeStructure {
	t.Helper()

	tstamp := time.Now().UTC().Truncate(time.Microsecond)
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	fs, err := repo.CreateFeeStructure(context.Background(), finance.FeeStructure{
		Name:      name,
		Amount:    Decimal(t, amount),
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateFeeStructure() failed: %v", err)
	}
	return fs
}

// Logger discards every entry.
type Logger struct{}

var _ core.Logger = Logger{}

func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

// Broadcaster records every broadcast event.
type Broadcaster struct {
	mu     sync.Mutex
	events []core.Event
}

func (b *Broadcaster) Broadcast(_ context.Context, evt core.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

// Events returns the events broadcast on topic.
func (b *Broadcaster) Events(topic string) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var evts []core.Event
	for _, e := range b.events {
		if e.Topic == topic {
			evts = append(evts, e)
		}
	}
	return evts
}
