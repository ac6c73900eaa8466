package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPreferenceRepositoryLoadReturnsNilWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewPreferenceRepository(db)
	mock.ExpectQuery("FROM agent_preferences").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"record"}))

	record, err := repo.Load(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %q", record)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPreferenceRepositorySaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewPreferenceRepository(db)
	record := []byte(`{"routing_mode":"auto"}`)
	mock.ExpectExec("INSERT INTO agent_preferences").
		WithArgs("u-1", record, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), "u-1", record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPreferenceRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewPreferenceRepository(db)
	mock.ExpectExec("DELETE FROM agent_preferences").
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "u-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
