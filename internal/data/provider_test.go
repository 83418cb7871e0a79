package data

import (
	"path/filepath"
	"testing"

	"github.com/gowvp/moodline/internal/conf"
)

func TestGetDialector(t *testing.T) {
	tests := []struct {
		dsn    string
		name   string
		sqlite bool
	}{
		{dsn: "postgres://u:p@127.0.0.1:5432/moodline", name: "postgres"},
		{dsn: "mysql://u:p@tcp(127.0.0.1:3306)/moodline", name: "mysql"},
		{dsn: filepath.Join(t.TempDir(), "db", "data.db"), name: "sqlite", sqlite: true},
	}
	for _, tt := range tests {
		dial, isSQLite, err := getDialector(tt.dsn)
		if err != nil {
			t.Fatal(err)
		}
		if dial.Name() != tt.name || isSQLite != tt.sqlite {
			t.Fatalf("dsn %s: got %s sqlite=%v", tt.dsn, dial.Name(), isSQLite)
		}
	}
}

func TestSetupSQLite(t *testing.T) {
	bc := conf.DefaultConfig()
	bc.Data.Database.Dsn = filepath.Join(t.TempDir(), "configs", "data.db")
	db, err := SetupDB(&bc)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatal(err)
	}
}
