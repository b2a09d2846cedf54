package database

import (
	"regexp"
	"strings"
	"testing"
)

// TestInitMigration_SessionIDColumnIsText はセッションIDカラムの型を検証する。
// 認証サービスが発行するセッションIDは64桁hexの不透明トークンであり、
// UUID型のカラムにはINSERTできない。
func TestInitMigration_SessionIDColumnIsText(t *testing.T) {
	ddl, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read embedded migration: %v", err)
	}

	colType := columnType(t, string(ddl), "sessions", "id")
	if colType != "TEXT" {
		t.Errorf("sessions.id type = %q, want TEXT (opaque hex token)", colType)
	}
}

// TestInitMigration_AllTablesPresent は必須テーブルの定義を検証する。
func TestInitMigration_AllTablesPresent(t *testing.T) {
	ddl, err := migrationsFS.ReadFile("migrations/000001_init.up.sql")
	if err != nil {
		t.Fatalf("failed to read embedded migration: %v", err)
	}

	tables := []string{
		"users", "identities", "sessions", "plan_subscriptions",
		"classes", "decks", "flashcards", "quiz_questions",
		"card_progress", "study_sessions", "session_cards",
		"user_stats", "bookmarks",
	}
	for _, table := range tables {
		if !strings.Contains(string(ddl), "CREATE TABLE "+table+" (") {
			t.Errorf("missing CREATE TABLE for %q", table)
		}
	}
}

// columnType はDDL文字列から指定テーブル・カラムの型を抽出する。
func columnType(t *testing.T, ddl, table, column string) string {
	t.Helper()

	tableRe := regexp.MustCompile(`(?s)CREATE TABLE ` + table + ` \((.*?)\);`)
	m := tableRe.FindStringSubmatch(ddl)
	if m == nil {
		t.Fatalf("table %q not found in DDL", table)
	}

	colRe := regexp.MustCompile(`(?m)^\s*` + column + `\s+(\S+)`)
	cm := colRe.FindStringSubmatch(m[1])
	if cm == nil {
		t.Fatalf("column %q not found in table %q", column, table)
	}
	return cm[1]
}
