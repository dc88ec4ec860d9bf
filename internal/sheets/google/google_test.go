package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finbot/internal/core"

	goption "google.golang.org/api/option"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, goption.WithoutAuthentication())
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadCredentials(t *testing.T) {
	ctx := context.Background()
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	t.Run("inline json wins", func(t *testing.T) {
		b, err := loadCredentials(ctx, Config{CredentialsJSON: `{"type":"service_account"}`, CredentialsFile: "/nope"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(b) != `{"type":"service_account"}` {
			t.Errorf("unexpected credentials: %s", b)
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sa.json")
		if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
			t.Fatal(err)
		}
		b, err := loadCredentials(ctx, Config{CredentialsFile: path})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(b) != `{"from":"file"}` {
			t.Errorf("unexpected credentials: %s", b)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadCredentials(ctx, Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
		if err == nil || !strings.Contains(err.Error(), "read service account file") {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := loadCredentials(ctx, Config{})
		if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
			t.Errorf("expected missing credentials error, got %v", err)
		}
	})
}

func TestClient_AppendExpenses(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  struct {
			Values [][]any `json:"values"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"spreadsheetId":"sheet-123","updates":{"updatedRows":2}}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(),
		Config{SpreadsheetID: "sheet-123", SheetName: "Траты", Location: time.UTC},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	at := time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)
	lines := []core.ExpenseLine{
		{Expense: core.Expense{ID: 1, CreatedAt: at, Amount: core.Money{Cents: 15050}}, CategoryLabel: "Health 🏥"},
		{Expense: core.Expense{ID: 2, CreatedAt: at, Amount: core.Money{Cents: 19999}}, CategoryLabel: "Еда 🍕"},
	}

	n, err := c.AppendExpenses(context.Background(), 7, lines)
	if err != nil {
		t.Fatalf("AppendExpenses: %v", err)
	}
	if n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
	if !strings.Contains(gotPath, "/v4/spreadsheets/sheet-123/values/") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if !strings.Contains(gotQuery, "valueInputOption=USER_ENTERED") || !strings.Contains(gotQuery, "insertDataOption=INSERT_ROWS") {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if len(gotBody.Values) != 2 {
		t.Fatalf("expected 2 rows, got %v", gotBody.Values)
	}
	row := gotBody.Values[0]
	if row[0] != "2025-03-15 09:30" || row[2] != "Health 🏥" || row[3] != 150.5 {
		t.Errorf("unexpected row %v", row)
	}
}

func TestClient_AppendExpenses_NotInitialized(t *testing.T) {
	c := &Client{}
	if _, err := c.AppendExpenses(context.Background(), 1, nil); err == nil {
		t.Error("expected error for uninitialized service")
	}
}

func TestToRow(t *testing.T) {
	at := time.Date(2025, 3, 15, 21, 0, 0, 0, time.UTC)
	msk := time.FixedZone("MSK", 3*3600)
	row := toRow(5, core.ExpenseLine{
		Expense:       core.Expense{ID: 9, CreatedAt: at, Amount: core.Money{Cents: 1}},
		CategoryLabel: "Еда 🍕",
	}, msk)

	if row[0] != "2025-03-16 00:00" {
		t.Errorf("date should be shown in the configured zone, got %v", row[0])
	}
	if row[1] != int64(5) || row[4] != int64(9) {
		t.Errorf("unexpected ids: %v", row)
	}
	if row[3] != 0.01 {
		t.Errorf("amount = %v, want 0.01", row[3])
	}
}
