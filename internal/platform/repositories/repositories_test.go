package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"alawein/internal/platform/database"
	"alawein/internal/platform/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMemory(context.Background())
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db.DB
}

func TestAPIKeyRepository_ListNewestFirstAndScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAPIKeyRepository(db)
	ctx := context.Background()

	for i, id := range []string{"k1", "k2"} {
		key := &models.APIKey{ID: id, UserID: "u1", Name: id, KeyHash: "hash-" + id, KeyPrefix: "alw_live_", CreatedAt: int64(100 + i)}
		if err := repo.Create(ctx, key); err != nil {
			t.Fatalf("Failed to create key: %v", err)
		}
	}
	other := &models.APIKey{ID: "k3", UserID: "u2", Name: "other", KeyHash: "hash-k3", KeyPrefix: "alw_live_", CreatedAt: 200}
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	keys, err := repo.ListByUser(ctx, "u1", ListOptions{})
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(keys) != 2 || keys[0].ID != "k2" || keys[1].ID != "k1" {
		t.Fatalf("Expected [k2 k1], got %+v", keys)
	}
	if keys[0].Scopes == nil {
		t.Error("Expected empty scopes slice, got nil")
	}

	empty, err := repo.ListByUser(ctx, "nobody", ListOptions{})
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", empty)
	}

	found, err := repo.GetByHash(ctx, "hash-k3")
	if err != nil || found == nil || found.UserID != "u2" {
		t.Errorf("GetByHash returned %+v, %v", found, err)
	}
}

func TestAPIKeyRepository_RevokeIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAPIKeyRepository(db)
	ctx := context.Background()

	key := &models.APIKey{ID: "k1", UserID: "u1", Name: "ci", KeyHash: "h1", KeyPrefix: "alw_live_"}
	if err := repo.Create(ctx, key); err != nil {
		t.Fatalf("Failed to create key: %v", err)
	}

	first, err := repo.Revoke(ctx, "k1", "u1")
	if err != nil || first == nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if first.Status != models.APIKeyRevoked || first.RevokedAt == nil {
		t.Fatalf("Expected revoked key, got %+v", first)
	}

	// Pin the first revocation time so a second revoke in the same second would still be detected.
	if _, err := db.Exec(`UPDATE api_keys SET revoked_at = 42 WHERE id = 'k1'`); err != nil {
		t.Fatal(err)
	}
	second, err := repo.Revoke(ctx, "k1", "u1")
	if err != nil {
		t.Fatalf("Second revoke failed: %v", err)
	}
	if *second.RevokedAt != 42 {
		t.Errorf("Expected revoked_at to stay 42, got %d", *second.RevokedAt)
	}

	if missing, err := repo.Revoke(ctx, "k1", "u2"); err != nil || missing != nil {
		t.Errorf("Revoking another user's key should match nothing, got %+v, %v", missing, err)
	}
}

func TestAPIKeyRepository_DeleteMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAPIKeyRepository(db)

	deleted, err := repo.Delete(context.Background(), "nope", "u1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != nil {
		t.Errorf("Expected nil for missing key, got %+v", deleted)
	}
}

func TestAPIKeyRepository_RevokeNoRowsWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE api_keys SET status = 'revoked'").
		WithArgs(sqlmock.AnyArg(), "k1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	key, err := NewAPIKeyRepository(db).Revoke(context.Background(), "k1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != nil {
		t.Errorf("Expected nil key, got %+v", key)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestListOptionsRejectUnknownColumns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAPIKeyRepository(db)

	_, err := repo.ListByUser(context.Background(), "u1", ListOptions{Filters: []Filter{{Column: "key_hash", Value: "x"}}})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Expected ErrUnknownColumn for filter, got %v", err)
	}
	_, err = repo.ListByUser(context.Background(), "u1", ListOptions{OrderBy: "user_id; DROP TABLE api_keys"})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Expected ErrUnknownColumn for order, got %v", err)
	}
}

func TestSelectBuilderNumbersPlaceholders(t *testing.T) {
	b := newSelect("id", "t").eq("a", 1).cond("b IN (SELECT x FROM y WHERE z = %s)", 2)
	if err := b.apply(ListOptions{Filters: []Filter{{Column: "c", Value: "3"}}, OrderBy: "c", Desc: true, Limit: 5}, map[string]bool{"c": true}, ""); err != nil {
		t.Fatal(err)
	}
	query, args := b.build()
	want := "SELECT id FROM t WHERE a = $1 AND b IN (SELECT x FROM y WHERE z = $2) AND c = $3 ORDER BY c DESC LIMIT 5"
	if query != want {
		t.Errorf("query = %q\nwant    %q", query, want)
	}
	if len(args) != 3 {
		t.Errorf("Expected 3 args, got %d", len(args))
	}
}

func TestOrganizationRepository_CreateWithOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()

	org := &models.Organization{Name: "Acme", Slug: "acme", CreatedBy: "u1", CreatedAt: 100}
	member, err := repo.CreateWithOwner(ctx, org)
	if err != nil {
		t.Fatalf("CreateWithOwner failed: %v", err)
	}
	if member.Role != models.RoleOwner || member.UserID != "u1" {
		t.Errorf("Expected owner membership for u1, got %+v", member)
	}

	dup := &models.Organization{Name: "Acme 2", Slug: "acme", CreatedBy: "u2"}
	if _, err := repo.CreateWithOwner(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for taken slug, got %v", err)
	}
	// The failed insert must not leave a dangling membership.
	if m, _ := repo.GetMembership(ctx, dup.ID, "u2"); m != nil {
		t.Errorf("Expected no membership after rollback, got %+v", m)
	}

	orgs, err := repo.ListForUser(ctx, "u1", ListOptions{})
	if err != nil || len(orgs) != 1 || orgs[0].Slug != "acme" {
		t.Fatalf("ListForUser = %+v, %v", orgs, err)
	}
	if none, _ := repo.ListForUser(ctx, "u2", ListOptions{}); len(none) != 0 {
		t.Errorf("u2 should see no orgs, got %+v", none)
	}
}

func TestOrganizationRepository_MembersAndDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrganizationRepository(db)
	ctx := context.Background()

	org := &models.Organization{ID: "o1", Name: "Acme", Slug: "acme", CreatedBy: "u1"}
	if _, err := repo.CreateWithOwner(ctx, org); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO organization_members (organization_id, user_id, role, created_at) VALUES ('o1', 'u2', 'member', 200)`); err != nil {
		t.Fatal(err)
	}

	members, err := repo.ListMembers(ctx, "u2", ListOptions{})
	if err != nil || len(members) != 2 {
		t.Fatalf("ListMembers = %+v, %v", members, err)
	}

	updated, err := repo.UpdateMemberRole(ctx, "o1", "u2", models.RoleAdmin)
	if err != nil || updated.Role != models.RoleAdmin {
		t.Fatalf("UpdateMemberRole = %+v, %v", updated, err)
	}

	removed, err := repo.RemoveMember(ctx, "o1", "u2")
	if err != nil || removed == nil {
		t.Fatalf("RemoveMember = %+v, %v", removed, err)
	}

	deleted, err := repo.Delete(ctx, "o1")
	if err != nil || deleted == nil || deleted.ID != "o1" {
		t.Fatalf("Delete = %+v, %v", deleted, err)
	}
	if m, _ := repo.GetMembership(ctx, "o1", "u1"); m != nil {
		t.Errorf("Expected memberships removed with org, got %+v", m)
	}
	if again, err := repo.Delete(ctx, "o1"); err != nil || again != nil {
		t.Errorf("Deleting a missing org should return nil, got %+v, %v", again, err)
	}
}

func TestProfileRepository_LinkBillingCustomerOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	if err := repo.Ensure(ctx, "u1", "a@b.com"); err != nil {
		t.Fatal(err)
	}
	// Ensure is insert-or-ignore.
	if err := repo.Ensure(ctx, "u1", "changed@b.com"); err != nil {
		t.Fatal(err)
	}

	won, err := repo.LinkBillingCustomer(ctx, "u1", "ctm_1")
	if err != nil || !won {
		t.Fatalf("First link should win, got %v, %v", won, err)
	}
	won, err = repo.LinkBillingCustomer(ctx, "u1", "ctm_2")
	if err != nil || won {
		t.Fatalf("Second link should lose, got %v, %v", won, err)
	}

	p, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if p.BillingCustomerID != "ctm_1" || p.Email != "a@b.com" {
		t.Errorf("Unexpected profile %+v", p)
	}

	byCustomer, err := repo.FindByBillingCustomer(ctx, "ctm_1")
	if err != nil || byCustomer == nil || byCustomer.ID != "u1" {
		t.Errorf("FindByBillingCustomer = %+v, %v", byCustomer, err)
	}
}

func TestSubscriptionRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubscriptionRepository(db)
	ctx := context.Background()

	if sub, err := repo.GetByUser(ctx, "u1"); err != nil || sub != nil {
		t.Fatalf("Expected no subscription, got %+v, %v", sub, err)
	}

	sub := &models.Subscription{UserID: "u1", Tier: models.TierStarter, Status: models.SubscriptionActive, BillingCustomerID: "ctm_1", BillingSubscriptionID: "sub_1"}
	if err := repo.Upsert(ctx, sub); err != nil {
		t.Fatal(err)
	}
	sub2 := &models.Subscription{UserID: "u1", Tier: models.TierPro, Status: models.SubscriptionPastDue, BillingCustomerID: "ctm_1", BillingSubscriptionID: "sub_1"}
	if err := repo.Upsert(ctx, sub2); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != sub.ID {
		t.Errorf("Expected upsert to keep row id %s, got %s", sub.ID, got.ID)
	}
	if got.Tier != models.TierPro || got.Status != models.SubscriptionPastDue {
		t.Errorf("Unexpected subscription %+v", got)
	}
}

func TestWaitlistRepository_JoinAssignsPositions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWaitlistRepository(db)
	ctx := context.Background()

	var entries []*models.WaitlistEntry
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		e := &models.WaitlistEntry{Email: email, ProjectID: "simcore"}
		if err := repo.Join(ctx, e); err != nil {
			t.Fatalf("Join(%s) failed: %v", email, err)
		}
		entries = append(entries, e)
	}
	other := &models.WaitlistEntry{Email: "a@x.com", ProjectID: "talai"}
	if err := repo.Join(ctx, other); err != nil {
		t.Fatal(err)
	}

	for i, e := range entries {
		if e.Position != int64(i+1) {
			t.Errorf("Expected position %d, got %d", i+1, e.Position)
		}
	}
	if other.Position != 1 {
		t.Errorf("Positions are per project, got %d", other.Position)
	}

	dup := &models.WaitlistEntry{Email: "b@x.com", ProjectID: "simcore"}
	if err := repo.Join(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}

	var meta map[string]interface{}
	if err := json.Unmarshal(entries[0].Metadata, &meta); err != nil {
		t.Errorf("Expected default metadata object, got %s", entries[0].Metadata)
	}
}

func TestWaitlistRepository_ConcurrentJoins(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWaitlistRepository(db)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := &models.WaitlistEntry{Email: string(rune('a'+i)) + "@x.com", ProjectID: "qmlab"}
			errs <- repo.Join(ctx, e)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Join failed: %v", err)
		}
	}

	all, err := repo.List(ctx, ListOptions{Filters: []Filter{{Column: "project_id", Value: "qmlab"}}})
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int64]bool{}
	for _, e := range all {
		if seen[e.Position] {
			t.Errorf("Position %d assigned twice", e.Position)
		}
		seen[e.Position] = true
	}
	if len(seen) != n {
		t.Errorf("Expected %d distinct positions, got %d", n, len(seen))
	}
}

func TestWaitlistRepository_StatusTransitions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWaitlistRepository(db)
	ctx := context.Background()

	e := &models.WaitlistEntry{Email: "a@x.com", ProjectID: "mezan"}
	if err := repo.Join(ctx, e); err != nil {
		t.Fatal(err)
	}

	if _, err := repo.UpdateStatus(ctx, e.ID, models.WaitlistConverted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("waiting -> converted should be rejected, got %v", err)
	}

	invited, err := repo.UpdateStatus(ctx, e.ID, models.WaitlistInvited)
	if err != nil {
		t.Fatal(err)
	}
	if invited.Position != e.Position {
		t.Errorf("Position changed from %d to %d", e.Position, invited.Position)
	}

	pending, err := repo.PendingInvites(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("PendingInvites = %+v, %v", pending, err)
	}
	if err := repo.MarkInviteSent(ctx, e.ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingInvites(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("Expected no pending invites after send, got %d", len(pending))
	}

	if missing, err := repo.UpdateStatus(ctx, "nope", models.WaitlistInvited); err != nil || missing != nil {
		t.Errorf("Expected nil for missing entry, got %+v, %v", missing, err)
	}
}

func TestResultRepository_DuplicateRowsAllowed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResultRepository(db)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := &models.ScanResult{UserID: "u1", Target: "main.go", Findings: models.Findings{Total: 1, Warnings: 1,
			Details: []models.ScanFinding{{Severity: "warning", Rule: "todo", Message: "TODO left in code"}}}}
		if err := repo.CreateScan(ctx, res); err != nil {
			t.Fatal(err)
		}
	}
	scans, err := repo.ListScans(ctx, "u1", ListOptions{})
	if err != nil || len(scans) != 2 {
		t.Fatalf("ListScans = %+v, %v", scans, err)
	}
	if scans[0].Findings.Details[0].Rule != "todo" {
		t.Errorf("Details not round-tripped: %+v", scans[0].Findings)
	}

	research := &models.ResearchResult{UserID: "u1", Topic: "qubits", Summary: "s", Insights: []string{"i1"}, Confidence: 0.5}
	if err := repo.CreateResearch(ctx, research); err != nil {
		t.Fatal(err)
	}
	list, err := repo.ListResearch(ctx, "u1", ListOptions{})
	if err != nil || len(list) != 1 || list[0].Confidence != 0.5 {
		t.Fatalf("ListResearch = %+v, %v", list, err)
	}
}
