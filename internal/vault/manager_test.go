package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kinvault/kinvault/internal/storage/sqlite"
	"github.com/kinvault/kinvault/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := sqlite.NewRecordStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewManager(store, "user-1", []byte("test vault key"))
}

func TestContactID(t *testing.T) {
	cases := []struct{ name, want string }{
		{"Ada Lovelace", "ada-lovelace"},
		{"  Grace  Hopper  ", "grace-hopper"},
		{"O'Brien, Pat", "o-brien-pat"},
		{"ADA", "ada"},
	}
	for _, tc := range cases {
		if got := ContactID(tc.name); got != tc.want {
			t.Errorf("ContactID(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestStoreContact_RequiresName(t *testing.T) {
	m := newTestManager(t)

	_, err := m.StoreContact(context.Background(), &types.Contact{Email: "x@y.z"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("StoreContact without name: got %v, want ErrValidation", err)
	}
}

func TestStoreContact_DefaultsPriorityToMedium(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Ada Lovelace"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	got, err := m.FindContactByName(ctx, "Ada Lovelace")
	if err != nil {
		t.Fatalf("FindContactByName failed: %v", err)
	}
	if got == nil {
		t.Fatal("contact not found after store")
	}
	if got.Priority != types.PriorityMedium {
		t.Errorf("Priority: got %q, want %q", got.Priority, types.PriorityMedium)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set on first store")
	}
}

// Adding the same name twice must merge, never create a second record, and
// the first call's values survive where the second left a field empty.
func TestStoreContact_SameNameMerges(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id1, err := m.StoreContact(ctx, &types.Contact{
		Name:    "Ada Lovelace",
		Email:   "ada@analytical.engine",
		Company: "Babbage & Co",
	})
	if err != nil {
		t.Fatalf("first StoreContact failed: %v", err)
	}

	id2, err := m.StoreContact(ctx, &types.Contact{
		Name:  "Ada Lovelace",
		Phone: "+44 123",
	})
	if err != nil {
		t.Fatalf("second StoreContact failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("same name produced two ids: %q vs %q", id1, id2)
	}

	all, err := m.GetAllContacts(ctx)
	if err != nil {
		t.Fatalf("GetAllContacts failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("got %d contacts, want exactly 1", len(all))
	}

	got := all[0]
	if got.Email != "ada@analytical.engine" {
		t.Errorf("Email lost in merge: got %q", got.Email)
	}
	if got.Company != "Babbage & Co" {
		t.Errorf("Company lost in merge: got %q", got.Company)
	}
	if got.Phone != "+44 123" {
		t.Errorf("Phone not merged in: got %q", got.Phone)
	}
}

func TestFindContactByName_ExactBeatsSubstring(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Ann"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}
	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Annabel"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	got, err := m.FindContactByName(ctx, "annabel")
	if err != nil {
		t.Fatalf("FindContactByName failed: %v", err)
	}
	if got == nil || got.Name != "Annabel" {
		t.Fatalf("exact match: got %+v, want Annabel", got)
	}
}

func TestFindContactByName_BidirectionalSubstring(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Ada Lovelace"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	// Query contained in stored name.
	got, err := m.FindContactByName(ctx, "ada")
	if err != nil {
		t.Fatalf("FindContactByName failed: %v", err)
	}
	if got == nil || got.Name != "Ada Lovelace" {
		t.Fatalf("substring match (query in stored): got %+v", got)
	}

	// Stored name contained in query.
	got, err = m.FindContactByName(ctx, "Ada Lovelace of London")
	if err != nil {
		t.Fatalf("FindContactByName failed: %v", err)
	}
	if got == nil || got.Name != "Ada Lovelace" {
		t.Fatalf("substring match (stored in query): got %+v", got)
	}

	// No match at all.
	got, err = m.FindContactByName(ctx, "Charles")
	if err != nil {
		t.Fatalf("FindContactByName failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unknown name, got %+v", got)
	}
}

func TestFindContactByName_TieBreaksOnFirstInserted(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Jo March"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Jo Bennet"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	got, err := m.FindContactByName(ctx, "jo")
	if err != nil {
		t.Fatalf("FindContactByName failed: %v", err)
	}
	if got == nil || got.Name != "Jo March" {
		t.Fatalf("tie-break: got %+v, want first-inserted Jo March", got)
	}
}

func TestUpdateContact_NonEmptyWins(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{
		Name:  "Ada Lovelace",
		Email: "ada@analytical.engine",
		Notes: "mathematician",
	}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	existing, err := m.FindContactByName(ctx, "Ada Lovelace")
	if err != nil || existing == nil {
		t.Fatalf("FindContactByName failed: %v, %+v", err, existing)
	}

	merged, err := m.UpdateContact(ctx, existing, &types.Contact{
		Email:    "countess@lovelace.uk",
		Location: "London",
		Dates:    map[string]string{"birthday": "10-12"},
	})
	if err != nil {
		t.Fatalf("UpdateContact failed: %v", err)
	}

	if merged.Email != "countess@lovelace.uk" {
		t.Errorf("non-empty new email should overwrite: got %q", merged.Email)
	}
	if merged.Notes != "mathematician" {
		t.Errorf("absent field should be untouched: got %q", merged.Notes)
	}
	if merged.Location != "London" {
		t.Errorf("new field should be set: got %q", merged.Location)
	}
	if merged.Dates["birthday"] != "10-12" {
		t.Errorf("dates should merge: got %v", merged.Dates)
	}

	// Re-read and confirm the merge persisted.
	persisted, err := m.FindContactByName(ctx, "Ada Lovelace")
	if err != nil || persisted == nil {
		t.Fatalf("FindContactByName after update failed: %v", err)
	}
	if persisted.Email != "countess@lovelace.uk" || persisted.Notes != "mathematician" {
		t.Errorf("persisted contact wrong: %+v", persisted)
	}
}

func TestStoreMemory_UpdatesLastTalkedDate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Ada Lovelace"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	id, err := m.StoreMemory(ctx, &types.Memory{
		ContactName: "Ada Lovelace",
		Summary:     "loves analytical engines",
		Tags:        []string{"engines", "maths"},
	})
	if err != nil {
		t.Fatalf("StoreMemory failed: %v", err)
	}
	if id == "" {
		t.Fatal("StoreMemory returned empty id")
	}

	contact, err := m.FindContactByName(ctx, "Ada Lovelace")
	if err != nil || contact == nil {
		t.Fatalf("FindContactByName failed: %v", err)
	}
	today := time.Now().UTC().Format("2006-01-02")
	if contact.LastTalkedDate != today {
		t.Errorf("LastTalkedDate: got %q, want %q", contact.LastTalkedDate, today)
	}

	memories, err := m.GetMemoriesForContact(ctx, "ada lovelace")
	if err != nil {
		t.Fatalf("GetMemoriesForContact failed: %v", err)
	}
	if len(memories) != 1 || memories[0].Summary != "loves analytical engines" {
		t.Fatalf("GetMemoriesForContact: got %+v", memories)
	}
}

func TestStoreMemory_Validation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreMemory(ctx, &types.Memory{Summary: "no contact"}); !errors.Is(err, ErrValidation) {
		t.Errorf("missing contact name: got %v, want ErrValidation", err)
	}
	if _, err := m.StoreMemory(ctx, &types.Memory{ContactName: "Ada"}); !errors.Is(err, ErrValidation) {
		t.Errorf("missing summary: got %v, want ErrValidation", err)
	}
}

func TestStoreReminder_AndGetAll(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreReminder(ctx, &types.Reminder{
		ContactName: "Ada Lovelace",
		Title:       "send birthday card",
		Date:        "2025-12-10",
		Priority:    "HIGH",
	}); err != nil {
		t.Fatalf("StoreReminder failed: %v", err)
	}

	reminders, err := m.GetAllReminders(ctx)
	if err != nil {
		t.Fatalf("GetAllReminders failed: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("got %d reminders, want 1", len(reminders))
	}
	if reminders[0].Priority != types.PriorityHigh {
		t.Errorf("priority not normalized: got %q", reminders[0].Priority)
	}

	if _, err := m.StoreReminder(ctx, &types.Reminder{ContactName: "Ada"}); !errors.Is(err, ErrValidation) {
		t.Errorf("missing title: got %v, want ErrValidation", err)
	}
}

func TestSearchContacts_MatchesNameAndDetails(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Ada Lovelace", Company: "Analytical Engines Ltd"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}
	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Grace Hopper", Location: "New York"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	byName, err := m.SearchContacts(ctx, "grace")
	if err != nil {
		t.Fatalf("SearchContacts failed: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "Grace Hopper" {
		t.Fatalf("search by name: got %+v", byName)
	}

	byDetail, err := m.SearchContacts(ctx, "engines")
	if err != nil {
		t.Fatalf("SearchContacts failed: %v", err)
	}
	if len(byDetail) != 1 || byDetail[0].Name != "Ada Lovelace" {
		t.Fatalf("search by detail field: got %+v", byDetail)
	}

	none, err := m.SearchContacts(ctx, "nobody")
	if err != nil {
		t.Fatalf("SearchContacts failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("search with no match: got %+v", none)
	}
}

func TestDeleteContact_SoftDeleteVisibleToAdminQuery(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.StoreContact(ctx, &types.Contact{Name: "Ada Lovelace"}); err != nil {
		t.Fatalf("StoreContact failed: %v", err)
	}

	deleted, err := m.DeleteContact(ctx, "ada")
	if err != nil || !deleted {
		t.Fatalf("DeleteContact = (%v, %v), want (true, nil)", deleted, err)
	}

	if got, err := m.FindContactByName(ctx, "Ada Lovelace"); err != nil || got != nil {
		t.Fatalf("deleted contact still resolvable: %+v, %v", got, err)
	}

	admin, err := m.ListDeletedContacts(ctx)
	if err != nil {
		t.Fatalf("ListDeletedContacts failed: %v", err)
	}
	if len(admin) != 1 || admin[0].Name != "Ada Lovelace" {
		t.Fatalf("admin listing: got %+v, want the deleted contact", admin)
	}
}

func TestMergedFields(t *testing.T) {
	existing := &types.Contact{Name: "Ada", Email: "old@x", Priority: types.PriorityMedium}
	incoming := &types.Contact{
		Email:    "new@x",
		Company:  "Babbage & Co",
		Priority: "medium", // unchanged after normalization
		Dates:    map[string]string{"birthday": "10-12"},
	}

	got := MergedFields(existing, incoming)
	want := []string{"company", "dates.birthday", "email"}
	if len(got) != len(want) {
		t.Fatalf("MergedFields: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MergedFields: got %v, want %v", got, want)
		}
	}
}
