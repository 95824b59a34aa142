package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kinvault/kinvault/internal/storage"
	"github.com/kinvault/kinvault/pkg/types"
)

const contactCacheKey = "contacts"

// Manager is the typed CRUD façade over the secure store for one
// (userID, vaultKey) pair, fixed at construction. It owns fuzzy contact
// resolution, merge-on-add, and the per-key write serialisation that the
// read-merge-write update pattern requires.
type Manager struct {
	secure *SecureStore
	userID string
	locks  *keyedMutex

	// cache holds the decrypted, sorted contact list between writes.
	// Contact resolution decrypts the whole list, so repeated lookups in
	// one batch would otherwise re-run every AEAD open.
	cache *lru.Cache[string, []*types.Contact]

	now func() time.Time
}

// NewManager creates a vault manager scoped to one user and vault key.
func NewManager(store storage.RecordStore, userID string, vaultKey []byte) *Manager {
	return NewManagerWithClock(store, userID, vaultKey, time.Now)
}

// NewManagerWithClock creates a manager with an explicit clock so callers
// that stamp last-talked dates and creation times share one time source.
func NewManagerWithClock(store storage.RecordStore, userID string, vaultKey []byte, now func() time.Time) *Manager {
	cache, _ := lru.New[string, []*types.Contact](4)
	if now == nil {
		now = time.Now
	}
	return &Manager{
		secure: NewSecureStore(store, vaultKey),
		userID: userID,
		locks:  newKeyedMutex(),
		cache:  cache,
		now:    now,
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// ContactID returns the record id a contact name maps to.
func ContactID(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// StoreContact creates the contact record for data.Name, or merges into the
// record already sharing that id. The record id defaults to a slug of the
// name, so two contacts whose names slug identically share one record.
// On merge, an existing non-empty field survives unless the new value is
// non-empty. Returns the record id.
func (m *Manager) StoreContact(ctx context.Context, data *types.Contact) (string, error) {
	if data == nil || strings.TrimSpace(data.Name) == "" {
		return "", fmt.Errorf("%w: contact name is required", ErrValidation)
	}

	id := ContactID(data.Name)

	unlock := m.locks.Lock(storage.RecordTypeContact + ":" + id)
	defer unlock()

	current, err := m.getContact(ctx, id)
	if err != nil {
		return "", err
	}
	if current != nil {
		data = mergeContact(current, data)
	}

	return id, m.writeContact(ctx, id, data)
}

// writeContact normalises and persists one contact. Callers hold the key lock.
func (m *Manager) writeContact(ctx context.Context, id string, data *types.Contact) error {
	c := *data
	c.Priority = types.NormalizePriority(string(c.Priority))
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now().UTC()
	}

	plaintext, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("failed to marshal contact: %w", err)
	}

	if err := m.secure.Put(ctx, storage.RecordTypeContact, id, m.userID, plaintext); err != nil {
		return err
	}

	m.cache.Remove(contactCacheKey)
	return nil
}

// FindContactByName resolves a name to a stored contact. Matching is
// case-insensitive: exact first, then bidirectional substring containment.
// Ties break on earliest CreatedAt, then name — a documented policy rather
// than incidental iteration order. Returns (nil, nil) when nothing matches.
func (m *Manager) FindContactByName(ctx context.Context, name string) (*types.Contact, error) {
	contacts, err := m.loadContacts(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}

	for _, c := range contacts {
		if strings.ToLower(c.Name) == needle {
			return cloneContact(c), nil
		}
	}

	for _, c := range contacts {
		stored := strings.ToLower(c.Name)
		if strings.Contains(stored, needle) || strings.Contains(needle, stored) {
			return cloneContact(c), nil
		}
	}

	return nil, nil
}

// UpdateContact merges newData into existing field-wise and persists the
// result under the existing contact's record id. A new value overwrites only
// if non-empty; absent fields are untouched. Returns the merged contact.
func (m *Manager) UpdateContact(ctx context.Context, existing, newData *types.Contact) (*types.Contact, error) {
	if existing == nil || strings.TrimSpace(existing.Name) == "" {
		return nil, fmt.Errorf("%w: existing contact is required", ErrValidation)
	}

	id := ContactID(existing.Name)

	unlock := m.locks.Lock(storage.RecordTypeContact + ":" + id)
	defer unlock()

	// Re-read under the lock so a concurrent writer's merge is not lost.
	current, err := m.getContact(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = existing
	}

	merged := mergeContact(current, newData)
	if err := m.writeContact(ctx, id, merged); err != nil {
		return nil, err
	}

	return merged, nil
}

// mergeContact applies the non-empty-wins field merge. Dates merge per key.
func mergeContact(existing, newData *types.Contact) *types.Contact {
	merged := *existing
	if newData == nil {
		return &merged
	}

	if newData.Email != "" {
		merged.Email = newData.Email
	}
	if newData.Phone != "" {
		merged.Phone = newData.Phone
	}
	if newData.Company != "" {
		merged.Company = newData.Company
	}
	if newData.Location != "" {
		merged.Location = newData.Location
	}
	if newData.Notes != "" {
		merged.Notes = newData.Notes
	}
	if newData.Priority != "" {
		merged.Priority = types.NormalizePriority(string(newData.Priority))
	}
	if newData.LastTalkedDate != "" {
		merged.LastTalkedDate = newData.LastTalkedDate
	}

	if len(newData.Dates) > 0 {
		if merged.Dates == nil {
			merged.Dates = make(map[string]string, len(newData.Dates))
		} else {
			dates := make(map[string]string, len(merged.Dates)+len(newData.Dates))
			for k, v := range existing.Dates {
				dates[k] = v
			}
			merged.Dates = dates
		}
		for k, v := range newData.Dates {
			if v != "" {
				merged.Dates[k] = v
			}
		}
	}

	return &merged
}

// MergedFields reports which fields of newData would change existing.
// The batch add node uses this to describe what an update touched.
func MergedFields(existing, newData *types.Contact) []string {
	var fields []string
	add := func(name, oldVal, newVal string) {
		if newVal != "" && newVal != oldVal {
			fields = append(fields, name)
		}
	}
	add("email", existing.Email, newData.Email)
	add("phone", existing.Phone, newData.Phone)
	add("company", existing.Company, newData.Company)
	add("location", existing.Location, newData.Location)
	add("notes", existing.Notes, newData.Notes)
	if newData.Priority != "" && types.NormalizePriority(string(newData.Priority)) != existing.Priority {
		fields = append(fields, "priority")
	}
	for k, v := range newData.Dates {
		if v != "" && existing.Dates[k] != v {
			fields = append(fields, "dates."+k)
		}
	}
	sort.Strings(fields)
	return fields
}

// GetAllContacts returns every live contact, sorted by creation time then name.
func (m *Manager) GetAllContacts(ctx context.Context) ([]*types.Contact, error) {
	contacts, err := m.loadContacts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*types.Contact, len(contacts))
	for i, c := range contacts {
		out[i] = cloneContact(c)
	}
	return out, nil
}

// SearchContacts returns contacts whose name or any string-valued detail
// field contains the query, case-insensitively.
func (m *Manager) SearchContacts(ctx context.Context, query string) ([]*types.Contact, error) {
	contacts, err := m.loadContacts(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	var matches []*types.Contact
	for _, c := range contacts {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			matches = append(matches, cloneContact(c))
			continue
		}
		for _, v := range c.DetailFields() {
			if v != "" && strings.Contains(strings.ToLower(v), needle) {
				matches = append(matches, cloneContact(c))
				break
			}
		}
	}

	return matches, nil
}

// DeleteContact soft-deletes the contact resolved from name.
// Returns false when no contact matched.
func (m *Manager) DeleteContact(ctx context.Context, name string) (bool, error) {
	contact, err := m.FindContactByName(ctx, name)
	if err != nil {
		return false, err
	}
	if contact == nil {
		return false, nil
	}

	id := ContactID(contact.Name)

	unlock := m.locks.Lock(storage.RecordTypeContact + ":" + id)
	defer unlock()

	deleted, err := m.secure.SoftDelete(ctx, storage.RecordTypeContact, id, m.userID)
	if deleted {
		m.cache.Remove(contactCacheKey)
	}
	return deleted, err
}

// ListDeletedContacts is the administrative include-deleted query: it
// returns contacts whose rows are soft-deleted but still present.
func (m *Manager) ListDeletedContacts(ctx context.Context) ([]*types.Contact, error) {
	decoded, err := m.secure.List(ctx, storage.RecordTypeContact, m.userID, storage.ListOptions{IncludeDeleted: true})
	if err != nil {
		return nil, err
	}

	var contacts []*types.Contact
	for _, d := range decoded {
		if !d.Meta.Deleted {
			continue
		}
		var c types.Contact
		if err := json.Unmarshal(d.Plaintext, &c); err != nil {
			log.Printf("vault: skipping malformed deleted contact %s: %v", d.Meta.RecordID, err)
			continue
		}
		contacts = append(contacts, &c)
	}
	return contacts, nil
}

// StoreMemory appends an interaction memory and bumps the target contact's
// LastTalkedDate to today when the contact exists. Returns the memory id.
func (m *Manager) StoreMemory(ctx context.Context, mem *types.Memory) (string, error) {
	if mem == nil || strings.TrimSpace(mem.ContactName) == "" {
		return "", fmt.Errorf("%w: contact name is required", ErrValidation)
	}
	if strings.TrimSpace(mem.Summary) == "" {
		return "", fmt.Errorf("%w: memory summary is required", ErrValidation)
	}

	record := *mem
	record.ID = uuid.New().String()
	record.CreatedAt = m.now().UTC()

	plaintext, err := json.Marshal(&record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal memory: %w", err)
	}

	if err := m.secure.Put(ctx, storage.RecordTypeMemory, record.ID, m.userID, plaintext); err != nil {
		return "", err
	}

	// Side effect: an interaction happened, so the contact was talked to today.
	contact, err := m.FindContactByName(ctx, mem.ContactName)
	if err != nil {
		return "", err
	}
	if contact != nil {
		today := m.now().UTC().Format("2006-01-02")
		if _, err := m.UpdateContact(ctx, contact, &types.Contact{LastTalkedDate: today}); err != nil {
			return "", fmt.Errorf("memory stored but contact update failed: %w", err)
		}
	}

	return record.ID, nil
}

// GetMemoriesForContact returns all memories for one contact name
// (case-insensitive), in insertion order.
func (m *Manager) GetMemoriesForContact(ctx context.Context, contactName string) ([]*types.Memory, error) {
	memories, err := m.GetAllMemories(ctx)
	if err != nil {
		return nil, err
	}

	var matches []*types.Memory
	for _, mem := range memories {
		if strings.EqualFold(mem.ContactName, contactName) {
			matches = append(matches, mem)
		}
	}
	return matches, nil
}

// GetAllMemories returns every live memory in insertion order.
func (m *Manager) GetAllMemories(ctx context.Context) ([]*types.Memory, error) {
	plaintexts, err := m.secure.ListAll(ctx, storage.RecordTypeMemory, m.userID)
	if err != nil {
		return nil, err
	}

	memories := make([]*types.Memory, 0, len(plaintexts))
	for _, p := range plaintexts {
		var mem types.Memory
		if err := json.Unmarshal(p, &mem); err != nil {
			log.Printf("vault: skipping malformed memory record: %v", err)
			continue
		}
		memories = append(memories, &mem)
	}
	return memories, nil
}

// StoreReminder appends a reminder. Returns the reminder id.
func (m *Manager) StoreReminder(ctx context.Context, rem *types.Reminder) (string, error) {
	if rem == nil || strings.TrimSpace(rem.ContactName) == "" {
		return "", fmt.Errorf("%w: contact name is required", ErrValidation)
	}
	if strings.TrimSpace(rem.Title) == "" {
		return "", fmt.Errorf("%w: reminder title is required", ErrValidation)
	}

	record := *rem
	record.ID = uuid.New().String()
	record.Priority = types.NormalizePriority(string(record.Priority))
	record.CreatedAt = m.now().UTC()

	plaintext, err := json.Marshal(&record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal reminder: %w", err)
	}

	if err := m.secure.Put(ctx, storage.RecordTypeReminder, record.ID, m.userID, plaintext); err != nil {
		return "", err
	}

	return record.ID, nil
}

// GetAllReminders returns every live reminder in insertion order.
func (m *Manager) GetAllReminders(ctx context.Context) ([]*types.Reminder, error) {
	plaintexts, err := m.secure.ListAll(ctx, storage.RecordTypeReminder, m.userID)
	if err != nil {
		return nil, err
	}

	reminders := make([]*types.Reminder, 0, len(plaintexts))
	for _, p := range plaintexts {
		var rem types.Reminder
		if err := json.Unmarshal(p, &rem); err != nil {
			log.Printf("vault: skipping malformed reminder record: %v", err)
			continue
		}
		reminders = append(reminders, &rem)
	}
	return reminders, nil
}

// loadContacts decrypts the full contact list, sorted by CreatedAt then
// name, caching the result until the next contact write.
func (m *Manager) loadContacts(ctx context.Context) ([]*types.Contact, error) {
	if cached, ok := m.cache.Get(contactCacheKey); ok {
		return cached, nil
	}

	plaintexts, err := m.secure.ListAll(ctx, storage.RecordTypeContact, m.userID)
	if err != nil {
		return nil, err
	}

	contacts := make([]*types.Contact, 0, len(plaintexts))
	for _, p := range plaintexts {
		var c types.Contact
		if err := json.Unmarshal(p, &c); err != nil {
			log.Printf("vault: skipping malformed contact record: %v", err)
			continue
		}
		contacts = append(contacts, &c)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		if !contacts[i].CreatedAt.Equal(contacts[j].CreatedAt) {
			return contacts[i].CreatedAt.Before(contacts[j].CreatedAt)
		}
		return contacts[i].Name < contacts[j].Name
	})

	m.cache.Add(contactCacheKey, contacts)
	return contacts, nil
}

func (m *Manager) getContact(ctx context.Context, id string) (*types.Contact, error) {
	plaintext, err := m.secure.Get(ctx, storage.RecordTypeContact, id, m.userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var c types.Contact
	if err := json.Unmarshal(plaintext, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contact %s: %w", id, err)
	}
	return &c, nil
}

// cloneContact copies a contact so callers can't mutate the cached list.
func cloneContact(c *types.Contact) *types.Contact {
	clone := *c
	if c.Dates != nil {
		clone.Dates = make(map[string]string, len(c.Dates))
		for k, v := range c.Dates {
			clone.Dates[k] = v
		}
	}
	return &clone
}
