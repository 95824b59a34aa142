package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kinvault/kinvault/internal/storage"
	"github.com/kinvault/kinvault/internal/triggers"
	"github.com/kinvault/kinvault/internal/vault"
	"github.com/kinvault/kinvault/pkg/types"
)

// addContacts is the batch add_contact node. Every submitted contact is
// resolved by name first: a hit becomes a field merge, a miss becomes a
// create, and a per-item failure is recorded without aborting the rest.
func (e *Engine) addContacts(ctx context.Context, manager *vault.Manager, state *State) error {
	entries, ok := state.Intent.Payload["contacts"].([]interface{})
	if !ok || len(entries) == 0 {
		return fmt.Errorf("%w: a contacts list is required", vault.ErrValidation)
	}

	var added, updated, failed []string

	for i, raw := range entries {
		item, ok := raw.(map[string]interface{})
		if !ok {
			failed = append(failed, fmt.Sprintf("entry %d: not a contact record", i+1))
			continue
		}

		contact := contactFromPayload(item)
		if strings.TrimSpace(contact.Name) == "" {
			failed = append(failed, fmt.Sprintf("entry %d: name is required", i+1))
			continue
		}

		existing, err := manager.FindContactByName(ctx, contact.Name)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", contact.Name, err))
			continue
		}

		if existing != nil {
			fields := vault.MergedFields(existing, contact)
			merged, err := manager.UpdateContact(ctx, existing, contact)
			if err != nil {
				failed = append(failed, fmt.Sprintf("%s: %v", contact.Name, err))
				continue
			}
			label := merged.Name
			if len(fields) > 0 {
				label = fmt.Sprintf("%s (%s)", merged.Name, strings.Join(fields, ", "))
			}
			updated = append(updated, label)
			state.Data = append(state.Data, contactResult(merged, "updated"))
			continue
		}

		if _, err := manager.StoreContact(ctx, contact); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", contact.Name, err))
			continue
		}
		added = append(added, contact.Name)
		// Re-read so the row reflects what was persisted (defaulted
		// priority, creation timestamp), matching the updated rows.
		if stored, err := manager.FindContactByName(ctx, contact.Name); err == nil && stored != nil {
			contact = stored
		}
		state.Data = append(state.Data, contactResult(contact, "created"))
	}

	if len(added) == 0 && len(updated) == 0 {
		return fmt.Errorf("%w: %s", vault.ErrValidation, strings.Join(failed, "; "))
	}

	var clauses []string
	if len(added) > 0 {
		clauses = append(clauses, fmt.Sprintf("Successfully added %d contact(s): %s", len(added), strings.Join(added, ", ")))
	}
	if len(updated) > 0 {
		clauses = append(clauses, fmt.Sprintf("Updated %d contact(s): %s", len(updated), strings.Join(updated, ", ")))
	}
	if len(failed) > 0 {
		clauses = append(clauses, fmt.Sprintf("Failed to add %d contact(s): %s", len(failed), strings.Join(failed, "; ")))
	}
	state.Message = strings.Join(clauses, ". ")

	switch {
	case len(added) > 0 && len(updated) == 0 && len(failed) == 0:
		state.ActionTaken = BatchAddSuccess
	case len(updated) > 0 && len(added) == 0 && len(failed) == 0:
		state.ActionTaken = BatchUpdateSuccess
	case len(added) > 0 && len(failed) > 0 && len(updated) == 0:
		state.ActionTaken = BatchAddPartial
	default:
		state.ActionTaken = BatchAddMixed
	}
	return nil
}

func (e *Engine) addMemory(ctx context.Context, manager *vault.Manager, state *State) error {
	memory := &types.Memory{
		ContactName: stringField(state.Intent.Payload, "contact_name"),
		Summary:     stringField(state.Intent.Payload, "summary"),
		Location:    stringField(state.Intent.Payload, "location"),
		Date:        stringField(state.Intent.Payload, "date"),
		Tags:        stringSlice(state.Intent.Payload["tags"]),
	}

	id, err := manager.StoreMemory(ctx, memory)
	if err != nil {
		return err
	}

	row := toMap(memory)
	row["id"] = id
	state.Data = append(state.Data, row)
	state.Message = fmt.Sprintf("Memory saved for %s.", memory.ContactName)
	return nil
}

func (e *Engine) addReminder(ctx context.Context, manager *vault.Manager, state *State) error {
	reminder := &types.Reminder{
		ContactName: stringField(state.Intent.Payload, "contact_name"),
		Title:       stringField(state.Intent.Payload, "title"),
		Date:        stringField(state.Intent.Payload, "date"),
		Priority:    types.Priority(stringField(state.Intent.Payload, "priority")),
	}

	id, err := manager.StoreReminder(ctx, reminder)
	if err != nil {
		return err
	}

	row := toMap(reminder)
	row["id"] = id
	state.Data = append(state.Data, row)
	state.Message = fmt.Sprintf("Reminder added for %s: %s.", reminder.ContactName, reminder.Title)
	return nil
}

func (e *Engine) showContacts(ctx context.Context, manager *vault.Manager, state *State) error {
	contacts, err := manager.GetAllContacts(ctx)
	if err != nil {
		return err
	}

	for _, c := range contacts {
		state.Data = append(state.Data, toMap(c))
	}
	if len(contacts) == 0 {
		state.Message = "No contacts stored yet."
	} else {
		state.Message = fmt.Sprintf("You have %d contact(s).", len(contacts))
	}
	return nil
}

func (e *Engine) showMemories(ctx context.Context, manager *vault.Manager, state *State) error {
	name := stringField(state.Intent.Payload, "contact_name")

	var memories []*types.Memory
	var err error
	if name != "" {
		memories, err = manager.GetMemoriesForContact(ctx, name)
	} else {
		memories, err = manager.GetAllMemories(ctx)
	}
	if err != nil {
		return err
	}

	for _, m := range memories {
		state.Data = append(state.Data, toMap(m))
	}
	switch {
	case len(memories) == 0 && name != "":
		state.Message = fmt.Sprintf("No memories stored for %s yet.", name)
	case len(memories) == 0:
		state.Message = "No memories stored yet."
	case name != "":
		state.Message = fmt.Sprintf("Found %d memorie(s) for %s.", len(memories), name)
	default:
		state.Message = fmt.Sprintf("You have %d memorie(s).", len(memories))
	}
	return nil
}

func (e *Engine) showReminders(ctx context.Context, manager *vault.Manager, state *State) error {
	reminders, err := manager.GetAllReminders(ctx)
	if err != nil {
		return err
	}

	for _, r := range reminders {
		state.Data = append(state.Data, toMap(r))
	}
	if len(reminders) == 0 {
		state.Message = "No reminders stored yet."
	} else {
		state.Message = fmt.Sprintf("You have %d reminder(s).", len(reminders))
	}
	return nil
}

func (e *Engine) searchContacts(ctx context.Context, manager *vault.Manager, state *State) error {
	query := stringField(state.Intent.Payload, "query")
	if query == "" {
		return fmt.Errorf("%w: a search query is required", vault.ErrValidation)
	}

	matches, err := manager.SearchContacts(ctx, query)
	if err != nil {
		return err
	}

	for _, c := range matches {
		state.Data = append(state.Data, toMap(c))
	}
	if len(matches) == 0 {
		state.Message = fmt.Sprintf("No contacts matching %q.", query)
	} else {
		state.Message = fmt.Sprintf("Found %d contact(s) matching %q.", len(matches), query)
	}
	return nil
}

func (e *Engine) getContactDetails(ctx context.Context, manager *vault.Manager, state *State) error {
	name := stringField(state.Intent.Payload, "contact_name")
	if name == "" {
		return fmt.Errorf("%w: a contact name is required", vault.ErrValidation)
	}

	contact, err := manager.FindContactByName(ctx, name)
	if err != nil {
		return err
	}
	if contact == nil {
		return fmt.Errorf("%w: no contact matching %q", storage.ErrNotFound, name)
	}

	memories, err := manager.GetMemoriesForContact(ctx, contact.Name)
	if err != nil {
		return err
	}

	state.Data = append(state.Data, toMap(contact))
	for _, m := range memories {
		state.Data = append(state.Data, toMap(m))
	}
	state.Message = fmt.Sprintf("Here's what I have for %s (%d memories).", contact.Name, len(memories))
	return nil
}

func (e *Engine) addDate(ctx context.Context, manager *vault.Manager, state *State) error {
	name := stringField(state.Intent.Payload, "contact_name")
	dateType := stringField(state.Intent.Payload, "date_type")
	date := stringField(state.Intent.Payload, "date")
	if name == "" || dateType == "" || date == "" {
		return fmt.Errorf("%w: contact name, date type and date are required", vault.ErrValidation)
	}

	contact, err := manager.FindContactByName(ctx, name)
	if err != nil {
		return err
	}
	if contact == nil {
		return fmt.Errorf("%w: no contact matching %q", storage.ErrNotFound, name)
	}

	merged, err := manager.UpdateContact(ctx, contact, &types.Contact{
		Dates: map[string]string{dateType: date},
	})
	if err != nil {
		return err
	}

	state.Data = append(state.Data, toMap(merged))
	state.Message = fmt.Sprintf("Added %s (%s) for %s.", dateType, date, merged.Name)
	return nil
}

func (e *Engine) showUpcomingDates(ctx context.Context, manager *vault.Manager, state *State) error {
	contacts, err := manager.GetAllContacts(ctx)
	if err != nil {
		return err
	}

	var upcoming []types.ProactiveTrigger
	for _, t := range triggers.ScanTriggers(contacts, e.now(), e.listingWindow) {
		if t.Type == types.TriggerUpcomingEvent {
			upcoming = append(upcoming, t)
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DaysUntil < upcoming[j].DaysUntil
	})

	for _, t := range upcoming {
		state.Data = append(state.Data, triggerToMap(t))
	}
	if len(upcoming) == 0 {
		state.Message = fmt.Sprintf("No upcoming dates in the next %d days.", e.listingWindow)
	} else {
		state.Message = fmt.Sprintf("You have %d upcoming date(s) in the next %d days.", len(upcoming), e.listingWindow)
	}
	return nil
}

func (e *Engine) getAdvice(ctx context.Context, manager *vault.Manager, state *State) error {
	question := stringField(state.Intent.Payload, "question")
	if question == "" {
		return fmt.Errorf("%w: a question is required", vault.ErrValidation)
	}

	var b strings.Builder
	b.WriteString(question)
	if name := stringField(state.Intent.Payload, "contact_name"); name != "" {
		contact, err := manager.FindContactByName(ctx, name)
		if err != nil {
			return err
		}
		if contact != nil {
			fmt.Fprintf(&b, "\n\nContext about %s: priority %s, last heard from %d day(s) ago.",
				contact.Name, contact.Priority, triggers.DaysSinceContact(contact, e.now()))
			if contact.Notes != "" {
				fmt.Fprintf(&b, " Notes: %s", contact.Notes)
			}
		}
	}

	advice, err := e.advisor.Generate(ctx, b.String())
	if err != nil || strings.TrimSpace(advice) == "" {
		advice = "I can't reach the advice service right now, but a short personal message asking how they're doing is always a good start."
	}
	state.Message = advice
	return nil
}

// contactFromPayload builds a Contact from one parsed intent entry.
// Unknown keys are ignored; a nested "dates" object is carried through.
func contactFromPayload(item map[string]interface{}) *types.Contact {
	contact := &types.Contact{
		Name:     stringField(item, "name"),
		Email:    stringField(item, "email"),
		Phone:    stringField(item, "phone"),
		Company:  stringField(item, "company"),
		Location: stringField(item, "location"),
		Notes:    stringField(item, "notes"),
		Priority: types.Priority(stringField(item, "priority")),
	}
	if dates, ok := item["dates"].(map[string]interface{}); ok {
		contact.Dates = make(map[string]string, len(dates))
		for k, v := range dates {
			if s, ok := v.(string); ok {
				contact.Dates[k] = s
			}
		}
	}
	return contact
}

func contactResult(c *types.Contact, action string) map[string]interface{} {
	row := toMap(c)
	row["action"] = action
	return row
}

func stringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	s, _ := payload[key].(string)
	return strings.TrimSpace(s)
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func triggerToMap(t types.ProactiveTrigger) map[string]interface{} {
	return toMap(&t)
}

// toMap renders a typed record into the generic row shape CommandResult
// carries, via its JSON form so field names match the wire tags.
func toMap(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}
