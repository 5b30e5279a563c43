// Package memory provides process-local implementations of the repository
// contracts. One mutex guards every collection so archive and restore moves
// stay atomic across the live and archive maps.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// Store holds all collections. Reads and writes copy values so callers never
// alias stored state.
type Store struct {
	mu            sync.Mutex
	tickets       map[string]domain.Ticket
	archived      map[string]domain.ArchivedTicket
	notifications map[string]domain.Notification
	identities    map[string]domain.Identity
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		tickets:       map[string]domain.Ticket{},
		archived:      map[string]domain.ArchivedTicket{},
		notifications: map[string]domain.Notification{},
		identities:    map[string]domain.Identity{},
	}
}

// Tickets exposes the live ticket collection.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Archive exposes the archive collection.
func (s *Store) Archive() repository.ArchiveRepository { return archiveRepo{s} }

// Notifications exposes the notification collection.
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }

// Identities exposes the identity collection.
func (s *Store) Identities() repository.IdentityRepository { return identityRepo{s} }

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[ticket.ID]; ok {
		return repository.ErrConflict
	}
	if ticket.Version == 0 {
		ticket.Version = 1
	}
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	ticket.Version = current.Version + 1
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) CompareAndUpdate(_ context.Context, ticket *domain.Ticket, expected int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != expected {
		return repository.ErrVersionConflict
	}
	ticket.Version = current.Version + 1
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket, ok := r.s.tickets[strings.TrimSpace(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := ticket.Clone()
	return &out, nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	items := make([]domain.Ticket, 0, len(r.s.tickets))
	for _, ticket := range r.s.tickets {
		if filter.SubmitterEmail != nil && ticket.SubmitterEmail != *filter.SubmitterEmail {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Category != nil && ticket.Classification.Category != *filter.Category {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Classification.Priority) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ticket.Title+" "+ticket.Description), search) {
			continue
		}
		items = append(items, ticket.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return paginate(items, filter.Limit, filter.Offset), nil
}

type archiveRepo struct{ s *Store }

func (r archiveRepo) Archive(_ context.Context, archived *domain.ArchivedTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.tickets[archived.OriginalTicketID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != archived.Ticket.Version {
		return repository.ErrVersionConflict
	}
	for _, existing := range r.s.archived {
		if existing.OriginalTicketID == archived.OriginalTicketID {
			return repository.ErrConflict
		}
	}
	if _, ok := r.s.archived[archived.ID]; ok {
		return repository.ErrConflict
	}
	delete(r.s.tickets, archived.OriginalTicketID)
	r.s.archived[archived.ID] = cloneArchived(*archived)
	return nil
}

func (r archiveRepo) Restore(_ context.Context, archivedID string, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.archived[archivedID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.s.tickets[ticket.ID]; ok {
		return repository.ErrConflict
	}
	delete(r.s.archived, archivedID)
	r.s.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r archiveRepo) GetByID(_ context.Context, id string) (*domain.ArchivedTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	archived, ok := r.s.archived[strings.TrimSpace(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneArchived(archived)
	return &out, nil
}

func (r archiveRepo) List(_ context.Context, filter repository.ArchiveFilter) ([]domain.ArchivedTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := make([]domain.ArchivedTicket, 0, len(r.s.archived))
	for _, archived := range r.s.archived {
		if filter.SubmitterEmail != nil && archived.Ticket.SubmitterEmail != *filter.SubmitterEmail {
			continue
		}
		if filter.ArchivedBy != nil && archived.ArchivedBy != *filter.ArchivedBy {
			continue
		}
		if filter.ArchivedBefore != nil && archived.ArchivedAt.After(*filter.ArchivedBefore) {
			continue
		}
		items = append(items, cloneArchived(archived))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].ArchivedAt.Equal(items[j].ArchivedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].ArchivedAt.After(items[j].ArchivedAt)
	})
	return paginate(items, filter.Limit, filter.Offset), nil
}

func (r archiveRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.archived[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.archived, id)
	return nil
}

func (r archiveRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var removed int64
	for id, archived := range r.s.archived {
		if archived.ArchivedAt.Before(cutoff) {
			delete(r.s.archived, id)
			removed++
		}
	}
	return removed, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.notifications[n.ID]; ok {
		return repository.ErrConflict
	}
	r.s.notifications[n.ID] = cloneNotification(*n)
	return nil
}

func (r notificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[strings.TrimSpace(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := cloneNotification(n)
	return &out, nil
}

func (r notificationRepo) Update(_ context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.notifications[n.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.Read = n.Read
	current.ReadAt = copyTime(n.ReadAt)
	r.s.notifications[n.ID] = current
	return nil
}

func (r notificationRepo) ListByRecipient(_ context.Context, email string, limit int) ([]domain.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := make([]domain.Notification, 0)
	for _, n := range r.s.notifications {
		if n.RecipientEmail == email {
			items = append(items, cloneNotification(n))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return paginate(items, limit, 0), nil
}

func (r notificationRepo) CountUnread(_ context.Context, email string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if n.RecipientEmail == email && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r notificationRepo) ExistsForTicket(_ context.Context, email string, kind domain.NotificationType, ticketID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, n := range r.s.notifications {
		if n.RecipientEmail == email && n.Type == kind && n.TicketID == ticketID {
			return true, nil
		}
	}
	return false, nil
}

type identityRepo struct{ s *Store }

func (r identityRepo) Upsert(_ context.Context, identity *domain.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.identities {
		if id != identity.ID && strings.EqualFold(existing.Email, identity.Email) {
			return repository.ErrConflict
		}
	}
	if existing, ok := r.s.identities[identity.ID]; ok {
		identity.CreatedAt = existing.CreatedAt
	} else if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	r.s.identities[identity.ID] = *identity
	return nil
}

func (r identityRepo) GetByID(_ context.Context, id string) (*domain.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	identity, ok := r.s.identities[strings.TrimSpace(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &identity, nil
}

func (r identityRepo) GetByEmail(_ context.Context, email string) (*domain.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, identity := range r.s.identities {
		if strings.EqualFold(identity.Email, strings.TrimSpace(email)) {
			out := identity
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r identityRepo) ListByRole(_ context.Context, roles ...domain.Role) ([]domain.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := make([]domain.Identity, 0)
	for _, identity := range r.s.identities {
		for _, role := range roles {
			if identity.Role == role {
				items = append(items, identity)
				break
			}
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Email < items[j].Email })
	return items, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func containsStatus(list []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, candidate := range list {
		if candidate == priority {
			return true
		}
	}
	return false
}

func cloneArchived(a domain.ArchivedTicket) domain.ArchivedTicket {
	a.Ticket = a.Ticket.Clone()
	a.OriginalResolvedAt = copyTime(a.OriginalResolvedAt)
	return a
}

func cloneNotification(n domain.Notification) domain.Notification {
	n.ReadAt = copyTime(n.ReadAt)
	return n
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
