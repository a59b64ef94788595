package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// memStore is an in-memory repository.Store. InTx snapshots state before the
// callback and restores it on error, mirroring a rolled-back transaction.
type memStore struct {
	mu      sync.Mutex
	users   map[string]domain.User
	tickets map[string]domain.Ticket
	audits  []domain.AuditRecord
	clock   time.Time

	// when set, every audit append fails with this error
	auditErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]domain.User{},
		tickets: map[string]domain.Ticket{},
		clock:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) addUser(name string, role domain.Role) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := domain.User{
		ID:    uuid.NewString(),
		Name:  name,
		Email: name + "@example.com",
		Role:  role,
	}
	m.users[user.ID] = user
	return user
}

func (m *memStore) getTicket(id string) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id]
}

func (m *memStore) auditRecords() []domain.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditRecord, len(m.audits))
	copy(out, m.audits)
	return out
}

func (m *memStore) Repos() repository.Repositories {
	return repository.Repositories{
		Users:   &memUserRepo{store: m},
		Tickets: &memTicketRepo{store: m},
		Audits:  &memAuditRepo{store: m},
	}
}

func (m *memStore) InTx(_ context.Context, fn func(repository.Repositories) error) error {
	m.mu.Lock()
	usersSnap := make(map[string]domain.User, len(m.users))
	for k, v := range m.users {
		usersSnap[k] = v
	}
	ticketsSnap := make(map[string]domain.Ticket, len(m.tickets))
	for k, v := range m.tickets {
		ticketsSnap[k] = v
	}
	auditsSnap := make([]domain.AuditRecord, len(m.audits))
	copy(auditsSnap, m.audits)
	m.mu.Unlock()

	if err := fn(m.Repos()); err != nil {
		m.mu.Lock()
		m.users = usersSnap
		m.tickets = ticketsSnap
		m.audits = auditsSnap
		m.mu.Unlock()
		return err
	}
	return nil
}

type memTicketRepo struct {
	store *memStore
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket.ID = uuid.NewString()
	now := r.store.tick()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.store.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) Update(_ context.Context, ticket *domain.Ticket, expectedVersion time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if !current.UpdatedAt.Equal(expectedVersion) {
		return repository.ErrVersionConflict
	}
	ticket.UpdatedAt = r.store.tick()
	r.store.tickets[ticket.ID] = *ticket
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ticket, ok := r.store.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := ticket
	return &copied, nil
}

func (r *memTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.store.tickets {
		if filter.CreatedBy != nil && ticket.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		out = append(out, ticket)
	}
	return out, nil
}

func (r *memTicketRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.store.tickets, id)
	return nil
}

type memUserRepo struct {
	store *memStore
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user.ID = uuid.NewString()
	now := r.store.tick()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.store.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) Update(_ context.Context, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = r.store.tick()
	r.store.users[user.ID] = *user
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := user
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.Email == email {
			copied := user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.User
	for _, user := range r.store.users {
		if len(filter.Roles) > 0 {
			match := false
			for _, role := range filter.Roles {
				if user.Role == role {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, user)
	}
	return out, nil
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.store.users, id)
	return nil
}

type memAuditRepo struct {
	store *memStore
}

func (r *memAuditRepo) Create(_ context.Context, record *domain.AuditRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.auditErr != nil {
		return r.store.auditErr
	}
	record.ID = uuid.NewString()
	record.CreatedAt = r.store.tick()
	r.store.audits = append(r.store.audits, *record)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, _, _ int) ([]domain.AuditRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]domain.AuditRecord, len(r.store.audits))
	copy(out, r.store.audits)
	return out, nil
}

// capturingDispatcher records every published event.
type capturingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *capturingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *capturingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *capturingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.Event, len(d.events))
	copy(out, d.events)
	return out
}
