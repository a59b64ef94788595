package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/worker"
)

// NotificationService computes recipient sets for committed transitions and
// hands best-effort jobs to the bounded worker pool. It never surfaces an
// error to the caller; failures end up in the log.
type NotificationService struct {
	users  repository.UserRepository
	queue  worker.Queue
	logger *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(users repository.UserRepository, queue worker.Queue, logger *zap.Logger) *NotificationService {
	return &NotificationService{users: users, queue: queue, logger: logger}
}

// RegisterHandlers subscribes to the transitions that notify anyone.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	dispatcher.Subscribe(events.EventTicketResolved, n.handleTicketResolved)
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	if event.Ticket.AssignedTo == nil {
		return nil
	}
	assignee, err := n.users.GetByID(ctx, *event.Ticket.AssignedTo)
	if err != nil {
		n.logger.Warn("notification recipient lookup failed",
			zap.String("user_id", *event.Ticket.AssignedTo),
			zap.Error(err))
		return nil
	}

	body := fmt.Sprintf("You have been assigned ticket: %s", event.Ticket.Title)
	n.enqueue(notify.Job{
		Kind:    notify.JobEmail,
		Address: assignee.Email,
		Subject: "Ticket Assigned",
		Body:    body,
	})
	if assignee.Phone != nil && *assignee.Phone != "" {
		n.enqueue(notify.Job{
			Kind:    notify.JobSms,
			Address: *assignee.Phone,
			Body:    body,
		})
	}
	return nil
}

func (n *NotificationService) handleTicketResolved(ctx context.Context, event events.Event) error {
	recipients := map[string]struct{}{}

	creator, err := n.users.GetByID(ctx, event.Ticket.CreatedBy)
	if err != nil {
		n.logger.Warn("notification recipient lookup failed",
			zap.String("user_id", event.Ticket.CreatedBy),
			zap.Error(err))
	} else if creator.Email != "" {
		recipients[creator.Email] = struct{}{}
	}

	staff, err := n.users.List(ctx, repository.UserFilter{
		Roles: []domain.Role{domain.RoleAdmin, domain.RoleSupportAgent},
	})
	if err != nil {
		n.logger.Warn("notification staff lookup failed", zap.Error(err))
	}
	for _, member := range staff {
		if member.Email != "" {
			recipients[member.Email] = struct{}{}
		}
	}

	subject := fmt.Sprintf("Ticket Resolved: %s", event.Ticket.Title)
	body := fmt.Sprintf("The ticket %q has been resolved.", event.Ticket.Title)
	for address := range recipients {
		n.enqueue(notify.Job{
			Kind:    notify.JobEmail,
			Address: address,
			Subject: subject,
			Body:    body,
		})
	}
	return nil
}

func (n *NotificationService) enqueue(job notify.Job) {
	if n.queue == nil {
		return
	}
	n.queue.Enqueue(job)
}
