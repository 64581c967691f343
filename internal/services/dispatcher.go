package services

import (
	"context"
	"database/sql"
	"time"
	"unicode/utf8"

	"carelink/internal/domain/conversation"
	"carelink/internal/domain/message"
	"carelink/internal/domain/notification"
	"carelink/internal/events"
	"carelink/internal/repository"
	care_errors "carelink/pkg/errors"
	"carelink/pkg/logger"

	"github.com/google/uuid"
)

// ConnectionChecker is the registry view the dispatcher needs: a missing
// entry simply means "not connected" (the registry is volatile by design).
type ConnectionChecker interface {
	IsConnected(userID uuid.UUID) bool
}

// PushTransport attempts live delivery to one of a user's connections and
// returns the connection ID that took the frame.
type PushTransport interface {
	Push(ctx context.Context, userID uuid.UUID, payload []byte) (connectionID string, err error)
}

// Mailer is the fire-and-forget email side-channel.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, html, text string) error
}

type NotificationInput struct {
	Type         string
	Title        string
	Message      string
	IsActionable bool
	ActionURL    string
	ExpiresAt    *time.Time
}

type EmailContext struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// NotificationDispatcher fans events out to recipients: durable write first,
// then live push when the recipient is connected, degrading to the poll path
// otherwise. Every attempt lands in the delivery log.
type NotificationDispatcher struct {
	repo        repository.NotificationRepository
	users       repository.UserRepository
	registry    ConnectionChecker
	transport   PushTransport
	mailer      Mailer
	publisher   events.Publisher
	log         *logger.Logger
	pushTimeout time.Duration
	clock       func() time.Time
}

func NewNotificationDispatcher(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	reg ConnectionChecker,
	transport PushTransport,
	mailer Mailer,
	publisher events.Publisher,
	log *logger.Logger,
	pushTimeout time.Duration,
) *NotificationDispatcher {
	if pushTimeout <= 0 {
		pushTimeout = 2 * time.Second
	}
	return &NotificationDispatcher{
		repo:        repo,
		users:       users,
		registry:    reg,
		transport:   transport,
		mailer:      mailer,
		publisher:   publisher,
		log:         log,
		pushTimeout: pushTimeout,
		clock:       time.Now,
	}
}

// Dispatch creates the durable notification and attempts delivery. Only the
// durable write can fail the call: push failure degrades to the poll path,
// email failure is swallowed. "Delivery recorded but notification missing"
// can never occur because the row commits before any attempt.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, recipientID uuid.UUID, in NotificationInput, email *EmailContext) (notification.Notification, error) {
	if !notification.ValidType(in.Type) || in.Title == "" {
		return notification.Notification{}, care_errors.ErrInvalidInput
	}

	start := d.clock()
	n := notification.Notification{
		ID:           uuid.New(),
		RecipientID:  recipientID,
		Type:         in.Type,
		Title:        in.Title,
		Message:      in.Message,
		IsActionable: in.IsActionable,
		CreatedAt:    start,
	}
	if in.ActionURL != "" {
		n.ActionURL = sql.NullString{String: in.ActionURL, Valid: true}
	}
	if in.ExpiresAt != nil {
		n.ExpiresAt = sql.NullTime{Time: *in.ExpiresAt, Valid: true}
	}

	if err := d.repo.Create(ctx, &n); err != nil {
		return notification.Notification{}, err
	}

	d.attemptDelivery(ctx, n, start)

	if email != nil && d.mailer != nil {
		if err := d.mailer.SendEmail(ctx, email.To, email.Subject, email.HTML, email.Text); err != nil {
			d.log.Warnf("notification %s: email side-channel failed: %v", n.ID, err)
		}
	}

	return n, nil
}

func (d *NotificationDispatcher) attemptDelivery(ctx context.Context, n notification.Notification, start time.Time) {
	entry := notification.DeliveryLog{
		ID:             uuid.New(),
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		CreatedAt:      d.clock(),
	}

	if !d.registry.IsConnected(n.RecipientID) {
		entry.Status = notification.DeliveryPending
		entry.WasConnected = false
		d.writeLog(ctx, entry)
		return
	}

	entry.WasConnected = true
	payload, err := events.Encode(events.TypeNotification, "", n.RecipientID.String(), n)
	if err == nil {
		pushCtx, cancel := context.WithTimeout(ctx, d.pushTimeout)
		defer cancel()
		var connID string
		connID, err = d.transport.Push(pushCtx, n.RecipientID, payload)
		if err == nil {
			now := d.clock()
			entry.Status = notification.DeliveryDelivered
			entry.ConnectionID = sql.NullString{String: connID, Valid: true}
			entry.LatencyMs = sql.NullInt64{Int64: now.Sub(start).Milliseconds(), Valid: true}
			entry.DeliveredAt = sql.NullTime{Time: now, Valid: true}
			d.writeLog(ctx, entry)
			d.publishEvent(ctx, n, payload)
			return
		}
	}

	// Push failed or timed out: no in-line retry, the notification is
	// durable and the recipient's next poll picks it up.
	entry.Status = notification.DeliveryFailed
	entry.Error = sql.NullString{String: err.Error(), Valid: true}
	d.writeLog(ctx, entry)
	d.log.Warnf("notification %s: push to %s failed, degrading to poll: %v", n.ID, n.RecipientID, err)
}

func (d *NotificationDispatcher) writeLog(ctx context.Context, entry notification.DeliveryLog) {
	if err := d.repo.CreateDeliveryLog(ctx, &entry); err != nil {
		d.log.Errorf("notification %s: delivery log write failed: %v", entry.NotificationID, err)
	}
}

func (d *NotificationDispatcher) publishEvent(ctx context.Context, n notification.Notification, payload []byte) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, events.UserChannel(n.RecipientID.String()), payload); err != nil {
		d.log.Warnf("notification %s: bus publish failed: %v", n.ID, err)
	}
}

// DispatchFamily fans out to every active family member except the excluded
// ones. Each recipient dispatch is independent: one failure is logged and
// the rest proceed.
func (d *NotificationDispatcher) DispatchFamily(ctx context.Context, familyID uuid.UUID, in NotificationInput, email *EmailContext, excludeUserIDs []uuid.UUID) ([]notification.Notification, error) {
	members, err := d.users.GetFamilyMembers(ctx, familyID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[uuid.UUID]struct{}, len(excludeUserIDs))
	for _, id := range excludeUserIDs {
		excluded[id] = struct{}{}
	}

	var dispatched []notification.Notification
	for _, member := range members {
		if _, skip := excluded[member.ID]; skip {
			continue
		}
		n, err := d.Dispatch(ctx, member.ID, in, email)
		if err != nil {
			d.log.Errorf("family %s: dispatch to %s failed: %v", familyID, member.ID, err)
			continue
		}
		dispatched = append(dispatched, n)
	}
	return dispatched, nil
}

// MessageCreated implements MessageNotifier: a MESSAGE notification per
// recipient of a newly stored message. Errors are logged, never returned;
// the message itself is already committed.
func (d *NotificationDispatcher) MessageCreated(ctx context.Context, conv conversation.Conversation, msg message.Message, recipients []uuid.UUID) {
	title := "New message"
	if conv.Title.Valid && conv.Title.String != "" {
		title = "New message in " + conv.Title.String
	}
	body := truncateBody(msg.Content, 140)
	in := NotificationInput{
		Type:         notification.TypeMessage,
		Title:        title,
		Message:      body,
		IsActionable: true,
		ActionURL:    "/conversations/" + conv.ID.String(),
	}
	for _, recipientID := range recipients {
		if _, err := d.Dispatch(ctx, recipientID, in, nil); err != nil {
			d.log.Errorf("message %s: notification for %s failed: %v", msg.ID, recipientID, err)
		}
	}
}

// Poll returns the recipient's notifications and flips their PENDING
// delivery rows to POLLED. Expired notifications are filtered out.
func (d *NotificationDispatcher) Poll(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	items, total, err := d.repo.ListForRecipient(ctx, recipientID, unreadOnly, d.clock(), page, limit)
	if err != nil {
		return nil, 0, err
	}
	if _, err := d.repo.MarkPendingPolled(ctx, recipientID, d.clock()); err != nil {
		d.log.Warnf("poll %s: marking pending deliveries polled failed: %v", recipientID, err)
	}
	return items, total, nil
}

// MarkRead is idempotent per notification.
func (d *NotificationDispatcher) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	return d.repo.MarkRead(ctx, id, recipientID, d.clock())
}

func (d *NotificationDispatcher) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	return d.repo.MarkAllRead(ctx, recipientID, d.clock())
}

// truncateBody caps s at max bytes without splitting a UTF-8 rune.
func truncateBody(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
