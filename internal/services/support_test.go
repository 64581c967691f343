package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"carelink/internal/domain/conversation"
	"carelink/internal/domain/message"
	"carelink/internal/domain/notification"
	"carelink/internal/domain/user"
	care_errors "carelink/pkg/errors"

	"github.com/google/uuid"
)

// In-memory repository fakes. They mirror the Postgres implementations'
// observable behavior (error mapping, left_at filtering, read_at keeping)
// closely enough for service-level tests.

type fakeConversationRepo struct {
	convs        map[uuid.UUID]*conversation.Conversation
	participants map[uuid.UUID][]conversation.Participant
	byDirectKey  map[string]uuid.UUID

	// hideDirectKeyOnce makes the next GetByDirectKey miss, simulating the
	// window where a concurrent creator has not committed yet.
	hideDirectKeyOnce bool
	// failCreateWith, when set, fails the next Create once.
	failCreateWith error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		convs:        make(map[uuid.UUID]*conversation.Conversation),
		participants: make(map[uuid.UUID][]conversation.Participant),
		byDirectKey:  make(map[string]uuid.UUID),
	}
}

func (f *fakeConversationRepo) Create(ctx context.Context, c *conversation.Conversation, participants []conversation.Participant) error {
	if f.failCreateWith != nil {
		err := f.failCreateWith
		f.failCreateWith = nil
		return err
	}
	if c.DirectKey.Valid {
		if _, exists := f.byDirectKey[c.DirectKey.String]; exists {
			return care_errors.ErrAlreadyExists
		}
		f.byDirectKey[c.DirectKey.String] = c.ID
	}
	stored := *c
	f.convs[c.ID] = &stored
	for i := range participants {
		participants[i].ConversationID = c.ID
	}
	f.participants[c.ID] = append([]conversation.Participant(nil), participants...)
	return nil
}

func (f *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return conversation.Conversation{}, care_errors.ErrNotFound
	}
	out := *c
	out.Participants = append([]conversation.Participant(nil), f.participants[id]...)
	return out, nil
}

func (f *fakeConversationRepo) GetByDirectKey(ctx context.Context, key string) (conversation.Conversation, error) {
	if f.hideDirectKeyOnce {
		f.hideDirectKeyOnce = false
		return conversation.Conversation{}, care_errors.ErrNotFound
	}
	id, ok := f.byDirectKey[key]
	if !ok {
		return conversation.Conversation{}, care_errors.ErrNotFound
	}
	c, err := f.GetByID(ctx, id)
	if err != nil {
		return conversation.Conversation{}, err
	}
	// The Postgres lookup filters is_active; the unique index does not.
	if !c.IsActive {
		return conversation.Conversation{}, care_errors.ErrNotFound
	}
	return c, nil
}

func (f *fakeConversationRepo) Update(ctx context.Context, c conversation.Conversation) error {
	old, ok := f.convs[c.ID]
	if !ok {
		return care_errors.ErrNotFound
	}
	if old.DirectKey.Valid && !c.DirectKey.Valid {
		delete(f.byDirectKey, old.DirectKey.String)
	}
	stored := c
	stored.Participants = nil
	f.convs[c.ID] = &stored
	return nil
}

func (f *fakeConversationRepo) TouchUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	c, ok := f.convs[id]
	if !ok {
		return care_errors.ErrNotFound
	}
	c.UpdatedAt = at
	return nil
}

func (f *fakeConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID, convType string, page, limit int) ([]conversation.Conversation, int64, error) {
	var out []conversation.Conversation
	for id, c := range f.convs {
		if convType != "" && c.Type != convType {
			continue
		}
		for _, p := range f.participants[id] {
			if p.UserID == userID && p.Active() {
				out = append(out, *c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	total := int64(len(out))
	start := (page - 1) * limit
	if start > len(out) {
		start = len(out)
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (f *fakeConversationRepo) AddParticipant(ctx context.Context, p *conversation.Participant) error {
	f.participants[p.ConversationID] = append(f.participants[p.ConversationID], *p)
	return nil
}

func (f *fakeConversationRepo) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	for _, p := range f.participants[conversationID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return conversation.Participant{}, care_errors.ErrNotFound
}

func (f *fakeConversationRepo) UpdateParticipant(ctx context.Context, p conversation.Participant) error {
	list := f.participants[p.ConversationID]
	for i := range list {
		if list[i].UserID == p.UserID {
			list[i] = p
			return nil
		}
	}
	return care_errors.ErrNotFound
}

func (f *fakeConversationRepo) GetActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	var out []conversation.Participant
	for _, p := range f.participants[conversationID] {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeConversationRepo) SetParticipantLeft(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	list := f.participants[conversationID]
	for i := range list {
		if list[i].UserID == userID && list[i].Active() {
			list[i].LeftAt.Time = at
			list[i].LeftAt.Valid = true
			return nil
		}
	}
	return care_errors.ErrNotFound
}

type fakeMessageRepo struct {
	messages map[uuid.UUID]*message.Message
	order    []uuid.UUID
	statuses map[uuid.UUID]map[uuid.UUID]*message.UserStatus // messageID -> userID
	convRepo *fakeConversationRepo
}

func newFakeMessageRepo(convRepo *fakeConversationRepo) *fakeMessageRepo {
	return &fakeMessageRepo{
		messages: make(map[uuid.UUID]*message.Message),
		statuses: make(map[uuid.UUID]map[uuid.UUID]*message.UserStatus),
		convRepo: convRepo,
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, m *message.Message, statuses []message.UserStatus) error {
	stored := *m
	f.messages[m.ID] = &stored
	f.order = append(f.order, m.ID)
	f.statuses[m.ID] = make(map[uuid.UUID]*message.UserStatus)
	for i := range statuses {
		statuses[i].MessageID = m.ID
		statuses[i].ConversationID = m.ConversationID
		s := statuses[i]
		f.statuses[m.ID][s.UserID] = &s
	}
	if f.convRepo != nil {
		_ = f.convRepo.TouchUpdatedAt(ctx, m.ConversationID, m.CreatedAt)
	}
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	m, ok := f.messages[id]
	if !ok {
		return message.Message{}, care_errors.ErrNotFound
	}
	return *m, nil
}

func (f *fakeMessageRepo) Update(ctx context.Context, m message.Message) error {
	if _, ok := f.messages[m.ID]; !ok {
		return care_errors.ErrNotFound
	}
	stored := m
	f.messages[m.ID] = &stored
	return nil
}

func (f *fakeMessageRepo) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, textFilter string, page, limit int) ([]message.Message, int64, error) {
	var out []message.Message
	for _, id := range f.order {
		m := f.messages[id]
		if m.ConversationID != conversationID || m.IsDeleted {
			continue
		}
		if textFilter != "" && !strings.Contains(strings.ToLower(m.Content), strings.ToLower(textFilter)) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	start := (page - 1) * limit
	if start > len(out) {
		start = len(out)
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (f *fakeMessageRepo) MarkRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) error {
	s, ok := f.statuses[messageID][userID]
	if !ok || s.Status == message.StatusRead {
		return nil
	}
	s.Status = message.StatusRead
	s.ReadAt.Time = at
	s.ReadAt.Valid = true
	s.UpdatedAt = at
	return nil
}

func (f *fakeMessageRepo) MarkAllRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	for _, byUser := range f.statuses {
		s, ok := byUser[userID]
		if !ok || s.ConversationID != conversationID || s.Status == message.StatusRead {
			continue
		}
		s.Status = message.StatusRead
		s.ReadAt.Time = at
		s.ReadAt.Valid = true
		s.UpdatedAt = at
	}
	return nil
}

func (f *fakeMessageRepo) GetStatus(ctx context.Context, messageID, userID uuid.UUID) (message.UserStatus, error) {
	s, ok := f.statuses[messageID][userID]
	if !ok {
		return message.UserStatus{}, care_errors.ErrNotFound
	}
	return *s, nil
}

func (f *fakeMessageRepo) UnreadCount(ctx context.Context, conversationID, userID uuid.UUID) (int64, error) {
	var count int64
	for _, byUser := range f.statuses {
		if s, ok := byUser[userID]; ok && s.ConversationID == conversationID && s.Status != message.StatusRead {
			count++
		}
	}
	return count, nil
}

type fakeNotificationRepo struct {
	notifications []*notification.Notification
	logs          []*notification.DeliveryLog
	createErr     error
	createErrFor  map[uuid.UUID]error
	logErr        error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	if err, ok := f.createErrFor[n.RecipientID]; ok {
		return err
	}
	stored := *n
	f.notifications = append(f.notifications, &stored)
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error) {
	for _, n := range f.notifications {
		if n.ID == id {
			return *n, nil
		}
	}
	return notification.Notification{}, care_errors.ErrNotFound
}

func (f *fakeNotificationRepo) ListForRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, now time.Time, page, limit int) ([]notification.Notification, int64, error) {
	var out []notification.Notification
	for _, n := range f.notifications {
		if n.RecipientID != recipientID || n.Expired(now) {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	return out, int64(len(out)), nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error {
	for _, n := range f.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			if !n.IsRead {
				n.IsRead = true
				n.ReadAt.Time = at
				n.ReadAt.Valid = true
			}
			return nil
		}
	}
	return care_errors.ErrNotFound
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, recipientID uuid.UUID, at time.Time) error {
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			n.ReadAt.Time = at
			n.ReadAt.Valid = true
		}
	}
	return nil
}

func (f *fakeNotificationRepo) CreateDeliveryLog(ctx context.Context, l *notification.DeliveryLog) error {
	if f.logErr != nil {
		return f.logErr
	}
	stored := *l
	f.logs = append(f.logs, &stored)
	return nil
}

func (f *fakeNotificationRepo) MarkPendingPolled(ctx context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	var flipped int64
	for _, l := range f.logs {
		if l.RecipientID == recipientID && l.Status == notification.DeliveryPending {
			l.Status = notification.DeliveryPolled
			l.DeliveredAt.Time = at
			l.DeliveredAt.Valid = true
			flipped++
		}
	}
	return flipped, nil
}

func (f *fakeNotificationRepo) DeliveryStats(ctx context.Context, since time.Time) (notification.DeliveryStats, error) {
	var stats notification.DeliveryStats
	var sum, n int64
	for _, l := range f.logs {
		if l.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		switch l.Status {
		case notification.DeliveryDelivered:
			stats.Delivered++
		case notification.DeliveryPolled:
			stats.Polled++
		case notification.DeliveryFailed:
			stats.Failed++
		case notification.DeliveryPending:
			stats.Pending++
		}
		if l.Status == notification.DeliveryDelivered && l.LatencyMs.Valid {
			v := l.LatencyMs.Int64
			sum += v
			n++
			if n == 1 || v < stats.MinLatencyMs {
				stats.MinLatencyMs = v
			}
			if v > stats.MaxLatencyMs {
				stats.MaxLatencyMs = v
			}
		}
	}
	if n > 0 {
		stats.AvgLatencyMs = float64(sum) / float64(n)
	}
	return stats, nil
}

func (f *fakeNotificationRepo) DeleteDeliveryLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var kept []*notification.DeliveryLog
	var removed int64
	for _, l := range f.logs {
		if l.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	f.logs = kept
	return removed, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]user.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	f.users[u.ID] = *u
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return user.User{}, care_errors.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetFamilyMembers(ctx context.Context, familyID uuid.UUID) ([]user.User, error) {
	var out []user.User
	for _, u := range f.users {
		if u.FamilyID.Valid && u.FamilyID.UUID == familyID && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) addMember(familyID uuid.UUID, role string) uuid.UUID {
	id := uuid.New()
	f.users[id] = user.User{
		ID:       id,
		Role:     role,
		FamilyID: uuid.NullUUID{UUID: familyID, Valid: familyID != uuid.Nil},
		IsActive: true,
	}
	return id
}

// Dispatcher collaborator fakes.

type fakeRegistry struct {
	online map[uuid.UUID]bool
}

func newFakeRegistry(online ...uuid.UUID) *fakeRegistry {
	m := make(map[uuid.UUID]bool, len(online))
	for _, id := range online {
		m[id] = true
	}
	return &fakeRegistry{online: m}
}

func (f *fakeRegistry) IsConnected(userID uuid.UUID) bool {
	return f.online[userID]
}

type pushedFrame struct {
	userID  uuid.UUID
	payload []byte
}

type fakeTransport struct {
	pushed []pushedFrame
	err    error
	connID string
}

func (f *fakeTransport) Push(ctx context.Context, userID uuid.UUID, payload []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.pushed = append(f.pushed, pushedFrame{userID: userID, payload: payload})
	if f.connID == "" {
		return "conn-1", nil
	}
	return f.connID, nil
}

type sentEmail struct {
	to, subject string
}

type fakeMailer struct {
	sent []sentEmail
	err  error
}

func (f *fakeMailer) SendEmail(ctx context.Context, to, subject, html, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, subject: subject})
	return nil
}

type publishedEvent struct {
	channel string
	payload []byte
}

type fakePublisher struct {
	published []publishedEvent
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedEvent{channel: channel, payload: payload})
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
