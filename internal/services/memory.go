package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"artchat-backend/internal/models"

	"github.com/google/uuid"
)

// MemoryStores is an in-process implementation of Directory, Messages and
// Presence sharing one lock and one dataset. It backs tests and any
// single-process deployment that runs without Postgres.
type MemoryStores struct {
	mu       sync.RWMutex
	users    map[int]models.Profile
	chats    map[string]*models.Chat
	byPair   map[string]string // "low:high" -> chat id
	messages map[string][]*models.Message
	presence map[int]*models.PresenceRecord
	now      func() time.Time
}

func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		users:    make(map[int]models.Profile),
		chats:    make(map[string]*models.Chat),
		byPair:   make(map[string]string),
		messages: make(map[string][]*models.Message),
		presence: make(map[int]*models.PresenceRecord),
		now:      time.Now,
	}
}

// AddUser seeds a profile for enrichment lookups.
func (s *MemoryStores) AddUser(id int, username, profileImageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = models.Profile{
		ID:              id,
		Username:        username,
		ProfileImageURL: profileImageURL,
		Status:          models.PresenceOffline,
	}
}

func pairKey(a, b int) string {
	low, high := normalizePair(a, b)
	return fmt.Sprintf("%d:%d", low, high)
}

func (s *MemoryStores) FindOrCreate(_ context.Context, userA, userB int) (*models.Chat, bool, error) {
	if userA == 0 || userB == 0 || userA == userB {
		return nil, false, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(userA, userB)
	if id, ok := s.byPair[key]; ok {
		chat := *s.chats[id]
		return &chat, false, nil
	}

	chat := &models.Chat{
		ID:         uuid.New().String(),
		SenderID:   userA,
		ReceiverID: userB,
		CreatedAt:  s.now(),
	}
	s.chats[chat.ID] = chat
	s.byPair[key] = chat.ID
	out := *chat
	return &out, true, nil
}

func (s *MemoryStores) ListForUser(_ context.Context, userID int) ([]models.ChatSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []models.ChatSummary
	for _, chat := range s.chats {
		if chat.SenderID != userID && chat.ReceiverID != userID {
			continue
		}
		summaries = append(summaries, s.summarize(chat, userID))
	}
	sort.Slice(summaries, func(i, j int) bool {
		return activityAt(summaries[i]).After(activityAt(summaries[j]))
	})
	return summaries, nil
}

func activityAt(cs models.ChatSummary) time.Time {
	if cs.LatestMessage != nil {
		return cs.LatestMessage.CreatedAt
	}
	return cs.CreatedAt
}

func (s *MemoryStores) summarize(chat *models.Chat, userID int) models.ChatSummary {
	cs := models.ChatSummary{
		Chat:     *chat,
		Sender:   s.profileLocked(chat.SenderID),
		Receiver: s.profileLocked(chat.ReceiverID),
	}
	msgs := s.messages[chat.ID]
	if len(msgs) > 0 {
		latest := *msgs[len(msgs)-1]
		cs.LatestMessage = &latest
	}
	for _, m := range msgs {
		if m.ReceiverID == userID && m.Status != models.StatusViewed {
			cs.UnviewedCount++
		}
	}
	return cs
}

func (s *MemoryStores) profileLocked(userID int) models.Profile {
	p, ok := s.users[userID]
	if !ok {
		p = models.Profile{ID: userID, Status: models.PresenceOffline}
	}
	if rec, ok := s.presence[userID]; ok {
		p.Status = rec.Status
		p.LastSeen = rec.LastSeen
	}
	return p
}

func (s *MemoryStores) GetByID(_ context.Context, chatID string, requesterID int) (*models.ChatSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	if chat.SenderID != requesterID && chat.ReceiverID != requesterID {
		return nil, ErrForbidden
	}
	cs := s.summarize(chat, requesterID)
	cs.LatestMessage = nil
	cs.UnviewedCount = 0
	return &cs, nil
}

func (s *MemoryStores) Append(_ context.Context, chatID string, senderID, receiverID int, text, clientID string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[chatID]
	if !ok {
		return nil, ErrNotFound
	}
	if pairKey(senderID, receiverID) != pairKey(chat.SenderID, chat.ReceiverID) {
		return nil, ErrValidation
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Status:     models.StatusSent,
		CreatedAt:  s.now(),
	}
	s.messages[chatID] = append(s.messages[chatID], msg)
	out := *msg
	return &out, nil
}

func (s *MemoryStores) ListByChat(_ context.Context, chatID string, limit int, before time.Time) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, m := range s.messages[chatID] {
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, *m)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *MemoryStores) Get(_ context.Context, messageID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if m := s.findLocked(messageID); m != nil {
		out := *m
		return &out, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStores) findLocked(messageID string) *models.Message {
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ID == messageID {
				return m
			}
		}
	}
	return nil
}

func (s *MemoryStores) UpdateStatus(_ context.Context, messageID string, status models.MessageStatus) (*models.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.findLocked(messageID)
	if m == nil {
		return nil, false, ErrNotFound
	}
	next, changed := models.AdvanceStatus(m.Status, status)
	m.Status = next
	out := *m
	return &out, changed, nil
}

func (s *MemoryStores) ListPending(_ context.Context, chatID string, receiverID int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Message
	for _, m := range s.messages[chatID] {
		if m.ReceiverID == receiverID && m.Status == models.StatusSent {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *MemoryStores) MarkOnline(_ context.Context, userID int) (*models.PresenceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.presence[userID]
	changed := !ok || rec.Status != models.PresenceOnline
	s.presence[userID] = &models.PresenceRecord{UserID: userID, Status: models.PresenceOnline}
	out := *s.presence[userID]
	return &out, changed, nil
}

func (s *MemoryStores) MarkOffline(_ context.Context, userID int) (*models.PresenceRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.presence[userID]
	changed := !ok || rec.Status != models.PresenceOffline
	lastSeen := s.now()
	s.presence[userID] = &models.PresenceRecord{UserID: userID, Status: models.PresenceOffline, LastSeen: &lastSeen}
	out := *s.presence[userID]
	return &out, changed, nil
}

func (s *MemoryStores) GetStatus(_ context.Context, userID int) (*models.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.presence[userID]; ok {
		out := *rec
		return &out, nil
	}
	return &models.PresenceRecord{UserID: userID, Status: models.PresenceOffline}, nil
}
