package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/calliope-ai/calliope/internal/gateway"
	"github.com/calliope-ai/calliope/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the session state: the ordered chat list, the current
// selection and the global in-flight flag. All mutations go through its
// methods; rendering code only reads copies.
//
// Gateway calls run outside the lock, so several of them can be outstanding
// at once. Selection uses a generation counter so a stale fetch never
// overwrites the state of a newer one, and the in-flight flag serializes
// sends.
type Manager struct {
	gw     gateway.Gateway
	logger *zap.Logger

	mu        sync.Mutex
	chats     []*models.Chat // most recently updated first
	current   string         // selected chat id, empty when none
	loaded    map[string]bool
	sending   bool
	selectGen uint64
}

func NewManager(gw gateway.Gateway, logger *zap.Logger) *Manager {
	return &Manager{
		gw:     gw,
		logger: logger,
		loaded: make(map[string]bool),
	}
}

// Chats returns the ordered chat list in summary form.
func (m *Manager) Chats() []models.ChatSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	summaries := make([]models.ChatSummary, 0, len(m.chats))
	for _, c := range m.chats {
		summaries = append(summaries, c.Summary())
	}
	return summaries
}

// Current returns a copy of the selected chat, or nil when none is selected.
func (m *Manager) Current() *models.Chat {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.find(m.current)
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = append([]models.Message(nil), c.Messages...)
	return &cp
}

// InFlight reports whether a send is outstanding.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sending
}

// Sync replaces the chat list with the gateway's, keeping already-loaded
// messages for chats that still exist. Selection falls back to the front of
// the list if the selected chat is gone.
func (m *Manager) Sync(ctx context.Context) error {
	summaries, err := m.gw.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("list chats: %w: %w", ErrGateway, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := make(map[string]*models.Chat, len(m.chats))
	for _, c := range m.chats {
		old[c.ID] = c
	}

	chats := make([]*models.Chat, 0, len(summaries))
	loaded := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		c := &models.Chat{ID: s.ID, Title: s.Title, UpdatedAt: s.UpdatedAt}
		if prev, ok := old[s.ID]; ok {
			c.Messages = prev.Messages
			c.CreatedAt = prev.CreatedAt
			loaded[s.ID] = m.loaded[s.ID]
		}
		chats = append(chats, c)
	}
	m.chats = chats
	m.loaded = loaded

	if m.find(m.current) == nil {
		m.current = ""
		if len(m.chats) > 0 {
			m.current = m.chats[0].ID
		}
	}
	return nil
}

// NewChat creates a chat on the gateway and, only on success, inserts it at
// the front of the list and selects it. A failed create leaves the session
// untouched so local state never drifts from the backend.
func (m *Manager) NewChat(ctx context.Context) (*models.Chat, error) {
	created, err := m.gw.CreateChat(ctx, models.DefaultTitle)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w: %w", ErrGateway, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.insert(created)

	cp := *created
	return &cp, nil
}

// Select makes the chat with the given id current, fetching its messages the
// first time it is selected in this session. The most recent Select wins: a
// slow fetch started by an earlier call is discarded when it resolves.
func (m *Manager) Select(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.find(id) == nil {
		m.mu.Unlock()
		return fmt.Errorf("select %q: %w", id, ErrNotFound)
	}
	m.selectGen++
	gen := m.selectGen
	m.current = id
	needFetch := !m.loaded[id]
	m.mu.Unlock()

	if !needFetch {
		return nil
	}

	msgs, err := m.gw.Messages(ctx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.selectGen {
		// A newer selection owns the state now.
		return nil
	}
	if err != nil {
		// Selection sticks, messages stay empty; the caller decides
		// whether to offer a retry.
		return fmt.Errorf("fetch messages for %q: %w: %w", id, ErrGateway, err)
	}
	if c := m.find(id); c != nil {
		c.Messages = msgs
		m.loaded[id] = true
	}
	return nil
}

// Rename sets a new title. The local update is optimistic: a gateway failure
// is reported but the title is not rolled back.
func (m *Manager) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}

	m.mu.Lock()
	c := m.find(id)
	if c == nil {
		m.mu.Unlock()
		return fmt.Errorf("rename %q: %w", id, ErrNotFound)
	}
	if c.Title == title {
		m.mu.Unlock()
		return nil
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	m.promote(id)
	m.mu.Unlock()

	if err := m.gw.RenameChat(ctx, id, title); err != nil {
		m.logger.Warn("rename not persisted", zap.String("chat_id", id), zap.Error(err))
		return fmt.Errorf("rename %q: %w: %w", id, ErrGateway, err)
	}
	return nil
}

// Delete removes a chat. The gateway confirms first; only then does the chat
// leave the local list, so a failed delete is never half-applied. If the
// deleted chat was selected, selection moves to the new front of the list.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.find(id) == nil {
		m.mu.Unlock()
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	m.mu.Unlock()

	if err := m.gw.DeleteChat(ctx, id); err != nil {
		return fmt.Errorf("delete %q: %w: %w", id, ErrGateway, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.chats {
		if c.ID == id {
			m.chats = append(m.chats[:i], m.chats[i+1:]...)
			break
		}
	}
	delete(m.loaded, id)
	if m.current == id {
		m.current = ""
		if len(m.chats) > 0 {
			m.current = m.chats[0].ID
		}
	}
	return nil
}

// find returns the chat with the given id, or nil. Callers hold m.mu.
func (m *Manager) find(id string) *models.Chat {
	if id == "" {
		return nil
	}
	for _, c := range m.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// insert puts a chat at the front of the list and selects it. Callers hold
// m.mu.
func (m *Manager) insert(c *models.Chat) {
	m.chats = append([]*models.Chat{c}, m.chats...)
	m.loaded[c.ID] = true
	m.current = c.ID
}

// promote moves a chat to the front of the list. Callers hold m.mu.
func (m *Manager) promote(id string) {
	for i, c := range m.chats {
		if c.ID == id {
			copy(m.chats[1:i+1], m.chats[:i])
			m.chats[0] = c
			return
		}
	}
}

func newLocalID() string {
	return uuid.NewString()
}
