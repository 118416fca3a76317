package handlers

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
	"github.com/steinsgo/personal-site/internal/storage"
)

type memUsers struct {
	mu       sync.Mutex
	byHandle map[string]models.User
}

func (m *memUsers) Create(_ context.Context, user models.User) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHandle[user.Handle]; ok {
		return models.User{}, repository.ErrHandleTaken
	}
	user.CreatedAt = time.Now()
	m.byHandle[user.Handle] = user
	return user, nil
}

func (m *memUsers) FindByHandle(_ context.Context, handle string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.byHandle[handle]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *memUsers) byID(id string) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.byHandle {
		if user.ID == id {
			return user, true
		}
	}
	return models.User{}, false
}

type memSessions struct {
	mu        sync.Mutex
	sessions  map[string]models.Session
	users     *memUsers
	deleteErr error
}

func (m *memSessions) Create(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[string(session.TokenHash)] = session
	return nil
}

func (m *memSessions) GetWithUser(_ context.Context, hash []byte) (models.Session, models.User, error) {
	m.mu.Lock()
	session, ok := m.sessions[string(hash)]
	m.mu.Unlock()
	if !ok {
		return models.Session{}, models.User{}, repository.ErrSessionNotFound
	}
	user, ok := m.users.byID(session.UserID)
	if !ok {
		return models.Session{}, models.User{}, repository.ErrSessionNotFound
	}
	return session, user, nil
}

func (m *memSessions) DeleteByTokenHash(_ context.Context, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.sessions[string(hash)]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(m.sessions, string(hash))
	return nil
}

func (m *memSessions) DeleteByUser(_ context.Context, userID string) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var hashes [][]byte
	for key, session := range m.sessions {
		if session.UserID == userID {
			hashes = append(hashes, []byte(key))
			delete(m.sessions, key)
		}
	}
	return hashes, nil
}

func (m *memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, session := range m.sessions {
		if !session.Active(now) {
			delete(m.sessions, key)
			n++
		}
	}
	return n, nil
}

type memRooms struct {
	mu    sync.Mutex
	rooms map[string]models.Room
}

func (m *memRooms) Create(_ context.Context, room models.Room) (models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room.CreatedAt = time.Now().UTC()
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memRooms) Get(_ context.Context, id string) (models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return models.Room{}, repository.ErrRoomNotFound
	}
	return room, nil
}

func (m *memRooms) ListSummaries(_ context.Context, limit int) ([]models.RoomSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RoomSummary{}
	for _, room := range m.rooms {
		out = append(out, models.RoomSummary{Room: room, CreatorHandle: "owner"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memMessages struct {
	mu    sync.Mutex
	rooms *memRooms
	msgs  []models.Message
}

func (m *memMessages) Create(ctx context.Context, msg models.Message) error {
	if _, err := m.rooms.Get(ctx, msg.RoomID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memMessages) Since(_ context.Context, roomID string, since time.Time, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.msgs {
		if msg.RoomID == roomID && !msg.CreatedAt.Before(since) {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memGuestbook struct {
	mu      sync.Mutex
	entries []models.GuestbookEntry
	replies []models.GuestbookReply
}

func (m *memGuestbook) CreateEntry(_ context.Context, entry models.GuestbookEntry) (models.GuestbookEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memGuestbook) EntryExists(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.entries {
		if entry.ID == id {
			return nil
		}
	}
	return repository.ErrEntryNotFound
}

func (m *memGuestbook) ListEntries(_ context.Context, limit, perEntry int) ([]models.GuestbookEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.GuestbookEntry{}
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := m.entries[i]
		entry.Replies = []models.GuestbookReply{}
		for _, reply := range m.replies {
			if reply.EntryID == entry.ID && len(entry.Replies) < perEntry {
				entry.Replies = append(entry.Replies, reply)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (m *memGuestbook) ListReplies(_ context.Context, entryID string, limit int) ([]models.GuestbookReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.GuestbookReply{}
	for _, reply := range m.replies {
		if reply.EntryID == entryID && len(out) < limit {
			out = append(out, reply)
		}
	}
	return out, nil
}

func (m *memGuestbook) CreateReply(_ context.Context, reply models.GuestbookReply) (models.GuestbookReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply.CreatedAt = time.Now().UTC()
	m.replies = append(m.replies, reply)
	return reply, nil
}

type memUploads struct {
	mu      sync.Mutex
	uploads map[string]models.Upload
}

func (m *memUploads) Create(_ context.Context, upload models.Upload) (models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[upload.ID] = upload
	return upload, nil
}

func (m *memUploads) GetByID(_ context.Context, id string) (models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	upload, ok := m.uploads[id]
	if !ok {
		return models.Upload{}, repository.ErrUploadNotFound
	}
	return upload, nil
}

func (m *memUploads) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, id)
	return nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (m *memBlobs) Bucket() string { return "test-uploads" }

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (m *memBlobs) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	info, err := m.Stat(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return io.NopCloser(bytes.NewReader(m.objects[key])), info, nil
}

func (m *memBlobs) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: m.types[key]}, nil
}

// plainHasher stands in for argon2 so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(secret string) ([]byte, error) {
	return []byte("plain:" + secret), nil
}

func (plainHasher) Verify(secret string, encoded []byte) (bool, error) {
	return strings.TrimPrefix(string(encoded), "plain:") == secret, nil
}
