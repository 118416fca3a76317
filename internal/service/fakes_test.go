package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/steinsgo/personal-site/internal/cache"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
	"github.com/steinsgo/personal-site/internal/storage"
	"github.com/steinsgo/personal-site/internal/tasks"
)

type fakeUsers struct {
	mu       sync.Mutex
	byHandle map[string]models.User
	// raceOnCreate makes Create fail as if another request won the handle.
	raceOnCreate bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byHandle: map[string]models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, user models.User) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byHandle[user.Handle]; ok || f.raceOnCreate {
		return models.User{}, repository.ErrHandleTaken
	}
	user.CreatedAt = time.Now()
	f.byHandle[user.Handle] = user
	return user, nil
}

func (f *fakeUsers) FindByHandle(_ context.Context, handle string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byHandle[handle]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	users    *fakeUsers
	// afterRead runs once a lookup has read its row, before it returns.
	afterRead func()
}

func newFakeSessions(users *fakeUsers) *fakeSessions {
	return &fakeSessions{sessions: map[string]models.Session{}, users: users}
}

func (f *fakeSessions) Create(_ context.Context, session models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[string(session.TokenHash)] = session
	return nil
}

func (f *fakeSessions) GetWithUser(_ context.Context, hash []byte) (models.Session, models.User, error) {
	f.mu.Lock()
	session, ok := f.sessions[string(hash)]
	hook := f.afterRead
	f.afterRead = nil
	f.mu.Unlock()
	if !ok {
		return models.Session{}, models.User{}, repository.ErrSessionNotFound
	}
	if hook != nil {
		hook()
	}
	f.users.mu.Lock()
	defer f.users.mu.Unlock()
	for _, user := range f.users.byHandle {
		if user.ID == session.UserID {
			return session, user, nil
		}
	}
	return models.Session{}, models.User{}, repository.ErrSessionNotFound
}

func (f *fakeSessions) DeleteByTokenHash(_ context.Context, hash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[string(hash)]; !ok {
		return repository.ErrSessionNotFound
	}
	delete(f.sessions, string(hash))
	return nil
}

func (f *fakeSessions) DeleteByUser(_ context.Context, userID string) ([][]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hashes [][]byte
	for key, session := range f.sessions {
		if session.UserID == userID {
			hashes = append(hashes, []byte(key))
			delete(f.sessions, key)
		}
	}
	return hashes, nil
}

func (f *fakeSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key, session := range f.sessions {
		if !session.Active(now) {
			delete(f.sessions, key)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeCache struct {
	entries map[string]cache.CachedSession
	err     error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]cache.CachedSession{}}
}

func (f *fakeCache) Get(_ context.Context, hash []byte) (*cache.CachedSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	entry, ok := f.entries[string(hash)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// Set only fills missing keys, like the redis SETNX it stands in for.
func (f *fakeCache) Set(_ context.Context, hash []byte, session cache.CachedSession, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.entries[string(hash)]; !ok {
		f.entries[string(hash)] = session
	}
	return nil
}

func (f *fakeCache) Revoke(_ context.Context, hashes ...[]byte) error {
	for _, hash := range hashes {
		f.entries[string(hash)] = cache.CachedSession{Revoked: true}
	}
	return nil
}

func (f *fakeCache) live() int {
	n := 0
	for _, entry := range f.entries {
		if !entry.Revoked {
			n++
		}
	}
	return n
}

// plainHasher stands in for argon2 so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(secret string) ([]byte, error) {
	return []byte("plain:" + secret), nil
}

func (plainHasher) Verify(secret string, encoded []byte) (bool, error) {
	if !strings.HasPrefix(string(encoded), "plain:") {
		return false, errors.New("malformed")
	}
	return string(encoded) == "plain:"+secret, nil
}

type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string]models.Room
}

func newFakeRooms(rooms ...models.Room) *fakeRooms {
	f := &fakeRooms{rooms: map[string]models.Room{}}
	for _, room := range rooms {
		f.rooms[room.ID] = room
	}
	return f
}

func (f *fakeRooms) Create(_ context.Context, room models.Room) (models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room.CreatedAt = time.Now()
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeRooms) Get(_ context.Context, id string) (models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[id]
	if !ok {
		return models.Room{}, repository.ErrRoomNotFound
	}
	return room, nil
}

func (f *fakeRooms) ListSummaries(_ context.Context, limit int) ([]models.RoomSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RoomSummary
	for _, room := range f.rooms {
		out = append(out, models.RoomSummary{Room: room})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeMessages struct {
	mu    sync.Mutex
	rooms *fakeRooms
	msgs  []models.Message
}

func (f *fakeMessages) Create(ctx context.Context, msg models.Message) error {
	if _, err := f.rooms.Get(ctx, msg.RoomID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeMessages) Since(_ context.Context, roomID string, since time.Time, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.msgs {
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

type fakeGuestbook struct {
	mu      sync.Mutex
	entries []models.GuestbookEntry
	replies []models.GuestbookReply
}

func (f *fakeGuestbook) CreateEntry(_ context.Context, entry models.GuestbookEntry) (models.GuestbookEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.CreatedAt = time.Now()
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeGuestbook) EntryExists(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == id {
			return nil
		}
	}
	return repository.ErrEntryNotFound
}

func (f *fakeGuestbook) ListEntries(_ context.Context, limit, perEntry int) ([]models.GuestbookEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GuestbookEntry
	for i := len(f.entries) - 1; i >= 0 && len(out) < limit; i-- {
		entry := f.entries[i]
		entry.Replies = []models.GuestbookReply{}
		for _, reply := range f.replies {
			if reply.EntryID == entry.ID && len(entry.Replies) < perEntry {
				entry.Replies = append(entry.Replies, reply)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeGuestbook) ListReplies(_ context.Context, entryID string, limit int) ([]models.GuestbookReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.GuestbookReply{}
	for _, reply := range f.replies {
		if reply.EntryID == entryID && len(out) < limit {
			out = append(out, reply)
		}
	}
	return out, nil
}

func (f *fakeGuestbook) CreateReply(_ context.Context, reply models.GuestbookReply) (models.GuestbookReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reply.CreatedAt = time.Now()
	f.replies = append(f.replies, reply)
	return reply, nil
}

type fakeUploads struct {
	mu      sync.Mutex
	uploads map[string]models.Upload
}

func newFakeUploads() *fakeUploads {
	return &fakeUploads{uploads: map[string]models.Upload{}}
}

func (f *fakeUploads) Create(_ context.Context, upload models.Upload) (models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	upload.CreatedAt = time.Now()
	f.uploads[upload.ID] = upload
	return upload, nil
}

func (f *fakeUploads) GetByID(_ context.Context, id string) (models.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	upload, ok := f.uploads[id]
	if !ok {
		return models.Upload{}, repository.ErrUploadNotFound
	}
	return upload, nil
}

func (f *fakeUploads) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.uploads[id]; !ok {
		return repository.ErrUploadNotFound
	}
	delete(f.uploads, id)
	return nil
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobs) Bucket() string { return "test-uploads" }

func (f *fakeBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (storage.ObjectInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: contentType}, nil
}

func (f *fakeBlobs) Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	info, err := f.Stat(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(f.objects[key])), info, nil
}

func (f *fakeBlobs) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: f.types[key]}, nil
}

type fakeQueue struct {
	tasks []tasks.Task
}

func (f *fakeQueue) Enqueue(_ context.Context, task tasks.Task) error {
	f.tasks = append(f.tasks, task)
	return nil
}
