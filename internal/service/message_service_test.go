package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinsgo/personal-site/internal/models"
)

var author = models.User{ID: "u1", Handle: "alice"}

func newMessageFixture() (*MessageService, *fakeMessages) {
	rooms := newFakeRooms(models.Room{ID: "r1", Name: "lobby", IsPublic: true})
	store := &fakeMessages{rooms: rooms}
	return NewMessageService(store, rooms, "/uploads/", zerolog.Nop()), store
}

func TestAppendTextBounds(t *testing.T) {
	svc, store := newMessageFixture()
	ctx := context.Background()

	for _, text := range []string{"", "   ", strings.Repeat("x", 501)} {
		_, err := svc.Append(ctx, AppendInput{RoomID: "r1", Author: author, Text: text})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "text %q", text)
		assert.Equal(t, "text", verr.Field)
	}
	assert.Empty(t, store.msgs)

	msg, err := svc.Append(ctx, AppendInput{RoomID: "r1", Author: author, Text: strings.Repeat("字", 500)})
	require.NoError(t, err)
	assert.Equal(t, models.MessageKindText, msg.Kind)
	assert.Nil(t, msg.ImageURL)

	msg, err = svc.Append(ctx, AppendInput{RoomID: "r1", Author: author, Kind: models.MessageKindText, Text: "  hi  "})
	require.NoError(t, err)
	assert.Equal(t, "hi", *msg.Text)
	assert.Equal(t, "alice", msg.AuthorHandle)
}

func TestAppendImageReferences(t *testing.T) {
	svc, _ := newMessageFixture()
	ctx := context.Background()

	valid := []string{
		"https://example.com/cat.png",
		"http://cdn.example.com/a/b.gif",
		"/uploads/2025/03/01/abc.webp",
		"  /uploads/x.jpg  ",
	}
	for _, ref := range valid {
		msg, err := svc.Append(ctx, AppendInput{RoomID: "r1", Author: author, Kind: models.MessageKindImage, ImageURL: ref, Text: "ignored"})
		require.NoError(t, err, ref)
		assert.Equal(t, strings.TrimSpace(ref), *msg.ImageURL)
		assert.Nil(t, msg.Text)
	}

	invalid := []string{"", "ftp://example.com/a.png", "https://", "javascript:alert(1)", "/static/a.png", "/uploads/", "/uploads/../secret", "example.com/a.png"}
	for _, ref := range invalid {
		_, err := svc.Append(ctx, AppendInput{RoomID: "r1", Author: author, Kind: models.MessageKindImage, ImageURL: ref})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, ref)
		assert.Equal(t, "imageUrl", verr.Field)
	}
}

func TestAppendRejectsUnknownKindAndRoom(t *testing.T) {
	svc, _ := newMessageFixture()
	ctx := context.Background()

	_, err := svc.Append(ctx, AppendInput{RoomID: "r1", Author: author, Kind: "video", Text: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Field)

	_, err = svc.Append(ctx, AppendInput{RoomID: "", Author: author, Text: "x"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "roomId", verr.Field)

	_, err = svc.Append(ctx, AppendInput{RoomID: "nope", Author: author, Text: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendLogsUnknownRoom(t *testing.T) {
	var buf bytes.Buffer
	rooms := newFakeRooms()
	svc := NewMessageService(&fakeMessages{rooms: rooms}, rooms, "/uploads/", zerolog.New(&buf))

	_, err := svc.Append(context.Background(), AppendInput{RoomID: "gone", Author: author, Text: "hi"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, buf.String(), `"room_id":"gone"`)
	assert.Contains(t, buf.String(), "message for unknown room")
}

func TestAppendTruncatesToMilliseconds(t *testing.T) {
	svc, _ := newMessageFixture()
	svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 1, 123456789, time.UTC) }

	msg, err := svc.Append(context.Background(), AppendInput{RoomID: "r1", Author: author, Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 1, 123000000, time.UTC), msg.CreatedAt)
}

func TestQueryIsInclusiveAndOrdered(t *testing.T) {
	svc, _ := newMessageFixture()
	ctx := context.Background()
	base := time.UnixMilli(1000).UTC()

	calls := []time.Time{base, base, base.Add(500 * time.Millisecond)}
	var ids []string
	for i, at := range calls {
		svc.now = func() time.Time { return at }
		msg, err := svc.Append(ctx, AppendInput{RoomID: "r1", Author: author, Text: string(rune('A' + i))})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	msgs, err := svc.Query(ctx, "r1", base, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.True(t, msgs[i-1].Before(msgs[i]))
	}

	msgs, err = svc.Query(ctx, "r1", base.Add(time.Millisecond), 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, ids[2], msgs[0].ID)

	msgs, err = svc.Query(ctx, "r1", time.Time{}, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = svc.Query(ctx, "missing", time.Time{}, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultQueryLimit, ClampLimit(0))
	assert.Equal(t, 1, ClampLimit(-5))
	assert.Equal(t, 42, ClampLimit(42))
	assert.Equal(t, MaxQueryLimit, ClampLimit(10_000))
}
