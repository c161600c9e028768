package server

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRoomCreatesRoomAndAssignsCreator(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	first := NewClient(nil, hub, "first")
	second := NewClient(nil, hub, "second")

	result := store.JoinRoom("r1", first)
	require.True(t, result.Created)
	assert.True(t, result.Creator)
	assert.Empty(t, result.History)
	assert.ElementsMatch(t, []*Client{first}, result.Members)

	result = store.JoinRoom("r1", second)
	assert.False(t, result.Created)
	assert.False(t, result.Creator)
	assert.ElementsMatch(t, []*Client{first, second}, result.Members)

	assert.True(t, store.IsCreator("r1", first))
	assert.False(t, store.IsCreator("r1", second))
}

func TestJoinRoomRejoinKeepsCreator(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	creator := NewClient(nil, hub, "creator")

	store.JoinRoom("r1", creator)
	result := store.JoinRoom("r1", creator)

	assert.False(t, result.Created)
	assert.True(t, result.Creator)
	assert.Len(t, result.Members, 1)
}

func TestAppendMessageKeepsArrivalOrder(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	member := NewClient(nil, hub, "member")
	store.JoinRoom("r1", member)

	for i := 0; i < 5; i++ {
		_, ok := store.AppendMessage("r1", Message{Username: "alice", Message: fmt.Sprintf("msg-%d", i), Date: int64(i)})
		require.True(t, ok)
	}

	history := store.History("r1")
	require.Len(t, history, 5)
	for i, msg := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Message)
	}
}

func TestAppendMessageToMissingRoomIsNoOp(t *testing.T) {
	store := NewRoomStore()

	members, ok := store.AppendMessage("ghost", Message{Username: "alice", Message: "hi"})

	assert.False(t, ok)
	assert.Nil(t, members)
	assert.Zero(t, store.RoomCount())
}

func TestHistoryIsSnapshot(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	member := NewClient(nil, hub, "member")
	store.JoinRoom("r1", member)
	store.AppendMessage("r1", Message{Username: "alice", Message: "one"})

	snapshot := store.History("r1")
	store.AppendMessage("r1", Message{Username: "alice", Message: "two"})

	// The earlier snapshot must not observe the later append.
	require.Len(t, snapshot, 1)
	assert.Equal(t, "one", snapshot[0].Message)
	assert.Len(t, store.History("r1"), 2)
}

func TestRemoveMemberDeletesEmptyRoom(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	a := NewClient(nil, hub, "a")
	b := NewClient(nil, hub, "b")
	store.JoinRoom("r1", a)
	store.JoinRoom("r1", b)

	remaining, deleted := store.RemoveMember("r1", a)
	assert.False(t, deleted)
	assert.ElementsMatch(t, []*Client{b}, remaining)

	remaining, deleted = store.RemoveMember("r1", b)
	assert.True(t, deleted)
	assert.Empty(t, remaining)
	assert.Zero(t, store.RoomCount())
}

func TestRemoveMemberFromMissingRoom(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	a := NewClient(nil, hub, "a")

	remaining, deleted := store.RemoveMember("ghost", a)

	assert.False(t, deleted)
	assert.Empty(t, remaining)
}

func TestRoomRecreatedAfterEmptyStartsFresh(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	a := NewClient(nil, hub, "a")
	b := NewClient(nil, hub, "b")

	store.JoinRoom("r1", a)
	store.AppendMessage("r1", Message{Username: "alice", Message: "old"})
	store.RemoveMember("r1", a)

	result := store.JoinRoom("r1", b)
	require.True(t, result.Created)
	assert.True(t, result.Creator)
	assert.Empty(t, result.History)
}

func TestCloseRoomRequiresCreator(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	creator := NewClient(nil, hub, "creator")
	member := NewClient(nil, hub, "member")
	store.JoinRoom("r1", creator)
	store.JoinRoom("r1", member)

	members, ok := store.CloseRoom("r1", member)
	assert.False(t, ok)
	assert.Nil(t, members)
	assert.Equal(t, 1, store.RoomCount())

	members, ok = store.CloseRoom("r1", creator)
	require.True(t, ok)
	assert.ElementsMatch(t, []*Client{creator, member}, members)
	assert.Zero(t, store.RoomCount())
}

func TestCloseRoomMissingRoom(t *testing.T) {
	store := NewRoomStore()
	hub := NewHub()
	client := NewClient(nil, hub, "client")

	_, ok := store.CloseRoom("ghost", client)

	assert.False(t, ok)
}
