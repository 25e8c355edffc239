package room

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"liveroom/store"
)

type fixture struct {
	svc   *Service
	store *store.SQLiteStore
	users []int64
}

func newFixture(t *testing.T, userCount int) *fixture {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	f := &fixture{svc: NewService(s), store: s}
	for i := 0; i < userCount; i++ {
		id, err := s.CreateUser(fmt.Sprintf("token-%d", i), fmt.Sprintf("player%d", i), 1000)
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		f.users = append(f.users, id)
	}
	return f
}

func (f *fixture) mustCreateRoom(t *testing.T, owner, liveID int64, d Difficulty) int64 {
	t.Helper()
	roomID, err := f.svc.CreateRoom(context.Background(), owner, liveID, d)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return roomID
}

func TestCreateRoomVisibleInListing(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)

	rooms, err := f.svc.ListRooms(ctx, 1001)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("got %d rooms, want 1", len(rooms))
	}
	r := rooms[0]
	if r.RoomID != roomID || r.LiveID != 1001 || r.JoinedCount != 1 || r.MaxMembers != 4 {
		t.Errorf("unexpected summary: %+v", r)
	}

	// The zero live id matches every song.
	rooms, err = f.svc.ListRooms(ctx, 0)
	if err != nil {
		t.Fatalf("ListRooms(0): %v", err)
	}
	if len(rooms) != 1 {
		t.Errorf("ListRooms(0): got %d rooms, want 1", len(rooms))
	}

	rooms, err = f.svc.ListRooms(ctx, 2002)
	if err != nil {
		t.Fatalf("ListRooms(2002): %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("ListRooms(2002): got %d rooms, want 0", len(rooms))
	}
}

func TestCreateRoomInvalidDifficulty(t *testing.T) {
	f := newFixture(t, 1)

	if _, err := f.svc.CreateRoom(context.Background(), f.users[0], 1001, Difficulty(3)); err != ErrInvalidDifficulty {
		t.Errorf("got %v, want ErrInvalidDifficulty", err)
	}
}

func TestJoinIdempotent(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)

	for i := 0; i < 2; i++ {
		result, err := f.svc.Join(ctx, roomID, f.users[1], DifficultyHard)
		if err != nil {
			t.Fatalf("Join #%d: %v", i+1, err)
		}
		if result != JoinOk {
			t.Errorf("Join #%d: got %d, want Ok", i+1, result)
		}
	}

	_, members, err := f.svc.Wait(ctx, roomID, f.users[0])
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("double join changed membership: %d members", len(members))
	}
}

func TestJoinFullRoom(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)
	for _, id := range f.users[1:4] {
		if result, _ := f.svc.Join(ctx, roomID, id, DifficultyNormal); result != JoinOk {
			t.Fatalf("seat fill: got %d, want Ok", result)
		}
	}

	result, err := f.svc.Join(ctx, roomID, f.users[4], DifficultyNormal)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result != JoinRoomFull {
		t.Errorf("fifth join: got %d, want RoomFull", result)
	}

	// A seated member re-joining a full room is still Ok.
	result, err = f.svc.Join(ctx, roomID, f.users[2], DifficultyNormal)
	if err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if result != JoinOk {
		t.Errorf("member re-join on full room: got %d, want Ok", result)
	}

	// A full room is not advertised.
	rooms, err := f.svc.ListRooms(ctx, 1001)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("full room still listed: %+v", rooms)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(t, 1)

	result, err := f.svc.Join(context.Background(), 12345, f.users[0], DifficultyNormal)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result != JoinOtherError {
		t.Errorf("got %d, want OtherError", result)
	}
}

func TestJoinDissolvedRoom(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)
	if err := f.svc.Leave(ctx, roomID, f.users[0]); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	result, err := f.svc.Join(ctx, roomID, f.users[1], DifficultyNormal)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if result != JoinDisbanded {
		t.Errorf("join on dissolved room: got %d, want Disbanded", result)
	}

	rooms, err := f.svc.ListRooms(ctx, 1001)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("dissolved room still listed: %+v", rooms)
	}
}

func TestWaitSnapshot(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)
	if result, _ := f.svc.Join(ctx, roomID, f.users[1], DifficultyHard); result != JoinOk {
		t.Fatalf("Join: got %d, want Ok", result)
	}

	status, members, err := f.svc.Wait(ctx, roomID, f.users[1])
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusWaiting {
		t.Errorf("status: got %d, want Waiting", status)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	for _, m := range members {
		switch m.UserID {
		case f.users[0]:
			if !m.IsHost || m.IsMe || m.Difficulty != DifficultyNormal {
				t.Errorf("owner flags wrong: %+v", m)
			}
		case f.users[1]:
			if m.IsHost || !m.IsMe || m.Difficulty != DifficultyHard {
				t.Errorf("joiner flags wrong: %+v", m)
			}
		default:
			t.Errorf("unexpected member %d", m.UserID)
		}
	}

	if _, _, err := f.svc.Wait(ctx, 12345, f.users[0]); err != ErrRoomNotFound {
		t.Errorf("Wait on unknown room: got %v, want ErrRoomNotFound", err)
	}
}

func TestStartOwnerOnly(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)
	if result, _ := f.svc.Join(ctx, roomID, f.users[1], DifficultyNormal); result != JoinOk {
		t.Fatalf("Join failed")
	}

	if err := f.svc.Start(ctx, roomID, f.users[1]); err != ErrNotOwner {
		t.Errorf("non-owner start: got %v, want ErrNotOwner", err)
	}

	if err := f.svc.Start(ctx, roomID, f.users[0]); err != nil {
		t.Fatalf("owner start: %v", err)
	}

	status, _, err := f.svc.Wait(ctx, roomID, f.users[0])
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusLiveStart {
		t.Errorf("status after start: got %d, want LiveStart", status)
	}

	if err := f.svc.Start(ctx, roomID, f.users[0]); err != ErrAlreadyStarted {
		t.Errorf("restart: got %v, want ErrAlreadyStarted", err)
	}

	// A started room leaves the listing and accepts nobody new.
	rooms, err := f.svc.ListRooms(ctx, 1001)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("started room still listed: %+v", rooms)
	}

	if err := f.svc.Start(ctx, 12345, f.users[0]); err != ErrRoomNotFound {
		t.Errorf("start unknown room: got %v, want ErrRoomNotFound", err)
	}
}

func TestOwnerLeavePromotesAnotherMember(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)
	for _, id := range f.users[1:] {
		if result, _ := f.svc.Join(ctx, roomID, id, DifficultyNormal); result != JoinOk {
			t.Fatalf("Join failed")
		}
	}

	if err := f.svc.Leave(ctx, roomID, f.users[0]); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	status, members, err := f.svc.Wait(ctx, roomID, f.users[1])
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusWaiting {
		t.Errorf("status after owner leave: got %d, want Waiting", status)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	hosts := 0
	for _, m := range members {
		if m.UserID == f.users[0] {
			t.Errorf("leaver still listed: %+v", m)
		}
		if m.IsHost {
			hosts++
		}
	}
	if hosts != 1 {
		t.Errorf("got %d hosts after promotion, want exactly 1", hosts)
	}
}

func TestLastLeaverDissolvesRoom(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)
	if result, _ := f.svc.Join(ctx, roomID, f.users[1], DifficultyNormal); result != JoinOk {
		t.Fatalf("Join failed")
	}

	// Non-owner leave touches only the seat.
	if err := f.svc.Leave(ctx, roomID, f.users[1]); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	status, members, err := f.svc.Wait(ctx, roomID, f.users[0])
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusWaiting || len(members) != 1 {
		t.Errorf("after guest leave: status=%d members=%d", status, len(members))
	}

	if err := f.svc.Leave(ctx, roomID, f.users[0]); err != nil {
		t.Fatalf("final Leave: %v", err)
	}
	status, members, err = f.svc.Wait(ctx, roomID, f.users[0])
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != StatusDissolved || len(members) != 0 {
		t.Errorf("after last leave: status=%d members=%d", status, len(members))
	}

	// Leaving an already dissolved room is a no-op.
	if err := f.svc.Leave(ctx, roomID, f.users[0]); err != nil {
		t.Errorf("repeat Leave: %v", err)
	}
}

func TestResultsAllOrNothing(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)
	if result, _ := f.svc.Join(ctx, roomID, f.users[1], DifficultyHard); result != JoinOk {
		t.Fatalf("Join failed")
	}
	if err := f.svc.Start(ctx, roomID, f.users[0]); err != nil {
		t.Fatalf("Start: %v", err)
	}

	results, err := f.svc.Results(ctx, roomID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results before any submission: %+v", results)
	}

	if err := f.svc.SubmitResult(ctx, roomID, f.users[0], 1234, JudgeCounts{4, 3, 2, 4, 1}); err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}

	// One member still pending: no partial leaderboard.
	results, err = f.svc.Results(ctx, roomID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("partial results leaked: %+v", results)
	}

	if err := f.svc.SubmitResult(ctx, roomID, f.users[1], 900, JudgeCounts{1, 1, 1, 1, 1}); err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}

	results, err = f.svc.Results(ctx, roomID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	byUser := map[int64]*Result{}
	for _, r := range results {
		byUser[r.UserID] = r
	}
	if r := byUser[f.users[0]]; r == nil || r.Score != 1234 || r.JudgeCounts != (JudgeCounts{4, 3, 2, 4, 1}) {
		t.Errorf("owner result wrong: %+v", r)
	}
	if r := byUser[f.users[1]]; r == nil || r.Score != 900 {
		t.Errorf("joiner result wrong: %+v", r)
	}

	// Resubmission is last-write-wins.
	if err := f.svc.SubmitResult(ctx, roomID, f.users[1], 950, JudgeCounts{2, 1, 1, 1, 0}); err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}
	results, err = f.svc.Results(ctx, roomID)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	for _, r := range results {
		if r.UserID == f.users[1] && r.Score != 950 {
			t.Errorf("resubmission not applied: %+v", r)
		}
	}
}

func TestSubmitResultValidation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)

	if err := f.svc.SubmitResult(ctx, roomID, f.users[0], -1, JudgeCounts{}); err != ErrInvalidResult {
		t.Errorf("negative score: got %v, want ErrInvalidResult", err)
	}
	if err := f.svc.SubmitResult(ctx, roomID, f.users[0], 10, JudgeCounts{0, -1, 0, 0, 0}); err != ErrInvalidResult {
		t.Errorf("negative judge count: got %v, want ErrInvalidResult", err)
	}
}

func TestConcurrentJoinsNeverOverSeat(t *testing.T) {
	const contenders = 7

	f := newFixture(t, contenders+1)
	ctx := context.Background()

	roomID := f.mustCreateRoom(t, f.users[0], 1001, DifficultyNormal)

	results := make([]JoinResult, contenders)
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Join(ctx, roomID, f.users[i+1], DifficultyNormal)
		}(i)
	}
	wg.Wait()

	okCount := 0
	for i := 0; i < contenders; i++ {
		if errs[i] != nil {
			t.Fatalf("Join %d: %v", i, errs[i])
		}
		switch results[i] {
		case JoinOk:
			okCount++
		case JoinRoomFull:
		default:
			t.Errorf("Join %d: unexpected result %d", i, results[i])
		}
	}
	if okCount != 3 {
		t.Errorf("got %d successful joins for 3 free seats", okCount)
	}

	_, members, err := f.svc.Wait(ctx, roomID, f.users[0])
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(members) > 4 {
		t.Errorf("room over-seated: %d members", len(members))
	}
}
