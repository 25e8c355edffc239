package room

import (
	"context"
	"errors"

	"liveroom/store"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotOwner          = errors.New("only the room owner can start the live")
	ErrAlreadyStarted    = errors.New("live already started")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidResult     = errors.New("invalid result payload")
)

// Service is the room lifecycle state machine. Every operation runs in
// exactly one store transaction; all shared state lives in the store, so
// racing requests serialize there.
type Service struct {
	store store.Store
}

func NewService(store store.Store) *Service {
	return &Service{store: store}
}

// CreateRoom opens a Waiting room for the given song with the caller as
// owner and first member, and returns the new room id.
func (s *Service) CreateRoom(ctx context.Context, userID, liveID int64, difficulty Difficulty) (int64, error) {
	if !difficulty.Valid() {
		return 0, ErrInvalidDifficulty
	}

	var roomID int64
	err := s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		id, err := tx.InsertRoom(liveID, userID, int(StatusWaiting))
		if err != nil {
			return err
		}
		if err := tx.InsertMember(id, userID, int(difficulty)); err != nil {
			return err
		}
		roomID = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	return roomID, nil
}

// ListRooms returns the joinable rooms for a song: Waiting status with a
// free seat. liveID 0 matches every song.
func (s *Service) ListRooms(ctx context.Context, liveID int64) ([]*Summary, error) {
	summaries := make([]*Summary, 0)
	err := s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		open, err := tx.ListOpenRooms(liveID, int(StatusWaiting))
		if err != nil {
			return err
		}
		for _, r := range open {
			summaries = append(summaries, &Summary{
				RoomID:      r.ID,
				LiveID:      r.LiveID,
				JoinedCount: r.JoinedCount,
				MaxMembers:  r.MaxMembers,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Join seats the caller in the room. The outcome is a JoinResult value; the
// error return carries storage faults only. Joining a room you are already
// in is Ok and seats nobody twice: the membership check plus the
// (room_id, user_id) primary key cover the case where two requests for the
// same user race.
func (s *Service) Join(ctx context.Context, roomID, userID int64, difficulty Difficulty) (JoinResult, error) {
	if !difficulty.Valid() {
		return JoinOtherError, nil
	}

	result := JoinOtherError
	err := s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		rm, err := tx.GetRoom(roomID)
		if err != nil {
			return err
		}
		if rm == nil {
			return nil
		}

		switch Status(rm.Status) {
		case StatusDissolved:
			result = JoinDisbanded
			return nil
		case StatusLiveStart:
			// A started live accepts nobody; to the client it is
			// indistinguishable from a full room.
			result = JoinRoomFull
			return nil
		}

		members, err := tx.ListMembers(roomID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if m.UserID == userID {
				result = JoinOk
				return nil
			}
		}
		if len(members) >= rm.MaxMembers {
			result = JoinRoomFull
			return nil
		}

		if err := tx.InsertMember(roomID, userID, int(difficulty)); err != nil {
			if errors.Is(err, store.ErrDuplicateMember) {
				result = JoinOk
				return nil
			}
			return err
		}
		result = JoinOk
		return nil
	})
	if err != nil {
		return JoinOtherError, err
	}
	return result, nil
}

// Wait is the poll endpoint backing the lobby screen: a point-in-time
// snapshot of the room status and its members. requesterID only drives the
// is_me flag.
func (s *Service) Wait(ctx context.Context, roomID, requesterID int64) (Status, []*Member, error) {
	var status Status
	users := make([]*Member, 0)
	err := s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		rm, err := tx.GetRoom(roomID)
		if err != nil {
			return err
		}
		if rm == nil {
			return ErrRoomNotFound
		}
		status = Status(rm.Status)

		members, err := tx.ListMembers(roomID)
		if err != nil {
			return err
		}
		for _, m := range members {
			users = append(users, &Member{
				UserID:       m.UserID,
				Name:         m.Name,
				LeaderCardID: m.LeaderCardID,
				Difficulty:   Difficulty(m.Difficulty),
				IsMe:         m.UserID == requesterID,
				IsHost:       m.UserID == rm.OwnerID,
			})
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return status, users, nil
}

// Start transitions Waiting -> LiveStart. Owner only; restarting a started
// live is rejected rather than silently accepted.
func (s *Service) Start(ctx context.Context, roomID, userID int64) error {
	return s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		rm, err := tx.GetRoom(roomID)
		if err != nil {
			return err
		}
		if rm == nil || Status(rm.Status) == StatusDissolved {
			return ErrRoomNotFound
		}
		if rm.OwnerID != userID {
			return ErrNotOwner
		}
		if Status(rm.Status) == StatusLiveStart {
			return ErrAlreadyStarted
		}
		return tx.UpdateRoomStatus(roomID, int(StatusLiveStart))
	})
}

// SubmitResult records the caller's own score and judgement breakdown.
// Resubmission overwrites; a caller who holds no seat is a no-op.
func (s *Service) SubmitResult(ctx context.Context, roomID, userID, score int64, judges JudgeCounts) error {
	if score < 0 {
		return ErrInvalidResult
	}
	for _, j := range judges {
		if j < 0 {
			return ErrInvalidResult
		}
	}

	return s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		return tx.SetMemberResult(roomID, userID, score, judges)
	})
}

// Results returns one entry per member once every current member has
// submitted, and an empty slice before that. No partial leaderboard.
func (s *Service) Results(ctx context.Context, roomID int64) ([]*Result, error) {
	results := make([]*Result, 0)
	err := s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		members, err := tx.ListMembers(roomID)
		if err != nil {
			return err
		}
		for _, m := range members {
			if !m.HasResult {
				results = results[:0]
				return nil
			}
			results = append(results, &Result{
				UserID:      m.UserID,
				JudgeCounts: m.Judges,
				Score:       m.Score,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Leave removes the caller's seat. An owner hands the room to any other
// member first, or dissolves it when they were the last one in. The seat
// row is deleted after ownership is settled so the replacement query never
// sees the leaver.
func (s *Service) Leave(ctx context.Context, roomID, userID int64) error {
	return s.store.RunInTx(ctx, func(tx store.RoomTx) error {
		rm, err := tx.GetRoom(roomID)
		if err != nil {
			return err
		}
		if rm == nil || Status(rm.Status) == StatusDissolved {
			return nil
		}

		if rm.OwnerID == userID {
			next, ok, err := tx.OtherMember(roomID, userID)
			if err != nil {
				return err
			}
			if ok {
				if err := tx.UpdateRoomOwner(roomID, next); err != nil {
					return err
				}
			} else {
				if err := tx.UpdateRoomStatus(roomID, int(StatusDissolved)); err != nil {
					return err
				}
			}
		}

		return tx.DeleteMember(roomID, userID)
	})
}
