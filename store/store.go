package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateMember is returned by InsertMember when the (room, user) pair
// already holds a seat.
var ErrDuplicateMember = errors.New("member already in room")

type Store interface {
	CreateUser(token, name string, leaderCardID int64) (int64, error)
	GetUserByToken(token string) (*User, error)
	GetUserByID(userID int64) (*User, error)
	UpdateUser(userID int64, name string, leaderCardID int64) error
	RunInTx(ctx context.Context, fn func(tx RoomTx) error) error
	Close() error
}

// RoomTx is the set of room operations available inside a single transaction.
// Every room mutation goes through RunInTx so a failed operation leaves no
// partial writes.
type RoomTx interface {
	InsertRoom(liveID, ownerID int64, status int) (int64, error)
	GetRoom(roomID int64) (*Room, error)
	ListOpenRooms(liveID int64, status int) ([]*OpenRoom, error)
	CountMembers(roomID int64) (int, error)
	InsertMember(roomID, userID int64, difficulty int) error
	DeleteMember(roomID, userID int64) error
	ListMembers(roomID int64) ([]*RoomMember, error)
	OtherMember(roomID, excludeUserID int64) (int64, bool, error)
	UpdateRoomStatus(roomID int64, status int) error
	UpdateRoomOwner(roomID, ownerID int64) error
	SetMemberResult(roomID, userID, score int64, judges [5]int64) error
}

type User struct {
	ID           int64
	Token        string
	Name         string
	LeaderCardID int64
	CreatedAt    string
}

type Room struct {
	ID         int64
	LiveID     int64
	Status     int
	OwnerID    int64
	MaxMembers int
	CreatedAt  string
}

// OpenRoom is one row of the joined-count listing query.
type OpenRoom struct {
	ID          int64
	LiveID      int64
	JoinedCount int
	MaxMembers  int
}

// RoomMember is a membership row joined with the member's identity.
// Score and Judges are only meaningful when HasResult is true.
type RoomMember struct {
	RoomID       int64
	UserID       int64
	Name         string
	LeaderCardID int64
	Difficulty   int
	HasResult    bool
	Score        int64
	Judges       [5]int64
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// _txlock=immediate makes every transaction take the write lock up
	// front, so the check-then-insert sequences in the room lifecycle
	// serialize instead of failing on lock upgrade.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateUser(token, name string, leaderCardID int64) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO users (token, name, leader_card_id) VALUES (?, ?, ?)",
		token, name, leaderCardID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetUserByToken(token string) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		"SELECT id, token, name, leader_card_id, created_at FROM users WHERE token = ?",
		token,
	).Scan(&user.ID, &user.Token, &user.Name, &user.LeaderCardID, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) GetUserByID(userID int64) (*User, error) {
	user := &User{}
	err := s.db.QueryRow(
		"SELECT id, token, name, leader_card_id, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Token, &user.Name, &user.LeaderCardID, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SQLiteStore) UpdateUser(userID int64, name string, leaderCardID int64) error {
	_, err := s.db.Exec(
		"UPDATE users SET name = ?, leader_card_id = ? WHERE id = ?",
		name, leaderCardID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// RunInTx runs fn inside one transaction, committing on a nil return and
// rolling back otherwise. SQLite transactions are serializable, which is
// stricter than the read-committed floor the room lifecycle needs.
func (s *SQLiteStore) RunInTx(ctx context.Context, fn func(tx RoomTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) InsertRoom(liveID, ownerID int64, status int) (int64, error) {
	result, err := t.tx.Exec(
		"INSERT INTO rooms (live_id, status, owner_id) VALUES (?, ?, ?)",
		liveID, status, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create room: %w", err)
	}
	return result.LastInsertId()
}

func (t *sqliteTx) GetRoom(roomID int64) (*Room, error) {
	room := &Room{}
	err := t.tx.QueryRow(
		"SELECT id, live_id, status, owner_id, max_members, created_at FROM rooms WHERE id = ?",
		roomID,
	).Scan(&room.ID, &room.LiveID, &room.Status, &room.OwnerID, &room.MaxMembers, &room.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

func (t *sqliteTx) ListOpenRooms(liveID int64, status int) ([]*OpenRoom, error) {
	// liveID 0 is the "any song" sentinel.
	rows, err := t.tx.Query(`
		SELECT r.id, r.live_id, COUNT(m.user_id), r.max_members
		FROM rooms r
		JOIN room_members m ON m.room_id = r.id
		WHERE r.status = ? AND (? = 0 OR r.live_id = ?)
		GROUP BY r.id
		HAVING COUNT(m.user_id) < r.max_members
		ORDER BY r.id
	`, status, liveID, liveID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var open []*OpenRoom
	for rows.Next() {
		room := &OpenRoom{}
		if err := rows.Scan(&room.ID, &room.LiveID, &room.JoinedCount, &room.MaxMembers); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		open = append(open, room)
	}
	return open, rows.Err()
}

func (t *sqliteTx) CountMembers(roomID int64) (int, error) {
	var count int
	err := t.tx.QueryRow(
		"SELECT COUNT(*) FROM room_members WHERE room_id = ?",
		roomID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (t *sqliteTx) InsertMember(roomID, userID int64, difficulty int) error {
	_, err := t.tx.Exec(
		"INSERT INTO room_members (room_id, user_id, difficulty) VALUES (?, ?, ?)",
		roomID, userID, difficulty,
	)
	if err != nil {
		if isConstraintErr(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (t *sqliteTx) DeleteMember(roomID, userID int64) error {
	_, err := t.tx.Exec(
		"DELETE FROM room_members WHERE room_id = ? AND user_id = ?",
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

func (t *sqliteTx) ListMembers(roomID int64) ([]*RoomMember, error) {
	rows, err := t.tx.Query(`
		SELECT m.room_id, m.user_id, u.name, u.leader_card_id, m.difficulty,
		       m.score, m.judge_perfect, m.judge_great, m.judge_good, m.judge_bad, m.judge_miss
		FROM room_members m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = ?
		ORDER BY m.joined_at, m.user_id
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*RoomMember
	for rows.Next() {
		member := &RoomMember{}
		var score sql.NullInt64
		var judges [5]sql.NullInt64
		if err := rows.Scan(
			&member.RoomID, &member.UserID, &member.Name, &member.LeaderCardID, &member.Difficulty,
			&score, &judges[0], &judges[1], &judges[2], &judges[3], &judges[4],
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if score.Valid {
			member.HasResult = true
			member.Score = score.Int64
			for i, j := range judges {
				member.Judges[i] = j.Int64
			}
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// OtherMember returns any member of the room other than excludeUserID, used
// to pick a replacement owner. The bool reports whether one exists.
func (t *sqliteTx) OtherMember(roomID, excludeUserID int64) (int64, bool, error) {
	var userID int64
	err := t.tx.QueryRow(
		"SELECT user_id FROM room_members WHERE room_id = ? AND user_id != ? LIMIT 1",
		roomID, excludeUserID,
	).Scan(&userID)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find other member: %w", err)
	}
	return userID, true, nil
}

func (t *sqliteTx) UpdateRoomStatus(roomID int64, status int) error {
	_, err := t.tx.Exec(
		"UPDATE rooms SET status = ? WHERE id = ?",
		status, roomID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room status: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateRoomOwner(roomID, ownerID int64) error {
	_, err := t.tx.Exec(
		"UPDATE rooms SET owner_id = ? WHERE id = ?",
		ownerID, roomID,
	)
	if err != nil {
		return fmt.Errorf("failed to update room owner: %w", err)
	}
	return nil
}

func (t *sqliteTx) SetMemberResult(roomID, userID, score int64, judges [5]int64) error {
	_, err := t.tx.Exec(`
		UPDATE room_members
		SET score = ?, judge_perfect = ?, judge_great = ?, judge_good = ?, judge_bad = ?, judge_miss = ?
		WHERE room_id = ? AND user_id = ?
	`, score, judges[0], judges[1], judges[2], judges[3], judges[4], roomID, userID)
	if err != nil {
		return fmt.Errorf("failed to set member result: %w", err)
	}
	return nil
}

func isConstraintErr(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
