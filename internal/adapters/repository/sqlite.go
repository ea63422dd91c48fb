package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/rating"
	"github.com/okian/oarbit/pkg/logger"
	"github.com/okian/oarbit/pkg/metrics"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// StoredSession is a session graph with its processing state.
type StoredSession struct {
	model.Session
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// SQLiteStore persists sessions and ratings in SQLite.
type SQLiteStore struct {
	db    *sql.DB
	path  string
	log   logger.Logger
	now   func() time.Time
	newID func() string
}

// Open connects to the database at path, applies pragmas and migrations.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteStore{
		db:    db,
		path:  path,
		log:   logger.Nop(),
		now:   func() time.Time { return time.Now().UTC() },
		newID: defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Info(ctx, "sqlite store opened", logger.String("path", path))
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateSession stores the session header and returns its id. Pieces are
// added separately.
func (s *SQLiteStore) CreateSession(ctx context.Context, session model.Session) (string, error) {
	defer observe("create_session", time.Now())

	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, date, boat_class, conditions, location, description, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		session.Date.UTC().Format(timeLayout),
		session.BoatClass,
		session.Conditions,
		session.Location,
		session.Description,
		s.stamp(),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

// AddPiece stores a piece under sessionID and returns its id.
func (s *SQLiteStore) AddPiece(ctx context.Context, sessionID string, piece model.Piece) (string, error) {
	defer observe("add_piece", time.Now())

	if err := s.requireSession(ctx, sessionID); err != nil {
		return "", err
	}

	var distance sql.NullInt64
	if piece.DistanceMeters != nil {
		distance = sql.NullInt64{Int64: int64(*piece.DistanceMeters), Valid: true}
	}

	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pieces (id, session_id, sequence_order, distance_meters, direction, notes, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sessionID, piece.SequenceOrder, distance, piece.Direction, piece.Notes, s.stamp(),
	)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("%w: piece %d already exists in session %s", ErrConflict, piece.SequenceOrder, sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("insert piece: %w", err)
	}
	return id, nil
}

// AddBoat stores a boat under pieceID and returns its id. The piece must
// belong to sessionID.
func (s *SQLiteStore) AddBoat(ctx context.Context, sessionID, pieceID string, boat model.Boat) (string, error) {
	defer observe("add_boat", time.Now())

	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT session_id FROM pieces WHERE id = ?`, pieceID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != sessionID) {
		return "", fmt.Errorf("%w: piece %s in session %s", ErrNotFound, pieceID, sessionID)
	}
	if err != nil {
		return "", fmt.Errorf("lookup piece: %w", err)
	}

	var finish sql.NullFloat64
	if boat.FinishTimeSeconds != nil {
		finish = sql.NullFloat64{Float64: *boat.FinishTimeSeconds, Valid: true}
	}

	id := s.newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO boats (id, piece_id, session_id, name, finish_time_seconds, handicap_seconds, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, pieceID, sessionID, boat.Name, finish, boat.HandicapSeconds, s.stamp(),
	)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("%w: boat %q already exists in piece %s", ErrConflict, boat.Name, pieceID)
	}
	if err != nil {
		return "", fmt.Errorf("insert boat: %w", err)
	}
	return id, nil
}

// SetAssignments replaces the assignments of boatID. The boat must belong to
// sessionID.
func (s *SQLiteStore) SetAssignments(ctx context.Context, sessionID, boatID string, assignments []model.Assignment) error {
	defer observe("set_assignments", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignments tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT session_id FROM boats WHERE id = ?`, boatID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != sessionID) {
		return fmt.Errorf("%w: boat %s in session %s", ErrNotFound, boatID, sessionID)
	}
	if err != nil {
		return fmt.Errorf("lookup boat: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE boat_id = ?`, boatID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, a := range assignments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (boat_id, athlete_id, seat_number, side) VALUES (?, ?, ?, ?)`,
			boatID, a.AthleteID, a.SeatNumber, string(a.Side),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: seat %d or athlete %s repeated in boat %s", ErrConflict, a.SeatNumber, a.AthleteID, boatID)
		}
		if err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

func (s *SQLiteStore) requireSession(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	return nil
}

// LoadSession reads the full graph of one session. Pieces are ordered by
// sequence, boats by creation and assignments by seat.
func (s *SQLiteStore) LoadSession(ctx context.Context, id string) (StoredSession, error) {
	defer observe("load_session", time.Now())

	var (
		out           StoredSession
		date, created string
		processed     int
		processedAt   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, date, boat_class, conditions, location, description, processed, processed_at, created_at
         FROM sessions WHERE id = ?`, id,
	).Scan(&out.ID, &date, &out.BoatClass, &out.Conditions, &out.Location, &out.Description, &processed, &processedAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSession{}, fmt.Errorf("%w: session %s", ErrNotFound, id)
	}
	if err != nil {
		return StoredSession{}, fmt.Errorf("get session: %w", err)
	}
	out.Date = parseTime(date)
	out.CreatedAt = parseTime(created)
	out.Processed = processed != 0
	if processedAt.Valid {
		t := parseTime(processedAt.String)
		out.ProcessedAt = &t
	}

	pieces, err := s.loadPieces(ctx, id)
	if err != nil {
		return StoredSession{}, err
	}
	out.Pieces = pieces
	return out, nil
}

func (s *SQLiteStore) loadPieces(ctx context.Context, sessionID string) ([]model.Piece, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sequence_order, distance_meters, direction, notes
         FROM pieces WHERE session_id = ? ORDER BY sequence_order`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query pieces: %w", err)
	}
	defer rows.Close()

	var (
		pieces  []model.Piece
		pieceAt = make(map[string]int)
	)
	for rows.Next() {
		var (
			p        model.Piece
			distance sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.SequenceOrder, &distance, &p.Direction, &p.Notes); err != nil {
			return nil, fmt.Errorf("scan piece: %w", err)
		}
		if distance.Valid {
			d := int(distance.Int64)
			p.DistanceMeters = &d
		}
		p.Boats = []model.Boat{}
		pieceAt[p.ID] = len(pieces)
		pieces = append(pieces, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pieces: %w", err)
	}

	boatRows, err := s.db.QueryContext(ctx,
		`SELECT id, piece_id, name, finish_time_seconds, handicap_seconds
         FROM boats WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query boats: %w", err)
	}
	defer boatRows.Close()

	type loc struct{ piece, boat int }
	boatAt := make(map[string]loc)
	for boatRows.Next() {
		var (
			b       model.Boat
			pieceID string
			finish  sql.NullFloat64
		)
		if err := boatRows.Scan(&b.ID, &pieceID, &b.Name, &finish, &b.HandicapSeconds); err != nil {
			return nil, fmt.Errorf("scan boat: %w", err)
		}
		if finish.Valid {
			v := finish.Float64
			b.FinishTimeSeconds = &v
		}
		pi, ok := pieceAt[pieceID]
		if !ok {
			continue
		}
		boatAt[b.ID] = loc{piece: pi, boat: len(pieces[pi].Boats)}
		pieces[pi].Boats = append(pieces[pi].Boats, b)
	}
	if err := boatRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate boats: %w", err)
	}

	seatRows, err := s.db.QueryContext(ctx,
		`SELECT a.boat_id, a.athlete_id, a.seat_number, a.side
         FROM assignments a JOIN boats b ON b.id = a.boat_id
         WHERE b.session_id = ? ORDER BY a.seat_number`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer seatRows.Close()

	for seatRows.Next() {
		var (
			boatID, side string
			a            model.Assignment
		)
		if err := seatRows.Scan(&boatID, &a.AthleteID, &a.SeatNumber, &side); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.Side = model.Side(side)
		if l, ok := boatAt[boatID]; ok {
			b := &pieces[l.piece].Boats[l.boat]
			b.Assignments = append(b.Assignments, a)
		}
	}
	if err := seatRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return pieces, nil
}

// ListSessionIDs returns every session id ordered by date, then creation.
func (s *SQLiteStore) ListSessionIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY date, created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return ids, nil
}

// CountSessions returns the number of stored and processed sessions.
func (s *SQLiteStore) CountSessions(ctx context.Context) (total, processed int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(processed), 0) FROM sessions`,
	).Scan(&total, &processed)
	if err != nil {
		return 0, 0, fmt.Errorf("count sessions: %w", err)
	}
	return total, processed, nil
}

// LoadRatings returns every stored rating.
func (s *SQLiteStore) LoadRatings(ctx context.Context) ([]model.Rating, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT athlete_id, rating, races, wins, updated_at FROM ratings ORDER BY athlete_id`)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	var out []model.Rating
	for rows.Next() {
		var (
			r       model.Rating
			updated string
		)
		if err := rows.Scan(&r.AthleteID, &r.Rating, &r.Races, &r.Wins, &updated); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return out, nil
}

// ApplyProcessing writes the updates of one processing run and marks the
// session processed in a single transaction. It fails with
// ErrAlreadyProcessed if the session was processed before. The written
// rating rows are returned.
func (s *SQLiteStore) ApplyProcessing(ctx context.Context, sessionID string, updates []rating.Update) ([]model.Rating, error) {
	defer observe("apply_processing", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin processing tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UTC()
	stamp := now.Format(timeLayout)
	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET processed = 1, processed_at = ? WHERE id = ? AND processed = 0`, stamp, sessionID)
	if err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("lookup session: %w", err)
		}
		if exists == 0 {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, sessionID)
	}

	out := make([]model.Rating, 0, len(updates))
	for _, u := range updates {
		var r model.Rating
		err := tx.QueryRowContext(ctx,
			`INSERT INTO ratings (athlete_id, rating, races, wins, updated_at) VALUES (?, ?, ?, ?, ?)
             ON CONFLICT(athlete_id) DO UPDATE SET
                 rating = excluded.rating,
                 races = ratings.races + excluded.races,
                 wins = ratings.wins + excluded.wins,
                 updated_at = excluded.updated_at
             RETURNING athlete_id, rating, races, wins`,
			u.AthleteID, u.NewRating, u.Races, u.Wins, stamp,
		).Scan(&r.AthleteID, &r.Rating, &r.Races, &r.Wins)
		if err != nil {
			return nil, fmt.Errorf("upsert rating %s: %w", u.AthleteID, err)
		}
		r.UpdatedAt = now
		out = append(out, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit processing: %w", err)
	}
	return out, nil
}

// ReplaceAllRatings swaps the whole rating table for ratings and marks every
// session in processed as processed.
func (s *SQLiteStore) ReplaceAllRatings(ctx context.Context, ratings []model.Rating, processed []string) error {
	defer observe("replace_ratings", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recalculation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stamp := s.stamp()
	if _, err := tx.ExecContext(ctx, `DELETE FROM ratings`); err != nil {
		return fmt.Errorf("clear ratings: %w", err)
	}
	for _, r := range ratings {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ratings (athlete_id, rating, races, wins, updated_at) VALUES (?, ?, ?, ?, ?)`,
			r.AthleteID, r.Rating, r.Races, r.Wins, stamp,
		); err != nil {
			return fmt.Errorf("insert rating %s: %w", r.AthleteID, err)
		}
	}
	for _, id := range processed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE sessions SET processed = 1, processed_at = COALESCE(processed_at, ?) WHERE id = ?`, stamp, id,
		); err != nil {
			return fmt.Errorf("mark processed %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recalculation: %w", err)
	}
	return nil
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
