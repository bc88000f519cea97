package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const drawColumns = `
	id, name, description, prize, ticket_price::text, start_date, end_date, announcement_date,
	status, round_winners, winning_ticket_id, winner_id, prize_status, created_at, updated_at`

func scanDraw(row pgx.Row) (*models.Draw, error) {
	var (
		d                 models.Draw
		price, status     string
		prizeStatus       string
		rawRounds         []byte
		winningTicket, wn *string
	)
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.Prize,
		&price,
		&d.StartDate,
		&d.EndDate,
		&d.AnnouncementDate,
		&status,
		&rawRounds,
		&winningTicket,
		&wn,
		&prizeStatus,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if d.TicketPrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("draw %s: ticket price: %w", d.ID, err)
	}
	d.Status = models.DrawStatus(status)
	if !d.Status.Valid() {
		return nil, fmt.Errorf("draw %s: unknown status %q", d.ID, status)
	}
	d.PrizeStatus = models.PrizeStatus(prizeStatus)
	if winningTicket != nil {
		d.WinningTicketID = *winningTicket
	}
	if wn != nil {
		d.WinnerID = *wn
	}

	if d.RoundWinners, err = decodeRounds(d.ID, rawRounds); err != nil {
		return nil, err
	}
	return &d, nil
}

func decodeRounds(drawID string, raw []byte) (models.RoundWinners, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var byKey map[string][]string
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("draw %s: round winners: %w", drawID, err)
	}
	if len(byKey) == 0 {
		return nil, nil
	}
	rounds := make(models.RoundWinners, len(byKey))
	for key, ids := range byKey {
		r, err := strconv.Atoi(key)
		if err != nil || r < models.FirstRound || r > models.FinalRound {
			return nil, fmt.Errorf("draw %s: invalid round key %q", drawID, key)
		}
		if ids == nil {
			ids = []string{}
		}
		rounds[r] = ids
	}
	return rounds, nil
}

func (s *PgStore) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	d, err := scanDraw(s.db.QueryRow(ctx, `SELECT `+drawColumns+` FROM draws WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draw by ID: %w", err)
	}
	return d, nil
}

func (s *PgStore) CreateDraw(ctx context.Context, d *models.Draw) error {
	rounds := map[string][]string{}
	for r, ids := range d.RoundWinners {
		rounds[strconv.Itoa(r)] = ids
	}
	raw, err := json.Marshal(rounds)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO draws (
			id, name, description, prize, ticket_price, start_date, end_date, announcement_date,
			status, round_winners, prize_status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10::jsonb,$11,$12,$13)`,
		d.ID, d.Name, d.Description, d.Prize, d.TicketPrice.String(),
		d.StartDate, d.EndDate, d.AnnouncementDate,
		string(d.Status), string(raw), string(d.PrizeStatus), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("could not create draw: %w", err)
	}
	return nil
}

func (s *PgStore) FindDueDraws(ctx context.Context, now time.Time, statuses []models.DrawStatus) ([]*models.Draw, error) {
	in := make([]string, 0, len(statuses))
	for _, st := range statuses {
		in = append(in, string(st))
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+drawColumns+`
		FROM draws
		WHERE announcement_date <= $1 AND status = ANY($2)
		ORDER BY announcement_date, id`, now, in)
	if err != nil {
		return nil, fmt.Errorf("select due draws: %w", err)
	}
	defer rows.Close()

	var due []*models.Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draw row: %w", err)
		}
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return due, nil
}

const (
	saveRoundSQL = `
		UPDATE draws
		SET round_winners = round_winners || jsonb_build_object($2::text, $3::jsonb),
		    status = $4, updated_at = $5
		WHERE id = $1 AND NOT (round_winners ? $2) AND ($6 OR round_winners ? $7)`

	saveFinalRoundSQL = `
		UPDATE draws
		SET round_winners = round_winners || jsonb_build_object($2::text, $3::jsonb),
		    status = $4, updated_at = $5,
		    winning_ticket_id = $8, winner_id = $9, prize_status = $10
		WHERE id = $1 AND NOT (round_winners ? $2) AND ($6 OR round_winners ? $7)`

	// draws already due are left to the announcement path
	closeEndedSQL = `
		UPDATE draws SET status = $2, updated_at = $1
		WHERE status IN ($3, $4) AND end_date <= $1 AND announcement_date > $1`

	openStartedSQL = `
		UPDATE draws SET status = $2, updated_at = $1
		WHERE status = $3 AND start_date <= $1 AND end_date > $1 AND announcement_date > $1`
)

// saveRoundQuery builds the conditional update for one round. It matches only
// while the round key is absent and, past round one, the previous key is set.
func saveRoundQuery(res models.RoundResult) (string, []interface{}, error) {
	ids := res.TicketIDs
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", nil, err
	}

	args := []interface{}{
		res.DrawID, strconv.Itoa(res.Round), string(raw), string(res.Status), res.At,
		res.Round == models.FirstRound, strconv.Itoa(res.Round - 1),
	}
	if res.Round != models.FinalRound {
		return saveRoundSQL, args, nil
	}
	args = append(args, res.WinningTicketID, res.WinnerID, string(models.PrizePending))
	return saveFinalRoundSQL, args, nil
}

// SaveRoundWinners only updates the row while the round key is absent; a zero
// row count means another writer got there first.
func (s *PgStore) SaveRoundWinners(ctx context.Context, res models.RoundResult) error {
	query, args, err := saveRoundQuery(res)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update round %d of draw %s: %w", res.Round, res.DrawID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	current, err := s.GetDraw(ctx, res.DrawID)
	if err != nil {
		return err
	}
	if current.RoundWinners.Has(res.Round) {
		return ErrRoundAlreadySet
	}
	return ErrRoundOutOfOrder
}

func (s *PgStore) RefreshStatuses(ctx context.Context, now time.Time) (int64, error) {
	closed, err := s.db.Exec(ctx, closeEndedSQL,
		now, string(models.StatusAwaitingAnnouncement),
		string(models.StatusUpcoming), string(models.StatusActive),
	)
	if err != nil {
		return 0, fmt.Errorf("close ended draws: %w", err)
	}

	opened, err := s.db.Exec(ctx, openStartedSQL,
		now, string(models.StatusActive), string(models.StatusUpcoming),
	)
	if err != nil {
		return closed.RowsAffected(), fmt.Errorf("open started draws: %w", err)
	}
	return closed.RowsAffected() + opened.RowsAffected(), nil
}

func (s *PgStore) GetTicketsForDraw(ctx context.Context, drawID string) ([]*models.TicketWithUser, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.draw_id, t.user_id, t.numbers, t.purchase_date, t.is_referral,
		       u.id, u.name, u.phone, u.role, u.created_at
		FROM tickets t
		LEFT JOIN users u ON u.id = t.user_id
		WHERE t.draw_id = $1
		ORDER BY t.purchase_date, t.id`, drawID)
	if err != nil {
		return nil, fmt.Errorf("tickets for draw %s: %w", drawID, err)
	}
	defer rows.Close()

	var pool []*models.TicketWithUser
	for rows.Next() {
		var (
			entry                    models.TicketWithUser
			uid, uname, phone, urole *string
			ucreated                 *time.Time
		)
		err := rows.Scan(
			&entry.ID,
			&entry.DrawID,
			&entry.UserID,
			&entry.Numbers,
			&entry.PurchaseDate,
			&entry.IsReferral,
			&uid,
			&uname,
			&phone,
			&urole,
			&ucreated,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ticket row: %w", err)
		}
		if uid != nil {
			entry.User = &models.User{ID: *uid, Name: deref(uname), Phone: deref(phone), Role: models.Role(deref(urole))}
			if ucreated != nil {
				entry.User.CreatedAt = *ucreated
			}
		}
		pool = append(pool, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return pool, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *PgStore) TicketExists(ctx context.Context, drawID, numbers string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tickets WHERE draw_id = $1 AND numbers = $2)`,
		drawID, numbers,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ticket exists: %w", err)
	}
	return exists, nil
}

func (s *PgStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tickets (id, draw_id, user_id, numbers, purchase_date, is_referral)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		t.ID, t.DrawID, t.UserID, t.Numbers, t.PurchaseDate, t.IsReferral,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTicket
		}
		return fmt.Errorf("could not create ticket: %w", err)
	}
	return nil
}

func (s *PgStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id, name, phone, role, ticket_ids, created_at FROM users WHERE id = $1`, id))
}

func (s *PgStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.scanUser(s.db.QueryRow(ctx, `
		SELECT id, name, phone, role, ticket_ids, created_at FROM users WHERE phone = $1`, phone))
}

func (s *PgStore) scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &role, &u.TicketIDs, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = models.Role(role)
	return u, nil
}

func (s *PgStore) CreateUser(ctx context.Context, u *models.User) error {
	ids := u.TicketIDs
	if ids == nil {
		ids = []string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, name, phone, role, ticket_ids, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Name, u.Phone, string(u.Role), ids, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("could not create user: %w", err)
	}
	return nil
}

func (s *PgStore) AppendTicket(ctx context.Context, userID, ticketID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET ticket_ids = array_append(ticket_ids, $2) WHERE id = $1`,
		userID, ticketID,
	)
	if err != nil {
		return fmt.Errorf("append ticket to user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}
