package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

const (
	DrawsCollection   = "draws"
	TicketsCollection = "tickets"
	UsersCollection   = "users"
)

type MongoStore struct {
	db      *mongo.Database
	draws   *mongo.Collection
	tickets *mongo.Collection
	users   *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:      db,
		draws:   db.Collection(DrawsCollection),
		tickets: db.Collection(TicketsCollection),
		users:   db.Collection(UsersCollection),
	}
}

// EnsureIndexes creates the lookup indexes and the uniqueness guards for
// ticket numbers per draw and user phones.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.tickets.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "drawId", Value: 1}, {Key: "numbers", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("draw_numbers_unique"),
		},
		{
			Keys:    bson.D{{Key: "drawId", Value: 1}, {Key: "purchaseDate", Value: 1}},
			Options: options.Index().SetName("draw_purchase"),
		},
	})
	if err != nil {
		return fmt.Errorf("tickets indexes: %w", err)
	}

	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phone", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("phone_unique"),
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = s.draws.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "status", Value: 1}, {Key: "announcementDate", Value: 1}},
		Options: options.Index().SetName("status_announcement"),
	})
	if err != nil {
		return fmt.Errorf("draws indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	var doc drawDoc
	err := s.draws.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draw %s: %w", id, err)
	}
	return doc.toModel()
}

func (s *MongoStore) CreateDraw(ctx context.Context, d *models.Draw) error {
	if _, err := s.draws.InsertOne(ctx, newDrawDoc(d)); err != nil {
		return fmt.Errorf("could not create draw: %w", err)
	}
	return nil
}

func (s *MongoStore) FindDueDraws(ctx context.Context, now time.Time, statuses []models.DrawStatus) ([]*models.Draw, error) {
	in := make(bson.A, 0, len(statuses))
	for _, st := range statuses {
		in = append(in, string(st))
	}

	filter := bson.D{
		{Key: "announcementDate", Value: bson.D{{Key: "$lte", Value: now}}},
		{Key: "status", Value: bson.D{{Key: "$in", Value: in}}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "announcementDate", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.draws.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find due draws: %w", err)
	}
	defer cur.Close(ctx)

	var due []*models.Draw
	for cur.Next(ctx) {
		var doc drawDoc
		if err := cur.Decode(&doc); err != nil {
			log.Warnf("skipping undecodable draw document: %v", err)
			continue
		}
		d, err := doc.toModel()
		if err != nil {
			log.Warnf("skipping malformed draw document: %v", err)
			continue
		}
		due = append(due, d)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("due draws cursor: %w", err)
	}
	return due, nil
}

// roundFilter matches the draw only while the round is still absent and,
// past round one, the previous round is present.
func roundFilter(res models.RoundResult) bson.D {
	key := "roundWinners." + strconv.Itoa(res.Round)
	filter := bson.D{
		{Key: "_id", Value: res.DrawID},
		{Key: key, Value: bson.D{{Key: "$exists", Value: false}}},
	}
	if res.Round > models.FirstRound {
		prev := "roundWinners." + strconv.Itoa(res.Round-1)
		filter = append(filter, bson.E{Key: prev, Value: bson.D{{Key: "$exists", Value: true}}})
	}
	return filter
}

func roundUpdate(res models.RoundResult) bson.D {
	ids := res.TicketIDs
	if ids == nil {
		ids = []string{}
	}
	set := bson.D{
		{Key: "roundWinners." + strconv.Itoa(res.Round), Value: ids},
		{Key: "status", Value: string(res.Status)},
		{Key: "updatedAt", Value: res.At},
	}
	if res.Round == models.FinalRound {
		set = append(set,
			bson.E{Key: "winningTicketId", Value: res.WinningTicketID},
			bson.E{Key: "winnerId", Value: res.WinnerID},
			bson.E{Key: "prizeStatus", Value: string(models.PrizePending)},
		)
	}
	return bson.D{{Key: "$set", Value: set}}
}

// SaveRoundWinners commits a round only while its field is still absent, so
// of two concurrent writers for the same round exactly one matches.
func (s *MongoStore) SaveRoundWinners(ctx context.Context, res models.RoundResult) error {
	r, err := s.draws.UpdateOne(ctx, roundFilter(res), roundUpdate(res))
	if err != nil {
		return fmt.Errorf("save round %d of draw %s: %w", res.Round, res.DrawID, err)
	}
	if r.MatchedCount == 1 {
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

// closeEndedFilter selects draws whose sales ended but which are not due yet;
// due draws keep their status until the announcement path handles them.
func closeEndedFilter(now time.Time) bson.D {
	return bson.D{
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{string(models.StatusUpcoming), string(models.StatusActive)}}}},
		{Key: "endDate", Value: bson.D{{Key: "$lte", Value: now}}},
		{Key: "announcementDate", Value: bson.D{{Key: "$gt", Value: now}}},
	}
}

func openStartedFilter(now time.Time) bson.D {
	return bson.D{
		{Key: "status", Value: string(models.StatusUpcoming)},
		{Key: "startDate", Value: bson.D{{Key: "$lte", Value: now}}},
		{Key: "endDate", Value: bson.D{{Key: "$gt", Value: now}}},
		{Key: "announcementDate", Value: bson.D{{Key: "$gt", Value: now}}},
	}
}

func (s *MongoStore) RefreshStatuses(ctx context.Context, now time.Time) (int64, error) {
	closed, err := s.draws.UpdateMany(ctx, closeEndedFilter(now),
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(models.StatusAwaitingAnnouncement)},
			{Key: "updatedAt", Value: now},
		}}},
	)
	if err != nil {
		return 0, fmt.Errorf("close ended draws: %w", err)
	}

	opened, err := s.draws.UpdateMany(ctx, openStartedFilter(now),
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: string(models.StatusActive)},
			{Key: "updatedAt", Value: now},
		}}},
	)
	if err != nil {
		return closed.ModifiedCount, fmt.Errorf("open started draws: %w", err)
	}

	return closed.ModifiedCount + opened.ModifiedCount, nil
}

func (s *MongoStore) GetTicketsForDraw(ctx context.Context, drawID string) ([]*models.TicketWithUser, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "drawId", Value: drawID}}}},
		{{Key: "$sort", Value: bson.D{{Key: "purchaseDate", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: UsersCollection},
			{Key: "localField", Value: "userId"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "user"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$user"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}

	cur, err := s.tickets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("tickets for draw %s: %w", drawID, err)
	}
	defer cur.Close(ctx)

	var docs []ticketDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tickets for draw %s: %w", drawID, err)
	}

	pool := make([]*models.TicketWithUser, 0, len(docs))
	for _, doc := range docs {
		entry, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		pool = append(pool, entry)
	}
	return pool, nil
}

func (s *MongoStore) TicketExists(ctx context.Context, drawID, numbers string) (bool, error) {
	n, err := s.tickets.CountDocuments(ctx,
		bson.D{{Key: "drawId", Value: drawID}, {Key: "numbers", Value: numbers}},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("ticket exists: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if _, err := s.tickets.InsertOne(ctx, newTicketDoc(t)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateTicket
		}
		return fmt.Errorf("could not create ticket: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.findUser(ctx, bson.D{{Key: "phone", Value: phone}})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := s.users.InsertOne(ctx, newUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("could not create user: %w", err)
	}
	return nil
}

func (s *MongoStore) AppendTicket(ctx context.Context, userID, ticketID string) error {
	r, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{{Key: "$push", Value: bson.D{{Key: "ticketIds", Value: ticketID}}}},
	)
	if err != nil {
		return fmt.Errorf("append ticket to user %s: %w", userID, err)
	}
	if r.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
