package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
)

// Documents written by older clients are loose: instants show up as BSON
// dates, epoch numbers, RFC3339 strings or {seconds, nanoseconds} objects,
// numbers and prices sometimes as numerics. The doc types below accept all of
// them and the toModel constructors hand core code one canonical shape.

// bsonInstant decodes any stored instant representation into UTC time.
type bsonInstant struct {
	time.Time
}

func instant(t time.Time) bsonInstant {
	return bsonInstant{Time: t}
}

func (i bsonInstant) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if i.Time.IsZero() {
		return bsontype.Null, nil, nil
	}
	return bson.MarshalValue(primitive.NewDateTimeFromTime(i.Time))
}

func (i *bsonInstant) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.Null, bsontype.Undefined:
		i.Time = time.Time{}
	case bsontype.DateTime:
		i.Time = rv.Time().UTC()
	case bsontype.Timestamp:
		sec, _ := rv.Timestamp()
		i.Time = time.Unix(int64(sec), 0).UTC()
	case bsontype.Int64:
		i.Time = time.UnixMilli(rv.Int64()).UTC()
	case bsontype.Double:
		i.Time = time.UnixMilli(int64(rv.Double())).UTC()
	case bsontype.Int32:
		// 32 bits only fits epoch seconds
		i.Time = time.Unix(int64(rv.Int32()), 0).UTC()
	case bsontype.String:
		parsed, err := parseInstantString(rv.StringValue())
		if err != nil {
			return err
		}
		i.Time = parsed
	case bsontype.EmbeddedDocument:
		parsed, err := parseInstantDocument(rv.Document())
		if err != nil {
			return err
		}
		i.Time = parsed
	default:
		return fmt.Errorf("unsupported instant type %s", t)
	}
	return nil
}

var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseInstantString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range instantLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable instant %q", s)
}

func parseInstantDocument(doc bson.Raw) (time.Time, error) {
	sec, ok := lookupInt(doc, "seconds", "_seconds")
	if !ok {
		return time.Time{}, fmt.Errorf("instant document without seconds")
	}
	nsec, _ := lookupInt(doc, "nanoseconds", "_nanoseconds")
	return time.Unix(sec, nsec).UTC(), nil
}

func lookupInt(doc bson.Raw, keys ...string) (int64, bool) {
	for _, key := range keys {
		rv, err := doc.LookupErr(key)
		if err != nil {
			continue
		}
		switch rv.Type {
		case bsontype.Int32:
			return int64(rv.Int32()), true
		case bsontype.Int64:
			return rv.Int64(), true
		case bsontype.Double:
			return int64(rv.Double()), true
		}
	}
	return 0, false
}

// bsonDecimal accepts prices stored as strings, numerics or Decimal128.
type bsonDecimal struct {
	decimal.Decimal
}

func (d bsonDecimal) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(d.Decimal.String())
}

func (d *bsonDecimal) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.Null, bsontype.Undefined:
		d.Decimal = decimal.Zero
	case bsontype.String:
		v, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return fmt.Errorf("ticket price: %w", err)
		}
		d.Decimal = v
	case bsontype.Double:
		d.Decimal = decimal.NewFromFloat(rv.Double())
	case bsontype.Int32:
		d.Decimal = decimal.NewFromInt32(rv.Int32())
	case bsontype.Int64:
		d.Decimal = decimal.NewFromInt(rv.Int64())
	case bsontype.Decimal128:
		v, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return fmt.Errorf("ticket price: %w", err)
		}
		d.Decimal = v
	default:
		return fmt.Errorf("unsupported price type %s", t)
	}
	return nil
}

// bsonNumbers keeps ticket numbers as a six character string even when a
// client stored them as an integer and dropped the leading zeros.
type bsonNumbers string

func (n *bsonNumbers) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.String:
		*n = bsonNumbers(rv.StringValue())
	case bsontype.Int32:
		*n = bsonNumbers(fmt.Sprintf("%06d", rv.Int32()))
	case bsontype.Int64:
		*n = bsonNumbers(fmt.Sprintf("%06d", rv.Int64()))
	case bsontype.Double:
		*n = bsonNumbers(fmt.Sprintf("%06d", int64(rv.Double())))
	default:
		return fmt.Errorf("unsupported numbers type %s", t)
	}
	return nil
}

type drawDoc struct {
	ID               string              `bson:"_id"`
	Name             string              `bson:"name"`
	Description      string              `bson:"description,omitempty"`
	Prize            string              `bson:"prize,omitempty"`
	TicketPrice      bsonDecimal         `bson:"ticketPrice"`
	StartDate        bsonInstant         `bson:"startDate"`
	EndDate          bsonInstant         `bson:"endDate"`
	AnnouncementDate bsonInstant         `bson:"announcementDate"`
	Status           string              `bson:"status"`
	RoundWinners     map[string][]string `bson:"roundWinners,omitempty"`
	WinningTicketID  string              `bson:"winningTicketId,omitempty"`
	WinnerID         string              `bson:"winnerId,omitempty"`
	PrizeStatus      string              `bson:"prizeStatus,omitempty"`
	CreatedAt        bsonInstant         `bson:"createdAt"`
	UpdatedAt        bsonInstant         `bson:"updatedAt"`
}

func newDrawDoc(d *models.Draw) drawDoc {
	doc := drawDoc{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		Prize:            d.Prize,
		TicketPrice:      bsonDecimal{Decimal: d.TicketPrice},
		StartDate:        instant(d.StartDate),
		EndDate:          instant(d.EndDate),
		AnnouncementDate: instant(d.AnnouncementDate),
		Status:           string(d.Status),
		WinningTicketID:  d.WinningTicketID,
		WinnerID:         d.WinnerID,
		PrizeStatus:      string(d.PrizeStatus),
		CreatedAt:        instant(d.CreatedAt),
		UpdatedAt:        instant(d.UpdatedAt),
	}
	if len(d.RoundWinners) > 0 {
		doc.RoundWinners = make(map[string][]string, len(d.RoundWinners))
		for r, ids := range d.RoundWinners {
			doc.RoundWinners[strconv.Itoa(r)] = ids
		}
	}
	return doc
}

func (doc drawDoc) toModel() (*models.Draw, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("draw document without id")
	}

	status := models.DrawStatus(doc.Status)
	if status == "" {
		status = models.StatusUpcoming
	}
	if !status.Valid() {
		return nil, fmt.Errorf("draw %s: unknown status %q", doc.ID, doc.Status)
	}

	var rounds models.RoundWinners
	if len(doc.RoundWinners) > 0 {
		rounds = make(models.RoundWinners, len(doc.RoundWinners))
		for key, ids := range doc.RoundWinners {
			r, err := strconv.Atoi(key)
			if err != nil || r < models.FirstRound || r > models.FinalRound {
				return nil, fmt.Errorf("draw %s: invalid round key %q", doc.ID, key)
			}
			if ids == nil {
				ids = []string{}
			}
			rounds[r] = ids
		}
	}

	return &models.Draw{
		ID:               doc.ID,
		Name:             doc.Name,
		Description:      doc.Description,
		Prize:            doc.Prize,
		TicketPrice:      doc.TicketPrice.Decimal,
		StartDate:        doc.StartDate.Time,
		EndDate:          doc.EndDate.Time,
		AnnouncementDate: doc.AnnouncementDate.Time,
		Status:           status,
		RoundWinners:     rounds,
		WinningTicketID:  doc.WinningTicketID,
		WinnerID:         doc.WinnerID,
		PrizeStatus:      models.PrizeStatus(doc.PrizeStatus),
		CreatedAt:        doc.CreatedAt.Time,
		UpdatedAt:        doc.UpdatedAt.Time,
	}, nil
}

type userDoc struct {
	ID        string      `bson:"_id"`
	Name      string      `bson:"name"`
	Phone     string      `bson:"phone"`
	Role      string      `bson:"role,omitempty"`
	TicketIDs []string    `bson:"ticketIds"`
	CreatedAt bsonInstant `bson:"createdAt"`
}

func newUserDoc(u *models.User) userDoc {
	ids := u.TicketIDs
	if ids == nil {
		ids = []string{}
	}
	return userDoc{
		ID:        u.ID,
		Name:      u.Name,
		Phone:     u.Phone,
		Role:      string(u.Role),
		TicketIDs: ids,
		CreatedAt: instant(u.CreatedAt),
	}
}

func (doc userDoc) toModel() *models.User {
	role := models.Role(doc.Role)
	if role == "" {
		role = models.RoleUser
	}
	return &models.User{
		ID:        doc.ID,
		Name:      doc.Name,
		Phone:     doc.Phone,
		Role:      role,
		TicketIDs: doc.TicketIDs,
		CreatedAt: doc.CreatedAt.Time,
	}
}

type ticketDoc struct {
	ID           string      `bson:"_id"`
	DrawID       string      `bson:"drawId"`
	UserID       string      `bson:"userId"`
	Numbers      bsonNumbers `bson:"numbers"`
	PurchaseDate bsonInstant `bson:"purchaseDate"`
	IsReferral   bool        `bson:"isReferral"`

	// filled by the $lookup join only
	User *userDoc `bson:"user,omitempty"`
}

func newTicketDoc(t *models.Ticket) ticketDoc {
	return ticketDoc{
		ID:           t.ID,
		DrawID:       t.DrawID,
		UserID:       t.UserID,
		Numbers:      bsonNumbers(t.Numbers),
		PurchaseDate: instant(t.PurchaseDate),
		IsReferral:   t.IsReferral,
	}
}

func (doc ticketDoc) toModel() (*models.TicketWithUser, error) {
	if err := models.ValidateNumbers(string(doc.Numbers)); err != nil {
		return nil, fmt.Errorf("ticket %s: %w", doc.ID, err)
	}

	entry := &models.TicketWithUser{
		Ticket: models.Ticket{
			ID:           doc.ID,
			DrawID:       doc.DrawID,
			UserID:       doc.UserID,
			Numbers:      string(doc.Numbers),
			PurchaseDate: doc.PurchaseDate.Time,
			IsReferral:   doc.IsReferral,
		},
	}
	if doc.User != nil && doc.User.ID != "" {
		entry.User = doc.User.toModel()
	}
	return entry, nil
}
