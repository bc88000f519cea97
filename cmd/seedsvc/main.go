package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/prizedraw-services/configs"
	drawconfig "github.com/avvvet/prizedraw-services/internal/drawsvc/config"
	handlers "github.com/avvvet/prizedraw-services/internal/drawsvc/handlers"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/selector"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/service"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

const SERVICE_NAME = "seed"

var instanceId string

func init() {
	instanceId = "001"
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

// Robot names - mix of first names only and first+last names
var robotNames = []string{
	"Abelo", "meron bekele", "dawit", "mulugeta", "ted",
	"yonas", "liya", "Bereket Alemu", "Eden", "Samuel Yimer",
	"rahel", "Daniel Negash", "Bethel", "Kidus Wolde", "Natan",
}

type seedOptions struct {
	Tickets     int
	SalesWindow time.Duration
	AdminPhone  string
}

type seedResult struct {
	Draw    *models.Draw
	Admin   *models.User
	Tickets []*models.Ticket
}

func main() {
	cfg := drawconfig.Load()
	opts := seedOptions{
		Tickets:     envInt("SEED_TICKETS", 30),
		SalesWindow: envDuration("SEED_SALES_WINDOW", 2*time.Minute),
		AdminPhone:  "0900000000",
	}
	if len(cfg.AdminPhones) > 0 {
		opts.AdminPhone = cfg.AdminPhones[0]
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.StoreDriver, cfg.MongoURI, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close(ctx)

	res, err := seed(ctx, st, cfg.AdminPhones, opts, time.Now)
	if err != nil {
		log.Fatalf("seeding failed: %v", err)
	}

	h := handlers.NewHandler(nil, nil, nil, nil, "")
	h.InitAuth(cfg.JWTSecret)
	token, err := h.IssueToken(res.Admin.ID, 24*time.Hour)
	if err != nil {
		log.Fatalf("unable to issue admin token: %v", err)
	}

	log.Infof("seeded draw %s with %d tickets, announcement at %s",
		res.Draw.ID, len(res.Tickets), res.Draw.AnnouncementDate.Format(time.RFC3339))
	fmt.Printf("draw:  %s\nadmin: %s\ntoken: %s\n", res.Draw.ID, res.Admin.ID, token)
}

// seed creates robot users, one demo draw whose sales are open now, and
// quick-pick tickets spread over the robots.
func seed(ctx context.Context, st store.Store, adminPhones []string, opts seedOptions, now func() time.Time) (*seedResult, error) {
	users := service.NewUserService(st, adminPhones)
	pool := service.NewPoolService(st)
	draws := service.NewDrawService(st, pool)
	tickets := service.NewTicketService(st, st, st, selector.NewFromClock())
	draws.SetClock(now)
	tickets.SetClock(now)

	admin, err := users.GetOrCreateUser(ctx, "admin", opts.AdminPhone)
	if err != nil {
		return nil, fmt.Errorf("admin user: %w", err)
	}

	robots := make([]*models.User, 0, len(robotNames))
	for i, name := range robotNames {
		u, err := users.GetOrCreateUser(ctx, name, fmt.Sprintf("09900000%02d", i+1))
		if err != nil {
			return nil, fmt.Errorf("robot %s: %w", name, err)
		}
		robots = append(robots, u)
	}

	start := now()
	d, err := draws.CreateDraw(ctx, service.NewDraw{
		Name:             "Demo draw " + start.Format("2006-01-02 15:04"),
		Description:      "seeded demo draw",
		Prize:            "Demo prize",
		TicketPrice:      decimal.NewFromInt(10),
		StartDate:        start.Add(-time.Minute),
		EndDate:          start.Add(opts.SalesWindow),
		AnnouncementDate: start.Add(opts.SalesWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("demo draw: %w", err)
	}

	res := &seedResult{Draw: d, Admin: admin}
	for i := 0; len(res.Tickets) < opts.Tickets; i++ {
		if i >= opts.Tickets*4 {
			return nil, fmt.Errorf("gave up after %d quick picks", i)
		}
		owner := robots[i%len(robots)]
		t, err := tickets.Purchase(ctx, owner.ID, d.ID, tickets.QuickPick(), i%5 == 0)
		if err != nil {
			log.Warnf("quick pick for %s rejected: %v", owner.Name, err)
			continue
		}
		res.Tickets = append(res.Tickets, t)
	}
	return res, nil
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
