package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/prizedraw-services/configs"
	drawconfig "github.com/avvvet/prizedraw-services/internal/drawsvc/config"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/service"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

type announceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	service.SweepResult
}

func main() {
	cfg := drawconfig.Load()
	if cfg.CronSecret == "" {
		log.Fatal("CRON_SECRET is required to trigger announcements")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Minute}
	ticker := time.NewTicker(cfg.CtlInterval)
	defer ticker.Stop()

	log.Infof("%s service triggering %s every %s", SERVICE_NAME, cfg.DrawServiceURL, cfg.CtlInterval)

	for {
		rsp, err := triggerAnnounce(ctx, client, cfg.DrawServiceURL, cfg.CronSecret)
		if err != nil {
			log.Errorf("announce trigger failed: %v", err)
		} else if len(rsp.Processed)+rsp.Failed > 0 {
			log.Infof("announce sweep: %d processed, %d skipped, %d failed",
				len(rsp.Processed), rsp.Skipped, rsp.Failed)
		}

		select {
		case <-ctx.Done():
			log.Infof("%s service gracefully stopped", SERVICE_NAME)
			return
		case <-ticker.C:
		}
	}
}

// triggerAnnounce runs one sweep on the draw service.
func triggerAnnounce(ctx context.Context, client *http.Client, baseURL, secret string) (*announceResponse, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/v1/cron/announce?secret=" + url.QueryEscape(secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var rsp announceResponse
	if err := json.NewDecoder(res.Body).Decode(&rsp); err != nil {
		return nil, fmt.Errorf("decode announce response (status %d): %w", res.StatusCode, err)
	}
	if res.StatusCode != http.StatusOK || !rsp.Success {
		return &rsp, fmt.Errorf("announce returned %d: %s", res.StatusCode, rsp.Message)
	}
	return &rsp, nil
}
