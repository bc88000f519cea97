package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/comm"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/service"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

type Broker struct {
	Conn        *nats.Conn
	DrawService *service.DrawService
}

func NewBroker(nc *nats.Conn, drawService *service.DrawService) *Broker {
	return &Broker{
		Conn:        nc,
		DrawService: drawService,
	}
}

// PublishDrawUpdate sends the committed state of a draw to every socket service.
func (b *Broker) PublishDrawUpdate(snap *comm.DrawSnapshot) error {
	msg, err := comm.NewMessage(comm.TypeDrawUpdated, snap, "")
	if err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return b.Publish(comm.SubjectDrawEvents, payload)
}

// handles snapshot requests coming from socket services
func (b *Broker) handleSnapshotRequest(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		b.respondError(msgNat, "malformed request")
		return
	}

	var request comm.SnapshotRequest
	if err := json.Unmarshal(msg.Data, &request); err != nil || request.DrawID == "" {
		b.respondError(msgNat, "drawId is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := b.DrawService.Snapshot(ctx, request.DrawID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.respondError(msgNat, "draw not found")
			return
		}
		log.Errorf("Error [DrawService.Snapshot] %s: %s", request.DrawID, err)
		b.respondError(msgNat, "snapshot unavailable")
		return
	}

	reply, err := comm.NewMessage(comm.TypeDrawSnapshot, snap, msg.SocketId)
	if err != nil {
		log.Errorf("unable to marshal snapshot of draw %s: %s", request.DrawID, err)
		return
	}
	b.respond(msgNat, reply)
}

func (b *Broker) respondError(msgNat *nats.Msg, text string) {
	reply, err := comm.NewMessage(comm.TypeError, comm.ErrorData{Message: text}, "")
	if err != nil {
		return
	}
	b.respond(msgNat, reply)
}

func (b *Broker) respond(msgNat *nats.Msg, reply *comm.WSMessage) {
	payload, err := json.Marshal(reply)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	if err := msgNat.Respond(payload); err != nil {
		log.Errorf("Error responding on %s: %s", msgNat.Subject, err)
	}
}

// serve snapshot requests, one responder per queue group
func (b *Broker) QueueSubscribeSnapshots(topic, queueGroup string) (*nats.Subscription, error) {
	return b.Conn.QueueSubscribe(topic, queueGroup, b.handleSnapshotRequest)
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
