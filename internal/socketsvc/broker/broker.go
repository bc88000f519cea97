package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/prizedraw-services/internal/comm"
)

type Broker struct {
	Conn           *nats.Conn
	OnDrawUpdate   func(*comm.DrawSnapshot)
	requestTimeout time.Duration
}

func NewBroker(conn *nats.Conn, onDrawUpdate func(*comm.DrawSnapshot)) *Broker {
	return &Broker{
		Conn:           conn,
		OnDrawUpdate:   onDrawUpdate,
		requestTimeout: 5 * time.Second,
	}
}

// consume draw updates from the draw service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// handleMessages receive message from draw service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Type {
	case comm.TypeDrawUpdated:
		snap := &comm.DrawSnapshot{}
		if err := json.Unmarshal(message.Data, snap); err != nil {
			log.Errorf("Error malformed draw update %s", err)
			return
		}
		if b.OnDrawUpdate != nil {
			b.OnDrawUpdate(snap)
		}
	default:
		log.Warnf("Unknown message %s", message.Type)
	}
}

// RequestSnapshot asks the draw service for the persisted state of a draw.
func (b *Broker) RequestSnapshot(drawID string) (*comm.DrawSnapshot, error) {
	msg, err := comm.NewMessage(comm.TypeDrawSnapshot, comm.SnapshotRequest{DrawID: drawID}, "")
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	reply, err := b.Conn.Request(comm.SubjectDrawSnapshot, payload, b.requestTimeout)
	if err != nil {
		return nil, fmt.Errorf("snapshot request for draw %s: %w", drawID, err)
	}
	return decodeSnapshotReply(reply.Data)
}

func decodeSnapshotReply(data []byte) (*comm.DrawSnapshot, error) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, err
	}

	switch message.Type {
	case comm.TypeDrawSnapshot:
		snap := &comm.DrawSnapshot{}
		if err := json.Unmarshal(message.Data, snap); err != nil {
			return nil, err
		}
		return snap, nil
	case comm.TypeError:
		var e comm.ErrorData
		if err := json.Unmarshal(message.Data, &e); err != nil {
			return nil, err
		}
		return nil, errors.New(e.Message)
	}
	return nil, fmt.Errorf("unexpected reply type %q", message.Type)
}
