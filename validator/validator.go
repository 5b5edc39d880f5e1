// Package validator implements the validator side of the log: it signs and
// stores records, answers read requests, and fans out writes to subscribers
// of their namespace.
package validator

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/chainbound/dato/blssig"
	"github.com/chainbound/dato/common"
	"github.com/chainbound/dato/internal/gethlog"
	"github.com/chainbound/dato/store"
	"github.com/chainbound/dato/transport"
	"github.com/chainbound/dato/wire"
)

var log = gethlog.New("module", "validator")

// Spec is the validator-side contract a request handler depends on,
// split from Validator the way the original's ValidatorSpec trait is
// split from its concrete Validator.
type Spec interface {
	RequestAddr() string
	PublisherAddr() string
	Close() error
}

var _ Spec = (*Validator)(nil)

// Config configures a Validator's bind addresses and store capacity.
type Config struct {
	// RequestAddr is the request/reply bind address, e.g. ":9000".
	RequestAddr string
	// PublisherAddr is the publisher bind address. If empty, it defaults to
	// RequestAddr's port + 1, the conventional pairing.
	PublisherAddr string
	// StoreCapacity is the per-namespace record limit. Zero uses
	// store.DefaultCapacity.
	StoreCapacity int
}

// Validator owns a Store, a signing key, a request/reply endpoint, and a
// topic publisher.
type Validator struct {
	secretKey *blssig.SecretKey
	store     *store.Store

	reqServer *transport.ReqRepServer
	publisher *transport.Publisher

	mu            sync.Mutex
	subscriptions map[string]struct{}
}

// New constructs a Validator bound to the addresses in cfg, listening
// immediately.
func New(secretKey *blssig.SecretKey, cfg Config) (*Validator, error) {
	v := &Validator{
		secretKey:     secretKey,
		store:         store.New(cfg.StoreCapacity),
		subscriptions: make(map[string]struct{}),
	}

	reqServer, err := transport.ListenReqRep(cfg.RequestAddr, v.handleRequest)
	if err != nil {
		return nil, fmt.Errorf("validator: binding request endpoint: %w", err)
	}
	v.reqServer = reqServer

	pubAddr := cfg.PublisherAddr
	if pubAddr == "" {
		pubAddr = defaultPublisherAddr(reqServer.Addr().String())
	}
	publisher, err := transport.ListenPublisher(pubAddr)
	if err != nil {
		reqServer.Close()
		return nil, fmt.Errorf("validator: binding publisher endpoint: %w", err)
	}
	v.publisher = publisher

	log.Info("validator listening", "request", reqServer.Addr(), "publisher", publisher.Addr())
	return v, nil
}

// RequestAddr returns the bound request/reply address.
func (v *Validator) RequestAddr() string { return v.reqServer.Addr().String() }

// PublisherAddr returns the bound publisher address.
func (v *Validator) PublisherAddr() string { return v.publisher.Addr().String() }

// Close shuts down both endpoints.
func (v *Validator) Close() error {
	v.reqServer.Close()
	return v.publisher.Close()
}

// handleRequest implements the Receive -> Decode -> Dispatch -> Respond
// state machine. Parse failures are logged and dropped: it returns ok=false
// so transport sends no reply, relying on the caller's timeout.
func (v *Validator) handleRequest(raw []byte) ([]byte, bool) {
	var req wire.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Error("failed to parse request", "err", err)
		return nil, false
	}

	switch {
	case req.Write != nil:
		return v.handleWrite(req.Write)
	case req.ReadRange != nil:
		return v.handleReadRange(req.ReadRange)
	case req.ReadMessage != nil:
		return v.handleReadMessage(req.ReadMessage)
	case req.Subscribe != nil:
		return v.handleSubscribe(req.Subscribe)
	default:
		log.Error("request with no recognized variant set")
		return nil, false
	}
}

func (v *Validator) handleWrite(r *wire.WriteRequest) ([]byte, bool) {
	timestamp := common.Now()
	digest := common.RecordDigest(r.Namespace, timestamp, r.Message)
	signature := v.secretKey.Sign(digest.Bytes())
	record := common.Record{Timestamp: timestamp, Message: r.Message, Signature: signature}

	v.store.WriteOne(r.Namespace, record)

	resp, err := json.Marshal(record)
	if err != nil {
		log.Error("failed to serialize record", "err", err)
		return nil, false
	}

	v.maybePublish(r.Namespace, resp)
	return resp, true
}

func (v *Validator) maybePublish(namespace common.Namespace, payload []byte) {
	topic := string(namespace)
	v.mu.Lock()
	_, subscribed := v.subscriptions[topic]
	v.mu.Unlock()
	if subscribed {
		v.publisher.Enqueue(topic, payload)
	}
}

func (v *Validator) handleReadRange(r *wire.ReadRangeRequest) ([]byte, bool) {
	l := v.store.ReadRange(r.Namespace, r.Start, r.End)
	resp, err := json.Marshal(l)
	if err != nil {
		log.Error("failed to serialize log", "err", err)
		return nil, false
	}
	return resp, true
}

func (v *Validator) handleReadMessage(r *wire.ReadMessageRequest) ([]byte, bool) {
	var out common.ReadMessageResponse
	if record, ok := v.store.ReadMessage(r.Namespace, r.MsgID); ok {
		out.Available = &record
	} else {
		timestamp := common.Now()
		digest := common.UnavailableDigest(r.MsgID, timestamp)
		signature := v.secretKey.Sign(digest.Bytes())
		out.Unavailable = &common.UnavailableMessage{
			Timestamp: timestamp,
			MsgID:     r.MsgID,
			Signature: signature,
		}
	}

	resp, err := json.Marshal(out)
	if err != nil {
		log.Error("failed to serialize read-message response", "err", err)
		return nil, false
	}
	return resp, true
}

func (v *Validator) handleSubscribe(r *wire.SubscribeRequest) ([]byte, bool) {
	topic := string(r.Namespace)
	v.mu.Lock()
	v.subscriptions[topic] = struct{}{}
	v.mu.Unlock()

	port := publisherPort(v.publisher.Addr().String())
	token := uuid.New()
	out := common.SubscribeResponse{Port: port, AuthToken: token[:]}

	resp, err := json.Marshal(out)
	if err != nil {
		log.Error("failed to serialize subscribe response", "err", err)
		return nil, false
	}
	return resp, true
}
