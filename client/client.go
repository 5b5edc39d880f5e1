// Package client implements the coordinator side of the log: it fans one
// logical call out to every validator, verifies replies, and certifies the
// first quorum of matching answers.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chainbound/dato/blssig"
	"github.com/chainbound/dato/common"
	"github.com/chainbound/dato/internal/gethlog"
	"github.com/chainbound/dato/transport"
	"github.com/chainbound/dato/wire"
)

var log = gethlog.New("module", "client")

// DefaultWriteTimeout and DefaultReadTimeout are the per-validator
// deadlines applied when a Config leaves them zero.
const (
	DefaultWriteTimeout = 1000 * time.Millisecond
	DefaultReadTimeout  = 1000 * time.Millisecond
)

// Spec is the coordinator-side contract the HTTP API (and any other
// frontend) depends on, split from Coordinator the way the original's
// ClientSpec trait is split from its concrete Client so an alternate
// transport can stand in without touching client/api.go.
type Spec interface {
	Write(ctx context.Context, namespace common.Namespace, message common.Message) (common.CertifiedRecord, error)
	Read(ctx context.Context, namespace common.Namespace, start, end common.Timestamp) (common.Log, error)
	ReadCertified(ctx context.Context, namespace common.Namespace, start, end common.Timestamp) (common.CertifiedLog, error)
	ReadMessage(ctx context.Context, namespace common.Namespace, msgID common.Digest) (common.CertifiedReadMessageResponse, error)
	Subscribe(ctx context.Context, namespace common.Namespace) (<-chan common.Record, error)
	SubscribeCertified(ctx context.Context, namespace common.Namespace) (<-chan common.CertifiedRecord, error)
	Close()
}

var _ Spec = (*Coordinator)(nil)

// Endpoint binds one validator's stable index and public key to its
// request-endpoint dial URL (ws://host:port/).
type Endpoint struct {
	Index      int
	PublicKey  blssig.PublicKey
	RequestURL string
}

// Config configures a Coordinator's per-validator timeouts.
type Config struct {
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

type validatorConn struct {
	index      int
	publicKey  blssig.PublicKey
	requestURL string
	client     *transport.ReqRepClient
}

// Coordinator holds a map of validator-index -> {public key, request
// endpoint} and is the sole owner of the request sockets it dials.
type Coordinator struct {
	validators []*validatorConn
	cfg        Config
}

// Dial connects to every endpoint and returns a ready Coordinator.
func Dial(endpoints []Endpoint, cfg Config) (*Coordinator, error) {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	c := &Coordinator{cfg: cfg}
	for _, ep := range endpoints {
		rc, err := transport.DialReqRep(ep.RequestURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("client: dialing validator %d: %w", ep.Index, err)
		}
		c.validators = append(c.validators, &validatorConn{
			index: ep.Index, publicKey: ep.PublicKey, requestURL: ep.RequestURL, client: rc,
		})
	}
	return c, nil
}

// Close disconnects from every validator.
func (c *Coordinator) Close() {
	for _, v := range c.validators {
		v.client.Close()
	}
}

// N returns the number of validators the coordinator is connected to.
func (c *Coordinator) N() int { return len(c.validators) }

type rawReply struct {
	index int
	data  []byte
	err   error
}

// fanOut sends payload to every validator in parallel and streams back raw
// replies on the returned channel in arrival order. The channel is closed
// after exactly len(c.validators) replies (or ctx cancellation makes each
// remaining dial return an error reply). Cancelling ctx aborts stragglers.
func (c *Coordinator) fanOut(ctx context.Context, payload []byte) <-chan rawReply {
	out := make(chan rawReply, len(c.validators))
	g, gctx := errgroup.WithContext(ctx)
	for _, v := range c.validators {
		v := v
		g.Go(func() error {
			data, err := v.client.Request(gctx, payload)
			out <- rawReply{index: v.index, data: data, err: err}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(out)
	}()
	return out
}

func (c *Coordinator) publicKey(index int) (blssig.PublicKey, bool) {
	for _, v := range c.validators {
		if v.index == index {
			return v.publicKey, true
		}
	}
	return blssig.PublicKey{}, false
}

// Write serializes the write request once, fans it out, and returns as
// soon as a quorum of validators has signed matching records.
func (c *Coordinator) Write(ctx context.Context, namespace common.Namespace, message common.Message) (common.CertifiedRecord, error) {
	n := len(c.validators)
	req := wire.Request{Write: &wire.WriteRequest{Namespace: namespace, Message: message}}
	payload, err := json.Marshal(req)
	if err != nil {
		return common.CertifiedRecord{}, fmt.Errorf("client: encoding write request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	replies := c.fanOut(ctx, payload)

	timestamps := make([]common.Timestamp, n)
	var aggregate blssig.Signature
	haveAggregate := false
	votes := 0
	var voterPubKeys []blssig.PublicKey
	var voterDigests [][]byte

	for reply := range replies {
		if reply.err != nil {
			log.Debug("write: validator unreachable", "index", reply.index, "err", reply.err)
			continue
		}
		var record common.Record
		if err := json.Unmarshal(reply.data, &record); err != nil {
			log.Debug("write: failed to parse reply", "index", reply.index, "err", err)
			continue
		}
		if string(record.Message) != string(message) {
			log.Warn("write: validator returned mismatched message, ignoring", "index", reply.index)
			continue
		}
		digest := common.RecordDigest(namespace, record.Timestamp, record.Message)
		pub, ok := c.publicKey(reply.index)
		if !ok || !blssig.Verify(record.Signature, pub, digest.Bytes()) {
			log.Warn("write: signature verification failed, ignoring", "index", reply.index)
			continue
		}

		if !haveAggregate {
			aggregate = record.Signature
			haveAggregate = true
		} else {
			aggregate, err = blssig.AddSignature(aggregate, record.Signature)
			if err != nil {
				log.Error("write: failed to extend aggregate", "err", err)
				continue
			}
		}
		timestamps[reply.index] = record.Timestamp
		voterPubKeys = append(voterPubKeys, pub)
		voterDigests = append(voterDigests, digest.Bytes())
		votes++

		if common.Quorum(n, votes) {
			cancel()
			break
		}
	}

	if !common.Quorum(n, votes) {
		return common.CertifiedRecord{}, &common.NoQuorumError{Got: votes, Needed: n}
	}
	if !blssig.VerifyAggregate(aggregate, voterPubKeys, voterDigests) {
		return common.CertifiedRecord{}, fmt.Errorf("client: aggregate signature failed re-verification")
	}
	return common.CertifiedRecord{Timestamps: timestamps, Message: message, QuorumSignature: aggregate}, nil
}

// Read fans out ReadRange and returns the merged, verified, timestamp-sorted
// union of every validator's reply. It is a convenience aggregator: no
// quorum is required.
func (c *Coordinator) Read(ctx context.Context, namespace common.Namespace, start, end common.Timestamp) (common.Log, error) {
	req := wire.Request{ReadRange: &wire.ReadRangeRequest{Namespace: namespace, Start: start, End: end}}
	payload, err := json.Marshal(req)
	if err != nil {
		return common.Log{}, fmt.Errorf("client: encoding read request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	var merged common.Log
	for reply := range c.fanOut(ctx, payload) {
		if reply.err != nil {
			log.Debug("read: validator unreachable", "index", reply.index, "err", reply.err)
			continue
		}
		var l common.Log
		if err := json.Unmarshal(reply.data, &l); err != nil {
			log.Debug("read: failed to parse reply", "index", reply.index, "err", err)
			continue
		}

		pub, ok := c.publicKey(reply.index)
		if !ok {
			continue
		}
		valid := true
		for _, record := range l.Records {
			digest := record.Digest(namespace)
			if !blssig.Verify(record.Signature, pub, digest.Bytes()) {
				valid = false
				break
			}
		}
		if !valid {
			log.Warn("read: rejecting reply with invalid signature", "index", reply.index)
			continue
		}
		merged.Extend(l)
	}

	sort.Slice(merged.Records, func(i, j int) bool {
		return merged.Records[i].Timestamp < merged.Records[j].Timestamp
	})
	return merged, nil
}

// ReadMessage fans out ReadMessage and returns whichever side — Available
// or Unavailable — independently reaches quorum first.
func (c *Coordinator) ReadMessage(ctx context.Context, namespace common.Namespace, msgID common.Digest) (common.CertifiedReadMessageResponse, error) {
	n := len(c.validators)
	req := wire.Request{ReadMessage: &wire.ReadMessageRequest{Namespace: namespace, MsgID: msgID}}
	payload, err := json.Marshal(req)
	if err != nil {
		return common.CertifiedReadMessageResponse{}, fmt.Errorf("client: encoding read-message request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	availTimestamps := make([]common.Timestamp, n)
	unavailTimestamps := make([]common.Timestamp, n)
	var availAgg, unavailAgg blssig.Signature
	haveAvailAgg, haveUnavailAgg := false, false
	availVotes, unavailVotes := 0, 0
	var availPubKeys, unavailPubKeys []blssig.PublicKey
	var availDigests, unavailDigests [][]byte
	var availMessage common.Message

	for reply := range c.fanOut(ctx, payload) {
		if reply.err != nil {
			log.Debug("read-message: validator unreachable", "index", reply.index, "err", reply.err)
			continue
		}
		var resp common.ReadMessageResponse
		if err := json.Unmarshal(reply.data, &resp); err != nil {
			log.Debug("read-message: failed to parse reply", "index", reply.index, "err", err)
			continue
		}
		pub, ok := c.publicKey(reply.index)
		if !ok {
			continue
		}

		switch {
		case resp.Available != nil:
			record := *resp.Available
			if common.MessageDigest(namespace, record.Message) != msgID {
				log.Warn("read-message: reply message does not hash to requested msgId", "index", reply.index)
				continue
			}
			digest := record.Digest(namespace)
			if !blssig.Verify(record.Signature, pub, digest.Bytes()) {
				log.Warn("read-message: invalid signature on available reply", "index", reply.index)
				continue
			}
			if !haveAvailAgg {
				availAgg, haveAvailAgg = record.Signature, true
			} else if availAgg, err = blssig.AddSignature(availAgg, record.Signature); err != nil {
				continue
			}
			availTimestamps[reply.index] = record.Timestamp
			availPubKeys = append(availPubKeys, pub)
			availDigests = append(availDigests, digest.Bytes())
			availMessage = record.Message
			availVotes++

		case resp.Unavailable != nil:
			um := *resp.Unavailable
			digest := um.Digest()
			if !blssig.Verify(um.Signature, pub, digest.Bytes()) {
				log.Warn("read-message: invalid signature on unavailable reply", "index", reply.index)
				continue
			}
			if !haveUnavailAgg {
				unavailAgg, haveUnavailAgg = um.Signature, true
			} else if unavailAgg, err = blssig.AddSignature(unavailAgg, um.Signature); err != nil {
				continue
			}
			unavailTimestamps[reply.index] = um.Timestamp
			unavailPubKeys = append(unavailPubKeys, pub)
			unavailDigests = append(unavailDigests, digest.Bytes())
			unavailVotes++
		}

		if common.Quorum(n, availVotes) || common.Quorum(n, unavailVotes) || availVotes+unavailVotes == n {
			cancel()
			break
		}
	}

	switch {
	case common.Quorum(n, availVotes):
		if !blssig.VerifyAggregate(availAgg, availPubKeys, availDigests) {
			return common.CertifiedReadMessageResponse{}, fmt.Errorf("client: available aggregate failed re-verification")
		}
		return common.CertifiedReadMessageResponse{Available: &common.CertifiedRecord{
			Timestamps: availTimestamps, Message: availMessage, QuorumSignature: availAgg,
		}}, nil
	case common.Quorum(n, unavailVotes):
		if !blssig.VerifyAggregate(unavailAgg, unavailPubKeys, unavailDigests) {
			return common.CertifiedReadMessageResponse{}, fmt.Errorf("client: unavailable aggregate failed re-verification")
		}
		return common.CertifiedReadMessageResponse{Unavailable: &common.CertifiedUnavailableMessage{
			Timestamps: unavailTimestamps, MsgID: msgID, QuorumSignature: unavailAgg,
		}}, nil
	default:
		return common.CertifiedReadMessageResponse{}, &common.ReadMessageNoQuorumError{
			Available: availVotes, Unavailable: unavailVotes,
		}
	}
}

// ReadCertified implements Read followed by a per-record ReadMessage,
// dropping Unavailable results. Deliberately naive: callers needing higher
// throughput should batch or cache ReadMessage results themselves.
func (c *Coordinator) ReadCertified(ctx context.Context, namespace common.Namespace, start, end common.Timestamp) (common.CertifiedLog, error) {
	l, err := c.Read(ctx, namespace, start, end)
	if err != nil {
		return common.CertifiedLog{}, err
	}

	var out common.CertifiedLog
	for _, record := range l.Records {
		msgID := common.MessageDigest(namespace, record.Message)
		resp, err := c.ReadMessage(ctx, namespace, msgID)
		if err != nil {
			continue
		}
		if resp.Available != nil {
			out.Records = append(out.Records, *resp.Available)
		}
	}
	return out, nil
}
