package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chainbound/dato/blssig"
	"github.com/chainbound/dato/common"
	"github.com/chainbound/dato/transport"
	"github.com/chainbound/dato/wire"
)

// SubscribeChannelCapacity is the bounded, lossy channel size for both
// Subscribe and SubscribeCertified's output streams.
const SubscribeChannelCapacity = 512

// CertifiedSubscriptionCapacity bounds the FIFO map SubscribeCertified uses
// to group in-flight records by message identity. Once full, the
// oldest message-in-progress is forgotten; any late record for it becomes
// an orphan.
const CertifiedSubscriptionCapacity = 1024

// Subscribe sends Subscribe to every connected validator, opens one
// merged publisher connection per validator that replies, and streams
// every observed Record for namespace onto the returned channel. The
// channel is closed when ctx is cancelled.
func (c *Coordinator) Subscribe(ctx context.Context, namespace common.Namespace) (<-chan common.Record, error) {
	req := wire.Request{Subscribe: &wire.SubscribeRequest{Namespace: namespace}}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client: encoding subscribe request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	sub := transport.NewSubscriber()
	topic := string(namespace)
	connected := 0

	for reply := range c.fanOut(reqCtx, payload) {
		if reply.err != nil {
			log.Debug("subscribe: validator unreachable", "index", reply.index, "err", reply.err)
			continue
		}
		var resp common.SubscribeResponse
		if err := json.Unmarshal(reply.data, &resp); err != nil {
			log.Debug("subscribe: failed to parse reply", "index", reply.index, "err", err)
			continue
		}

		v := c.validatorByIndex(reply.index)
		if v == nil {
			continue
		}
		host, err := requestHost(v.requestURL)
		if err != nil {
			log.Warn("subscribe: failed to resolve validator host", "index", reply.index, "err", err)
			continue
		}
		pubURL := fmt.Sprintf("ws://%s:%d/", host, resp.Port)
		if err := sub.Connect(pubURL, topic); err != nil {
			log.Warn("subscribe: failed to connect to publisher", "index", reply.index, "err", err)
			continue
		}
		connected++
	}

	if connected == 0 {
		return nil, common.ErrFailedToConnect
	}

	out := make(chan common.Record, SubscribeChannelCapacity)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case data, ok := <-sub.Records():
				if !ok {
					return
				}
				var record common.Record
				if err := json.Unmarshal(data, &record); err != nil {
					log.Debug("subscribe: failed to parse published record", "err", err)
					continue
				}
				select {
				case out <- record:
				default:
					log.Warn("subscribe: output channel full, dropping record")
				}
			}
		}
	}()
	return out, nil
}

func (c *Coordinator) validatorByIndex(index int) *validatorConn {
	for _, v := range c.validators {
		if v.index == index {
			return v
		}
	}
	return nil
}

func requestHost(requestURL string) (string, error) {
	u, err := url.Parse(requestURL)
	if err != nil {
		return "", err
	}
	return u.Hostname(), nil
}

// certifiedBucket accumulates records for one message identity until
// quorum is reached.
type certifiedBucket struct {
	message common.Message
	records []common.Record
	emitted bool
}

// SubscribeCertified wraps Subscribe and re-aggregates records sharing a
// message identity into a CertifiedRecord as soon as quorum-many have been
// observed. Per the documented decision on validator-index tagging, the
// emitted CertifiedRecord.Timestamps vector is ordered by arrival into the
// bucket rather than by validator index, since the publisher fanout tags
// records only by topic.
func (c *Coordinator) SubscribeCertified(ctx context.Context, namespace common.Namespace) (<-chan common.CertifiedRecord, error) {
	records, err := c.Subscribe(ctx, namespace)
	if err != nil {
		return nil, err
	}

	buckets, err := lru.New[common.Digest, *certifiedBucket](CertifiedSubscriptionCapacity)
	if err != nil {
		return nil, fmt.Errorf("client: creating certified-subscription map: %w", err)
	}

	n := len(c.validators)
	out := make(chan common.CertifiedRecord, SubscribeChannelCapacity)

	go func() {
		defer close(out)
		for record := range records {
			msgID := common.MessageDigest(namespace, record.Message)

			b, ok := buckets.Peek(msgID)
			if !ok {
				b = &certifiedBucket{message: record.Message}
				buckets.Add(msgID, b)
			}
			if b.emitted {
				continue
			}
			b.records = append(b.records, record)

			if !common.Quorum(n, len(b.records)) {
				continue
			}

			timestamps := make([]common.Timestamp, len(b.records))
			sigs := make([]blssig.Signature, len(b.records))
			for i, r := range b.records {
				timestamps[i] = r.Timestamp
				sigs[i] = r.Signature
			}
			aggregate, err := blssig.Aggregate(sigs)
			if err != nil {
				log.Error("subscribe-certified: failed to aggregate signatures", "err", err)
				continue
			}

			b.emitted = true
			select {
			case out <- common.CertifiedRecord{Timestamps: timestamps, Message: b.message, QuorumSignature: aggregate}:
			case <-ctx.Done():
				return
			default:
				log.Warn("subscribe-certified: output channel full, dropping certified record")
			}
		}
	}()
	return out, nil
}
