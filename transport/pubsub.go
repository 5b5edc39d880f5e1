package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// PublisherQueueCapacity bounds the validator's publish queue: the "bounded
// channel" between the request loop (producer) and the publisher drain
// loop (consumer). A full queue drops the newest item and logs, since
// subscribers are best-effort.
const PublisherQueueCapacity = 1024

// perSubscriberBuffer bounds each individual subscriber connection's
// outbound backlog so one slow subscriber can't stall delivery to others.
const perSubscriberBuffer = 256

type pubItem struct {
	topic   string
	payload []byte
}

type subscribeMsg struct {
	Topic string `json:"topic"`
}

type pubConn struct {
	conn  *websocket.Conn
	topic string
	send  chan []byte
}

// Publisher is a validator's topic-filtered broadcast endpoint. Every
// connecting subscriber first sends a {"topic": "..."} frame pinning it to
// one topic for the life of the connection.
type Publisher struct {
	ln    net.Listener
	srv   *http.Server
	queue chan pubItem

	mu   sync.Mutex
	subs map[string]map[*pubConn]struct{}

	done chan struct{}
}

// ListenPublisher binds addr and starts the publisher's accept and drain
// loops.
func ListenPublisher(addr string) (*Publisher, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}
	p := &Publisher{
		ln:    ln,
		queue: make(chan pubItem, PublisherQueueCapacity),
		subs:  make(map[string]map[*pubConn]struct{}),
		done:  make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.serveConn)
	p.srv = &http.Server{Handler: mux}
	go func() {
		if err := p.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("publisher listener exited", "err", err)
		}
	}()
	go p.drain()
	return p, nil
}

// Addr returns the publisher's bound address.
func (p *Publisher) Addr() net.Addr { return p.ln.Addr() }

// Close stops the drain loop and the listener. Subscriber connections that
// were already upgraded to websockets are not closed by it.
func (p *Publisher) Close() error {
	close(p.done)
	return p.srv.Close()
}

// Enqueue schedules payload for delivery to every subscriber of topic. If
// the publish queue is full the item is dropped and logged, per the
// best-effort backpressure policy.
func (p *Publisher) Enqueue(topic string, payload []byte) {
	select {
	case p.queue <- pubItem{topic: topic, payload: payload}:
	default:
		log.Warn("publisher queue full, dropping record", "topic", topic)
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case <-p.done:
			return
		case item := <-p.queue:
			p.publishNow(item.topic, item.payload)
		}
	}
}

func (p *Publisher) publishNow(topic string, payload []byte) {
	p.mu.Lock()
	conns := p.subs[topic]
	targets := make([]*pubConn, 0, len(conns))
	for c := range conns {
		targets = append(targets, c)
	}
	p.mu.Unlock()

	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			log.Warn("subscriber backlog full, dropping record", "topic", topic)
		}
	}
}

func (p *Publisher) serveConn(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("failed to upgrade publisher connection", "err", err)
		return
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	var sub subscribeMsg
	if err := json.Unmarshal(data, &sub); err != nil {
		conn.Close()
		return
	}

	pc := &pubConn{conn: conn, topic: sub.Topic, send: make(chan []byte, perSubscriberBuffer)}
	p.mu.Lock()
	if p.subs[sub.Topic] == nil {
		p.subs[sub.Topic] = make(map[*pubConn]struct{})
	}
	p.subs[sub.Topic][pc] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.subs[sub.Topic], pc)
		p.mu.Unlock()
		conn.Close()
	}()

	// Drain inbound frames only to detect connection close; subscribers
	// never send anything after the initial subscribe message.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(pc.send)
				return
			}
		}
	}()

	for payload := range pc.send {
		if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
			return
		}
	}
}

// Subscriber connects to one or more publisher endpoints and forwards every
// inbound publication for the given topic onto a single merged channel.
type Subscriber struct {
	mu      sync.Mutex
	conns   []*websocket.Conn
	out     chan []byte
	closing chan struct{}
}

// SubscriberChannelCapacity bounds the merged output channel; full means
// the consumer isn't keeping up and new records are dropped with a
// warning.
const SubscriberChannelCapacity = 512

// NewSubscriber creates an empty subscriber. Call Connect for each
// publisher endpoint to merge.
func NewSubscriber() *Subscriber {
	return &Subscriber{
		out:     make(chan []byte, SubscriberChannelCapacity),
		closing: make(chan struct{}),
	}
}

// Connect dials a publisher endpoint, subscribes to topic, and starts
// forwarding its publications into s.Records().
func (s *Subscriber) Connect(url, topic string) error {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("transport: dial publisher %s: %w", url, err)
	}
	msg, err := json.Marshal(subscribeMsg{Topic: topic})
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		conn.Close()
		return fmt.Errorf("transport: subscribe: %w", err)
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	go s.forward(conn)
	return nil
}

func (s *Subscriber) forward(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case s.out <- data:
		case <-s.closing:
			return
		default:
			log.Warn("subscriber output channel full, dropping record")
		}
	}
}

// Records returns the channel every connected publisher's publications are
// merged onto.
func (s *Subscriber) Records() <-chan []byte { return s.out }

// Close disconnects from every publisher.
func (s *Subscriber) Close() error {
	close(s.closing)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	return nil
}
