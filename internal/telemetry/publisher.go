// Package telemetry publishes run lifecycle events over NATS so
// dashboards and downstream consumers can follow backtests and paper
// sessions without polling storage.
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"equity-signal-lab/internal/domain"
)

// Subjects for the lab event stream.
const (
	SubjectRunCompleted   = "lab.runs.completed"
	SubjectTradeClosed    = "lab.trades.closed"
	SubjectSweepCompleted = "lab.sweeps.completed"
)

// RunCompletedEvent announces a finished run with its aggregate.
type RunCompletedEvent struct {
	RunID       string               `json:"run_id"`
	EmittedAtMs int64                `json:"emitted_at_ms"`
	Trades      int                  `json:"trades"`
	Aggregate   *domain.RunAggregate `json:"aggregate"`
}

// TradeClosedEvent announces a single ledger row, used by paper
// sessions to stream closes as they happen.
type TradeClosedEvent struct {
	EmittedAtMs int64               `json:"emitted_at_ms"`
	Trade       *domain.ClosedTrade `json:"trade"`
}

// SweepCompletedEvent announces a finished sweep with its ranking.
type SweepCompletedEvent struct {
	EmittedAtMs int64             `json:"emitted_at_ms"`
	Goal        string            `json:"goal"`
	Variants    int               `json:"variants"`
	Ranking     []SweepRankingRow `json:"ranking"`
}

// SweepRankingRow is one variant's place in a sweep ranking.
type SweepRankingRow struct {
	Rank    int     `json:"rank"`
	Variant string  `json:"variant"`
	RunID   string  `json:"run_id"`
	Score   float64 `json:"score"`
	Trades  int     `json:"trades"`
}

// Publisher sends lab events to a NATS server.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS with bounded reconnects.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Close flushes pending messages and drops the connection. Safe to
// call more than once.
func (p *Publisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	if err := p.conn.Flush(); err != nil {
		p.conn.Close()
		return err
	}
	p.conn.Close()
	return nil
}

// PublishRunCompleted emits a run summary event.
func (p *Publisher) PublishRunCompleted(agg *domain.RunAggregate) error {
	return p.publish(SubjectRunCompleted, RunCompletedEvent{
		RunID:       agg.RunID,
		EmittedAtMs: time.Now().UnixMilli(),
		Trades:      agg.TotalTrades,
		Aggregate:   agg,
	})
}

// PublishTradeClosed emits one closed trade.
func (p *Publisher) PublishTradeClosed(trade *domain.ClosedTrade) error {
	return p.publish(SubjectTradeClosed, TradeClosedEvent{
		EmittedAtMs: time.Now().UnixMilli(),
		Trade:       trade,
	})
}

// PublishSweepCompleted emits a sweep ranking.
func (p *Publisher) PublishSweepCompleted(goal string, ranking []SweepRankingRow) error {
	return p.publish(SubjectSweepCompleted, SweepCompletedEvent{
		EmittedAtMs: time.Now().UnixMilli(),
		Goal:        goal,
		Variants:    len(ranking),
		Ranking:     ranking,
	})
}

func (p *Publisher) publish(subject string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Subscribe delivers decoded run summaries to the handler until the
// subscription is unsubscribed. Undecodable payloads are skipped.
func Subscribe(conn *nats.Conn, handler func(RunCompletedEvent)) (*nats.Subscription, error) {
	sub, err := conn.Subscribe(SubjectRunCompleted, func(msg *nats.Msg) {
		var event RunCompletedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}
