package services

import (
	"context"
	"time"

	"meetup-backend/internal/metrics"
	"meetup-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const historyWriteTimeout = 5 * time.Second

// HistoryRecorder receives pair lifecycle events. Implementations must not
// block: they are called while the matchmaking lock is held.
type HistoryRecorder interface {
	PairCreated(rec models.PairRecord)
	PairResolved(rec models.PairRecord)
}

// PairStore persists pair history records
type PairStore interface {
	Create(ctx context.Context, rec *models.PairRecord) error
	Resolve(ctx context.Context, rec *models.PairRecord) error
}

type historyEvent struct {
	resolved bool
	rec      models.PairRecord
}

// HistoryWriter queues lifecycle events and writes them to a PairStore from
// a single worker goroutine. Events arriving while the queue is full are dropped.
type HistoryWriter struct {
	store   PairStore
	events  chan historyEvent
	metrics *metrics.Metrics
}

// NewHistoryWriter creates a writer with a queue of size bufferSize
func NewHistoryWriter(store PairStore, bufferSize int, m *metrics.Metrics) *HistoryWriter {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &HistoryWriter{
		store:   store,
		events:  make(chan historyEvent, bufferSize),
		metrics: m,
	}
}

// PairCreated queues a creation record
func (w *HistoryWriter) PairCreated(rec models.PairRecord) {
	w.enqueue(historyEvent{rec: rec})
}

// PairResolved queues a resolution record
func (w *HistoryWriter) PairResolved(rec models.PairRecord) {
	w.enqueue(historyEvent{resolved: true, rec: rec})
}

func (w *HistoryWriter) enqueue(ev historyEvent) {
	select {
	case w.events <- ev:
	default:
		w.metrics.ObserveHistoryDropped()
		log.Warn().
			Str("pair_id", ev.rec.ID).
			Bool("resolved", ev.resolved).
			Msg("Pair history queue full, dropping event")
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left
func (w *HistoryWriter) Run(ctx context.Context) {
	for {
		select {
		case ev := <-w.events:
			w.write(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-w.events:
					w.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (w *HistoryWriter) write(ev historyEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
	defer cancel()

	var err error
	if ev.resolved {
		err = w.store.Resolve(ctx, &ev.rec)
	} else {
		err = w.store.Create(ctx, &ev.rec)
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("pair_id", ev.rec.ID).
			Bool("resolved", ev.resolved).
			Msg("Failed to write pair history")
	}
}
