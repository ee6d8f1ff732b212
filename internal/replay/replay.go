// Package replay restores archived chunks into a live Kafka cluster.
//
// Chunks are listed from a fetch.Opener, grouped by partition, and
// decoded one record at a time; records are produced back to Kafka with
// their archived topic, partition, key, and value. Chunks within a
// partition are replayed in start-offset order so the restored stream
// preserves the original ordering; partitions replay concurrently.
package replay

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"rewind/internal/chunk"
	"rewind/internal/chunk/decode"
	"rewind/internal/fetch"
	"rewind/internal/logging"
)

// produceBatchSize is how many records are handed to the client per
// ProduceSync call. Synchronous batches keep per-partition ordering
// without buffering a whole chunk in memory.
const produceBatchSize = 1000

// AllPartitions replays every partition found under the prefix.
const AllPartitions = -1

// Config holds replay job configuration.
type Config struct {
	Brokers []string
	Topic   string // topic to restore; chunks of other topics are skipped
	// Partition restricts the replay to one partition, or AllPartitions.
	Partition    int32
	Prefix       string // chunk key prefix to list
	IncludesKeys bool   // were records archived with keys?
	Workers      int    // concurrent partitions; 0 means 4
	TLS          bool
	SASL         *SASLConfig
	Logger       *slog.Logger
}

// Replayer drives one replay job.
type Replayer struct {
	cfg    Config
	opener fetch.Opener
	logger *slog.Logger
}

// New creates a Replayer reading chunks from opener.
func New(opener fetch.Opener, cfg Config) *Replayer {
	return &Replayer{
		cfg:    cfg,
		opener: opener,
		logger: logging.Default(cfg.Logger).With("component", "replay"),
	}
}

// producer is the slice of the Kafka client the pipeline needs.
// *kgo.Client satisfies it.
type producer interface {
	ProduceSync(ctx context.Context, recs ...*kgo.Record) kgo.ProduceResults
}

// chunkRef is one chunk scheduled for replay.
type chunkRef struct {
	key  string
	addr chunk.Address
}

// Run lists, plans, and replays all matching chunks. A corrupt chunk
// aborts its partition and fails the job; other partitions finish their
// current work before Run returns the first error.
func (rp *Replayer) Run(ctx context.Context) error {
	if rp.cfg.Topic == "" {
		return errors.New("replay: topic is required")
	}
	if len(rp.cfg.Brokers) == 0 {
		return errors.New("replay: brokers are required")
	}

	jobID := uuid.Must(uuid.NewV7())
	logger := rp.logger.With("job", jobID.String())

	keys, err := rp.opener.List(ctx, rp.cfg.Prefix)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	plan, skipped := buildPlan(keys, rp.cfg.Topic, rp.cfg.Partition)
	for _, key := range skipped {
		logger.Warn("skipping non-chunk key", "key", key)
	}
	if len(plan) == 0 {
		logger.Info("nothing to replay", "topic", rp.cfg.Topic, "prefix", rp.cfg.Prefix)
		return nil
	}

	client, err := newKafkaClient(rp.cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("replay started",
		"topic", rp.cfg.Topic,
		"partitions", len(plan),
		"brokers", rp.cfg.Brokers,
	)

	workers := rp.cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for partition, refs := range plan {
		partition, refs := partition, refs
		g.Go(func() error {
			return rp.replayPartition(ctx, client, partition, refs, logger)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("replay finished", "topic", rp.cfg.Topic)
	return nil
}

// replayPartition replays one partition's chunks in start-offset order.
func (rp *Replayer) replayPartition(ctx context.Context, p producer, partition uint32, refs []chunkRef, logger *slog.Logger) error {
	logger = logger.With("partition", partition)

	var produced uint64
	for _, ref := range refs {
		n, err := rp.replayChunk(ctx, p, ref)
		produced += n
		if err != nil {
			return err
		}
		logger.Debug("chunk replayed", "key", ref.key, "records", n)
	}

	logger.Info("partition replayed", "chunks", len(refs), "records", produced)
	return nil
}

// replayChunk decodes one chunk and produces its records. It returns
// the number of records produced, including those sent before an error.
func (rp *Replayer) replayChunk(ctx context.Context, p producer, ref chunkRef) (uint64, error) {
	src, err := rp.opener.Open(ctx, ref.key)
	if err != nil {
		return 0, fmt.Errorf("replay %s: %w", ref.key, err)
	}
	defer func() { _ = src.Close() }()

	r := decode.NewReader(ref.addr, rp.cfg.IncludesKeys, src)

	var produced uint64
	batch := make([]*kgo.Record, 0, produceBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.ProduceSync(ctx, batch...).FirstErr(); err != nil {
			return fmt.Errorf("replay %s: produce: %w", ref.key, err)
		}
		produced += uint64(len(batch))
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Next()
		if errors.Is(err, chunk.ErrNoMoreRecords) {
			break
		}
		if err != nil {
			return produced, fmt.Errorf("replay %s: %w", ref.key, err)
		}

		batch = append(batch, &kgo.Record{
			Topic:     rec.Topic,
			Partition: int32(rec.Partition),
			Key:       rec.Key,
			Value:     rec.Value,
		})
		if len(batch) >= produceBatchSize {
			if err := flush(); err != nil {
				return produced, err
			}
		}
	}
	return produced, flush()
}

// buildPlan groups chunk keys by partition, sorted by start offset.
// Keys that do not parse, belong to another topic, or fall outside the
// partition filter are returned as skipped.
func buildPlan(keys []string, topic string, partition int32) (map[uint32][]chunkRef, []string) {
	plan := make(map[uint32][]chunkRef)
	var skipped []string

	for _, key := range keys {
		addr, err := chunk.ParseKey(key)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}
		if addr.Topic != topic {
			continue
		}
		if partition != AllPartitions && addr.Partition != uint32(partition) {
			continue
		}
		plan[addr.Partition] = append(plan[addr.Partition], chunkRef{key: key, addr: addr})
	}

	for p := range plan {
		slices.SortFunc(plan[p], func(a, b chunkRef) int {
			return cmp.Compare(a.addr.StartOffset, b.addr.StartOffset)
		})
	}
	return plan, skipped
}
