package crawl

import "github.com/IshaanNene/AutoStalk/internal/types"

// ResultSink receives each extracted item in crawl order. The loop
// invokes it inline; blocking work belongs behind the caller's own
// buffering.
type ResultSink func(*types.Item)

// ProgressSink receives a snapshot after every crawled page.
type ProgressSink func(types.ProgressSnapshot)

// CheckpointSink persists a checkpoint blob. A returned error is logged
// and the crawl continues.
type CheckpointSink func([]byte) error
