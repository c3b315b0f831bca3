// Package crawlsim is a minimal stand-in for crawler connector plumbing:
// it drives the throttle engine's public contract the way a real crawl
// worker would, without implementing an actual fetcher. It exists to give
// throttle.Throttler one real caller.
package crawlsim

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/danielepagano/throttlepool/lib/throttle"
)

// Document describes one simulated fetch: how many bytes it has, and how
// large the chunks read from it are.
type Document struct {
	URL        string
	Bytes      int
	ChunkBytes int
}

// Worker repeatedly crawls documents against one throttle group, acquiring
// a connection, then a fetch, then read permission per chunk, releasing in
// reverse order.
type Worker struct {
	throttler *throttle.Throttler
	groupType string
	groupName string
	binNames  []string
	log       *logrus.Entry
}

// NewWorker builds a Worker bound to one throttle group and bin set.
func NewWorker(t *throttle.Throttler, groupType, groupName string, binNames []string) *Worker {
	return &Worker{
		throttler: t,
		groupType: groupType,
		groupName: groupName,
		binNames:  binNames,
		log:       logrus.WithField("component", "crawlsim"),
	}
}

// Crawl processes one document end to end, returning an error only when the
// engine reports shutdown or quota exhaustion, or when ctx is cancelled
// between reads -- a real crawler would requeue the document instead of
// treating this as fatal.
func (w *Worker) Crawl(ctx context.Context, doc Document) error {
	connHandle := w.throttler.ObtainConnectionThrottler(w.groupType, w.groupName, w.binNames)
	if connHandle == nil {
		return fmt.Errorf("crawlsim: group %s/%s is gone", w.groupType, w.groupName)
	}

	fetchHandle := connHandle.ObtainFetchPermission()
	if fetchHandle == nil {
		return fmt.Errorf("crawlsim: connection quota exhausted for %s", doc.URL)
	}
	defer connHandle.Release()

	streamHandle := fetchHandle.ObtainStreamPermission()
	if streamHandle == nil {
		return fmt.Errorf("crawlsim: fetch denied (shutting down) for %s", doc.URL)
	}
	defer streamHandle.Close()

	return w.readAll(ctx, streamHandle, doc)
}

func (w *Worker) readAll(ctx context.Context, stream *throttle.StreamHandle, doc Document) error {
	remaining := doc.Bytes
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk := doc.ChunkBytes
		if chunk > remaining {
			chunk = remaining
		}

		if !stream.ObtainReadPermission(chunk) {
			return fmt.Errorf("crawlsim: read denied (shutting down) for %s", doc.URL)
		}

		actual := simulateShortRead(chunk)
		stream.ReleaseReadPermission(chunk, actual)
		remaining -= actual

		w.log.WithFields(logrus.Fields{"url": doc.URL, "chunk": actual, "remaining": remaining}).Debug("read chunk")
	}
	return nil
}

// simulateShortRead occasionally returns fewer bytes than requested, the
// way a real network read would, to exercise the short-read correction path
// in StreamHandle.ReleaseReadPermission.
func simulateShortRead(requested int) int {
	if requested <= 1 {
		return requested
	}
	if rand.Intn(4) == 0 {
		return requested - 1
	}
	return requested
}
