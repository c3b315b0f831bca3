package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/danielepagano/throttlepool/internal/crawlsim"
	"github.com/danielepagano/throttlepool/internal/registry"
	"github.com/danielepagano/throttlepool/lib/throttle"
	"github.com/danielepagano/throttlepool/lib/throttle/yamlspec"
)

const groupType = "web"

func main() {
	log := logrus.WithField("component", "crawlsim-main")

	t := throttle.New(registry.NoOp{})

	spec := &yamlspec.Spec{
		Default: yamlspec.BinLimits{MaxOpenConnections: 2, MinMsPerFetch: 100},
		Bins: map[string]yamlspec.BinLimits{
			"example.com":  {MaxOpenConnections: 2, MinMsPerFetch: 100, MinMsPerByte: 0},
			"slow-cdn.net": {MaxOpenConnections: 1, MinMsPerFetch: 250, MinMsPerByte: 1},
		},
	}
	if err := t.CreateOrUpdate(groupType, "crawl-1", spec); err != nil {
		log.WithError(err).Fatal("could not create throttle group")
	}

	ctx, cancel := context.WithCancel(context.Background())

	documents := []crawlsim.Document{
		{URL: "https://example.com/a", Bytes: 4096, ChunkBytes: 1024},
		{URL: "https://example.com/b", Bytes: 2048, ChunkBytes: 512},
		{URL: "https://slow-cdn.net/c", Bytes: 8192, ChunkBytes: 2048},
	}

	worker := crawlsim.NewWorker(t, groupType, "crawl-1", []string{"example.com"})
	slowWorker := crawlsim.NewWorker(t, groupType, "crawl-1", []string{"slow-cdn.net"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, doc := range documents {
			w := worker
			if doc.URL == "https://slow-cdn.net/c" {
				w = slowWorker
			}
			if err := w.Crawl(ctx, doc); err != nil {
				log.WithError(err).WithField("url", doc.URL).Warn("crawl failed")
			}
		}
	}()

	sigInt := make(chan os.Signal, 1)
	signal.Notify(sigInt, os.Interrupt)

	select {
	case <-done:
		log.Info("crawl run complete")
	case <-sigInt:
		log.Info("interrupted, shutting down throttler")
	}

	cancel()
	t.Destroy()
}
