package distill

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/config"
	"github.com/mvickers/dossier/internal/errors"
)

// SourceArtifact is the raw long-form input to one distillation call.
type SourceArtifact struct {
	ArtifactID string
	Title      string
	BodyMD     string
}

// Digest is the structured output of one distillation call.
type Digest struct {
	Summary   string   `json:"summary"`
	HardFacts []string `json:"hard_facts"`
	Keywords  []string `json:"keywords"`
}

// Summarizer produces a digest for one artifact. Implementations must be
// safe for concurrent use.
type Summarizer interface {
	Summarize(ctx context.Context, artifact SourceArtifact) (Digest, error)
}

// Gate runs distillation for a selection of artifacts with an all-or-nothing
// policy: one failed digest rejects the whole selection. A bundle with a
// silently-missing digest would mislead the consuming agent without any
// signal, which is worse than failing the request.
type Gate struct {
	summarizer  Summarizer
	timeout     time.Duration
	concurrency int
}

// NewGate creates a Gate over the given summarizer.
func NewGate(s Summarizer, cfg *config.Config) *Gate {
	timeout := time.Duration(cfg.SummarizerTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	concurrency := cfg.SummarizerConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Gate{summarizer: s, timeout: timeout, concurrency: concurrency}
}

// ForConfig builds the summarizer selected by config and wraps it in a Gate.
func ForConfig(cfg *config.Config) *Gate {
	if cfg.SummarizerMode == config.SummarizerChat && cfg.SummarizerURL != "" {
		return NewGate(NewChatSummarizer(cfg), cfg)
	}
	return NewGate(NewHeuristicSummarizer(), cfg)
}

// DistillAll digests every artifact, preserving input order. Calls run
// concurrently with a per-call timeout; the first failure cancels the rest,
// and every failure observed is reported in the DISTILLATION_FAILED error.
func (g *Gate) DistillAll(ctx context.Context, artifacts []SourceArtifact) ([]bundle.DistilledArtifact, error) {
	if len(artifacts) == 0 {
		return nil, nil
	}

	results := make([]bundle.DistilledArtifact, len(artifacts))

	var mu sync.Mutex
	failures := make(map[string]string)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, art := range artifacts {
		eg.Go(func() error {
			callCtx, cancel := context.WithTimeout(egCtx, g.timeout)
			defer cancel()

			digest, err := g.summarizer.Summarize(callCtx, art)
			if err != nil {
				mu.Lock()
				failures[art.ArtifactID] = err.Error()
				mu.Unlock()
				// Returning the error cancels in-flight siblings; the
				// result is all-or-nothing anyway.
				return err
			}

			results[i] = bundle.DistilledArtifact{
				ArtifactID:    art.ArtifactID,
				ArtifactTitle: art.Title,
				Summary:       digest.Summary,
				HardFacts:     digest.HardFacts,
				Keywords:      digest.Keywords,
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		// Siblings cancelled by the group lost the race to record a real
		// failure; report them as cancelled so the batch enumerates every
		// artifact that produced no digest.
		mu.Lock()
		defer mu.Unlock()
		for i, art := range artifacts {
			if results[i].ArtifactID == "" {
				if _, reported := failures[art.ArtifactID]; !reported {
					failures[art.ArtifactID] = "distillation cancelled"
				}
			}
		}
		return nil, errors.NewDistillationFailed(failures)
	}

	return results, nil
}
