package orchestrator

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/dusk-indust/consortium/internal/a2a"
)

var errProbePanic = errors.New("orchestrator: probe panicked")

// EndpointStatus is the outcome of probing one model endpoint.
type EndpointStatus struct {
	Endpoint string
	Models   []string
	Card     *a2a.AgentCard
	Err      error
}

// Reachable reports whether the endpoint answered with an agent card.
func (s EndpointStatus) Reachable() bool {
	return s.Err == nil && s.Card != nil
}

// Detector probes model endpoints for their A2A agent cards.
type Detector struct {
	client       a2a.Client
	probeTimeout time.Duration
}

// NewDetector creates a Detector that probes with client. A zero timeout
// uses 2 seconds per endpoint.
func NewDetector(client a2a.Client, timeout time.Duration) *Detector {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Detector{client: client, probeTimeout: timeout}
}

// Probe concurrently fetches the agent card of every endpoint referenced by
// routes (model id to URL) plus fallback, if set. Results are sorted by
// endpoint URL; models sharing an endpoint are probed once.
func (d *Detector) Probe(ctx context.Context, routes map[string]string, fallback string) []EndpointStatus {
	byEndpoint := make(map[string][]string)
	for m, ep := range routes {
		byEndpoint[ep] = append(byEndpoint[ep], m)
	}
	if fallback != "" {
		if _, ok := byEndpoint[fallback]; !ok {
			byEndpoint[fallback] = nil
		}
	}

	var (
		mu  sync.Mutex
		out []EndpointStatus
		wg  sync.WaitGroup
	)
	for ep, models := range byEndpoint {
		sort.Strings(models)
		wg.Add(1)
		go func(ep string, models []string) {
			defer wg.Done()
			card, err := d.probe(ctx, ep)
			mu.Lock()
			out = append(out, EndpointStatus{Endpoint: ep, Models: models, Card: card, Err: err})
			mu.Unlock()
		}(ep, models)
	}
	wg.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

// probe fetches one agent card within the probe timeout.
func (d *Detector) probe(ctx context.Context, endpoint string) (card *a2a.AgentCard, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("detector: panic probing %s: %v", endpoint, r)
			card, err = nil, errProbePanic
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	return d.client.DiscoverAgent(probeCtx, endpoint)
}
