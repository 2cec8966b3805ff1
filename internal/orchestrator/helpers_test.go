package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dusk-indust/consortium/internal/model"
)

const testArbiter = "judge"

// fakeClient implements model.Client. Voter calls go to voter; arbiter calls
// pop arbiterReplies in order.
type fakeClient struct {
	mu             sync.Mutex
	voter          func(req model.Request) (*model.Completion, error)
	arbiterReplies []string
	arbiterErr     error
	requests       []model.Request
}

func (f *fakeClient) Prompt(_ context.Context, req model.Request) (*model.Completion, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	if req.Model == testArbiter {
		defer f.mu.Unlock()
		if f.arbiterErr != nil {
			return nil, f.arbiterErr
		}
		if len(f.arbiterReplies) == 0 {
			return &model.Completion{Text: arbiterReply(0.1, "fallback")}, nil
		}
		r := f.arbiterReplies[0]
		f.arbiterReplies = f.arbiterReplies[1:]
		return &model.Completion{Text: r}, nil
	}
	voter := f.voter
	f.mu.Unlock()

	if voter == nil {
		return &model.Completion{Text: req.Model + " says hi <confidence>0.6</confidence>"}, nil
	}
	return voter(req)
}

func (f *fakeClient) voterRequests() []model.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Request
	for _, r := range f.requests {
		if r.Model != testArbiter {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeClient) arbiterRequests() []model.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Request
	for _, r := range f.requests {
		if r.Model == testArbiter {
			out = append(out, r)
		}
	}
	return out
}

func arbiterReply(confidence float64, synthesis string, areas ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<synthesis>%s</synthesis>\n", synthesis)
	fmt.Fprintf(&b, "<confidence>%v</confidence>\n", confidence)
	b.WriteString("<analysis>compared</analysis>\n<dissent>none</dissent>\n")
	fmt.Fprintf(&b, "<needs_iteration>%v</needs_iteration>\n", confidence < 0.8)
	b.WriteString("<refinement_areas>\n")
	for _, a := range areas {
		fmt.Fprintf(&b, "<area>%s</area>\n", a)
	}
	b.WriteString("</refinement_areas>")
	return b.String()
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestInvoker(c model.Client) *model.Invoker {
	return model.NewInvoker(c,
		model.WithLogger(discardLogger()),
		model.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
}

func testConfig(minIter, maxIter int, threshold float64) Config {
	return Config{
		Models:              map[string]int{"alpha": 1, "beta": 1},
		ConfidenceThreshold: threshold,
		MaxIterations:       maxIter,
		MinimumIterations:   minIter,
		Arbiter:             testArbiter,
	}
}
