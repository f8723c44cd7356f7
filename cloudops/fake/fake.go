// Package fake provides an in-memory cloudops.ClientFactory for tests,
// grounded on the teacher's core/mock_discovery.go fake-implementation
// pattern: a scriptable stand-in for a real SDK boundary that test code
// seeds with canned responses per (service, operation).
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/ayushchhipa1509/OCI-COPILOT/cloudops"
)

// Response is a canned result for one (service, operation) pair.
type Response struct {
	Records []cloudops.Record
	Err     error
}

// Factory is a cloudops.ClientFactory backed entirely by in-memory fixtures.
type Factory struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
	allowed   []string
}

// Call records one invocation against the fake, for test assertions.
type Call struct {
	Service   string
	Operation string
	Params    map[string]interface{}
}

// New builds an empty Factory. AllowedServices reports exactly the services
// seeded via Seed, so an unseeded service exercises the Verifier's allow-list
// rejection path.
func New() *Factory {
	return &Factory{responses: make(map[string]Response)}
}

// Seed registers the Record list (or error) returned for a given
// service+operation call.
func (f *Factory) Seed(service, operation string, records []cloudops.Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key(service, operation)] = Response{Records: records, Err: err}
	found := false
	for _, s := range f.allowed {
		if s == service {
			found = true
			break
		}
	}
	if !found {
		f.allowed = append(f.allowed, service)
	}
}

// Calls returns every Call observed so far, in order.
func (f *Factory) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func key(service, op string) string { return service + "::" + op }

// Get implements cloudops.ClientFactory.
func (f *Factory) Get(ctx context.Context, service string, cfg *cloudops.Config) (cloudops.ServiceClient, error) {
	return &fakeClient{factory: f, service: service}, nil
}

// AllowedServices implements cloudops.ClientFactory.
func (f *Factory) AllowedServices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.allowed))
	copy(out, f.allowed)
	return out
}

type fakeClient struct {
	factory *Factory
	service string
}

func (c *fakeClient) Call(ctx context.Context, operation string, params map[string]interface{}) ([]cloudops.Record, string, error) {
	c.factory.mu.Lock()
	c.factory.calls = append(c.factory.calls, Call{Service: c.service, Operation: operation, Params: params})
	resp, ok := c.factory.responses[key(c.service, operation)]
	c.factory.mu.Unlock()

	if !ok {
		return nil, "", fmt.Errorf("fake: no seeded response for %s.%s", c.service, operation)
	}
	return resp.Records, "", resp.Err
}
