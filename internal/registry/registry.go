// Package registry stores the service descriptors a host advertises to
// simulated companion devices. It is a pure bookkeeping layer: advertising a
// service makes it discoverable to a connecting peer, nothing is transported.
package registry

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ValidationError reports a rejected input on a registry or manager operation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is allows errors.Is comparison by Field
func (e *ValidationError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Field == "" || t.Field == e.Field
}

// ErrInvalidArgument matches any ValidationError regardless of field.
var ErrInvalidArgument = &ValidationError{}

// ServiceDescriptor describes one advertised service. Descriptors returned by
// the registry are snapshots; mutating Metadata does not affect the registry.
type ServiceDescriptor struct {
	Name     string            `json:"name" yaml:"name"`
	Metadata map[string]string `json:"metadata" yaml:"metadata"`
}

// ServiceRegistry keeps advertised services in insertion order. Re-advertising
// an existing name replaces its metadata without moving it in the order.
//
// The registry itself is not goroutine-safe; the owning manager serializes
// access behind its own lock.
type ServiceRegistry struct {
	services *orderedmap.OrderedMap[string, map[string]string]
}

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: orderedmap.New[string, map[string]string](),
	}
}

// Advertise inserts or updates the named service. A nil metadata map is
// treated as empty. Empty names are rejected.
func (r *ServiceRegistry) Advertise(name string, metadata map[string]string) error {
	if name == "" {
		return &ValidationError{Field: "service name", Reason: "must not be empty"}
	}
	r.services.Set(name, copyMetadata(metadata))
	return nil
}

// Revoke removes the named service. Revoking an absent name is a no-op;
// the return value reports whether an entry was actually removed.
func (r *ServiceRegistry) Revoke(name string) bool {
	_, present := r.services.Delete(name)
	return present
}

// RevokeAll removes every advertised service.
func (r *ServiceRegistry) RevokeAll() {
	r.services = orderedmap.New[string, map[string]string]()
}

// Get returns a snapshot of the named service descriptor.
func (r *ServiceRegistry) Get(name string) (ServiceDescriptor, bool) {
	metadata, ok := r.services.Get(name)
	if !ok {
		return ServiceDescriptor{}, false
	}
	return ServiceDescriptor{Name: name, Metadata: copyMetadata(metadata)}, true
}

// List returns a snapshot of all advertised services in insertion order.
func (r *ServiceRegistry) List() []ServiceDescriptor {
	result := make([]ServiceDescriptor, 0, r.services.Len())
	for pair := r.services.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, ServiceDescriptor{
			Name:     pair.Key,
			Metadata: copyMetadata(pair.Value),
		})
	}
	return result
}

// Len returns the number of advertised services.
func (r *ServiceRegistry) Len() int {
	return r.services.Len()
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
