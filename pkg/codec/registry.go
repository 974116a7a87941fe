package codec

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// ExtensionDecoder interprets the payload of one extension entry and
// returns a typed value.
type ExtensionDecoder func(data []byte) (any, error)

// ExtensionRegistry maps extension type codes to decoders. The codec
// itself treats extension payloads as opaque bytes; a registry lets
// callers layer typed interpretation on top without the codec growing
// per-type knowledge. A registry is safe for concurrent use.
type ExtensionRegistry struct {
	mu       sync.RWMutex
	decoders map[uint8]registryEntry
}

type registryEntry struct {
	name   string
	decode ExtensionDecoder
}

// NewExtensionRegistry creates an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{decoders: make(map[uint8]registryEntry)}
}

// Register binds a decoder to an extension type code. Registering a type
// twice is an error so that competing interpretations surface early.
func (r *ExtensionRegistry) Register(typ uint8, name string, fn ExtensionDecoder) error {
	if fn == nil {
		return errors.New("codec: nil extension decoder")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.decoders[typ]; ok {
		return errors.Newf("codec: extension type %d already registered as %q", typ, existing.name)
	}
	r.decoders[typ] = registryEntry{name: name, decode: fn}

	return nil
}

// Decode runs the registered decoder for ext's type code. Types with no
// decoder fail with ErrNoExtensionDecoder.
func (r *ExtensionRegistry) Decode(ext Extension) (any, error) {
	r.mu.RLock()
	entry, ok := r.decoders[ext.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrNoExtensionDecoder, "type %d", ext.Type)
	}

	v, err := entry.decode(ext.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding extension type %d (%s)", ext.Type, entry.name)
	}
	return v, nil
}

// DecodeAll decodes a slice of extensions in order, stopping at the
// first failure. The returned values line up with the input slice.
func (r *ExtensionRegistry) DecodeAll(exts []Extension) ([]any, error) {
	values := make([]any, 0, len(exts))
	for i, ext := range exts {
		v, err := r.Decode(ext)
		if err != nil {
			return nil, errors.Wrapf(err, "extension %d of %d", i, len(exts))
		}
		values = append(values, v)
	}
	return values, nil
}

// Name returns the registered name for a type code, or the empty string
// if none is registered.
func (r *ExtensionRegistry) Name(typ uint8) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.decoders[typ].name
}

// Types returns the registered type codes in ascending order.
func (r *ExtensionRegistry) Types() []uint8 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]uint8, 0, len(r.decoders))
	for typ := range r.decoders {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}
