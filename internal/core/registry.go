package core

import (
	"fmt"
	"sort"
	"sync"
)

// Codec decodes and encodes one serialization format.
type Codec interface {
	Format() Format
	Decode(data []byte) (*Table, error)
	Encode(t *Table) ([]byte, error)
}

// TextCodec marks codecs that only accept valid UTF-8 input. Detection
// checks the encoding once before trying any of them.
type TextCodec interface {
	Codec
	Text() bool
}

type registration struct {
	codec Codec
	order int
}

var (
	registry   = make(map[Format]registration)
	registryMu sync.RWMutex
)

// Register adds a codec at the given detection chain position. Lower
// positions are tried first.
// Panics if a codec for the same format is already registered.
func Register(c Codec, order int) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[c.Format()]; exists {
		panic(fmt.Sprintf("codec already registered: %s", c.Format()))
	}
	registry[c.Format()] = registration{codec: c, order: order}
}

// Lookup returns the codec for a format.
// Returns false if not found.
func Lookup(f Format) (Codec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	r, ok := registry[f]
	return r.codec, ok
}

// Codecs returns all registered codecs in detection chain order.
func Codecs() []Codec {
	registryMu.RLock()
	defer registryMu.RUnlock()

	regs := make([]registration, 0, len(registry))
	for _, r := range registry {
		regs = append(regs, r)
	}
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].order != regs[j].order {
			return regs[i].order < regs[j].order
		}
		return regs[i].codec.Format() < regs[j].codec.Format()
	})

	out := make([]Codec, len(regs))
	for i, r := range regs {
		out[i] = r.codec
	}
	return out
}

// Formats returns the registered formats in detection chain order.
func Formats() []Format {
	codecs := Codecs()
	out := make([]Format, len(codecs))
	for i, c := range codecs {
		out[i] = c.Format()
	}
	return out
}

func isText(c Codec) bool {
	tc, ok := c.(TextCodec)
	return ok && tc.Text()
}

func init() {
	Register(ColumnarCodec{}, 10)
	Register(CSVCodec{}, 20)
	Register(JSONCodec{}, 30)
}
