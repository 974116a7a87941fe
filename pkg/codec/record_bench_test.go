//go:build bench
// +build bench

package codec

import (
	"bytes"
	"testing"
)

func benchRecords() []struct {
	name   string
	record *Record
} {
	return []struct {
		name   string
		record *Record
	}{
		{
			name: "small",
			record: &Record{
				Version:     1,
				Type:        2,
				Description: []byte("iOS Release"),
				Hash:        bytes.Repeat([]byte{0xAB}, 32),
				ExpiryMS:    1724572800000,
				Extensions:  []Extension{{Type: 9, Data: []byte("ext")}},
			},
		},
		{
			name: "medium",
			record: &Record{
				Version:     1,
				Type:        2,
				Description: bytes.Repeat([]byte("d"), 200),
				Hash:        bytes.Repeat([]byte{0xAB}, 48),
				ExpiryMS:    1724572800000,
				Extensions: []Extension{
					{Type: 1, Data: bytes.Repeat([]byte("x"), 1000)},
					{Type: 2, Data: bytes.Repeat([]byte("y"), 1000)},
				},
			},
		},
		{
			name: "large",
			record: &Record{
				Version:     1,
				Type:        2,
				Description: bytes.Repeat([]byte("d"), 255),
				Hash:        bytes.Repeat([]byte{0xAB}, 255),
				ExpiryMS:    1724572800000,
				Extensions: []Extension{
					{Type: 1, Data: bytes.Repeat([]byte("x"), 30000)},
					{Type: 2, Data: bytes.Repeat([]byte("y"), 30000)},
				},
			},
		},
	}
}

func BenchmarkRecordCodec_Encode(b *testing.B) {
	codec := NewRecordCodec()

	for _, bm := range benchRecords() {
		b.Run(bm.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := codec.Encode(bm.record)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRecordCodec_Decode(b *testing.B) {
	codec := NewRecordCodec()

	for _, bm := range benchRecords() {
		b.Run(bm.name, func(b *testing.B) {
			encoded, err := codec.Encode(bm.record)
			if err != nil {
				b.Fatal(err)
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, err := codec.Decode(encoded)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkRecordCodec_RoundTrip(b *testing.B) {
	codec := NewRecordCodec()

	for _, bm := range benchRecords() {
		b.Run(bm.name, func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				encoded, err := codec.Encode(bm.record)
				if err != nil {
					b.Fatal(err)
				}

				_, err = codec.Decode(encoded)
				if err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// Benchmark memory allocations
func BenchmarkRecordCodec_EncodeAllocs(b *testing.B) {
	codec := NewRecordCodec()
	record := benchRecords()[0].record

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := codec.Encode(record)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRecordCodec_DecodeAllocs(b *testing.B) {
	codec := NewRecordCodec()

	encoded, err := codec.Encode(benchRecords()[0].record)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := codec.Decode(encoded)
		if err != nil {
			b.Fatal(err)
		}
	}
}
