// Package cipher removes the xor obfuscation the vendor applies to animated
// stickers. The transform is its own inverse.
package cipher

import (
	"sync"

	cfg "github.com/1F47E/go-stickerconv/pkg/config"
)

// Scheme is a fixed key xor-ed over the first Span bytes, the key repeating
// as often as needed. Span <= 0 covers the whole payload.
type Scheme struct {
	Key  []byte
	Span int
}

// Decrypt returns a new slice, data is left untouched.
func (s Scheme) Decrypt(data []byte) []byte {
	return XOR(data, s.Key, s.Span)
}

// Encrypt is Decrypt, kept for readability at call sites that obfuscate.
func (s Scheme) Encrypt(data []byte) []byte {
	return XOR(data, s.Key, s.Span)
}

// XOR applies key cyclically from offset 0. Bytes past span are copied as is.
func XOR(data, key []byte, span int) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	if len(key) == 0 {
		return out
	}
	n := len(out)
	if span > 0 && span < n {
		n = span
	}
	for i := 0; i < n; i++ {
		out[i] ^= key[i%len(key)]
	}
	return out
}

var (
	kakaoOnce sync.Once
	kakaoKey  []byte
)

// Kakao returns the vendor scheme. The keystream is generated once.
func Kakao() Scheme {
	kakaoOnce.Do(func() {
		kakaoKey = Keystream(cfg.CipherKey, cfg.CipherSpan)
	})
	key := make([]byte, len(kakaoKey))
	copy(key, kakaoKey)
	return Scheme{Key: key, Span: cfg.CipherSpan}
}

// Keystream runs the vendor lfsr seeded with seed and returns n key bytes.
func Keystream(seed string, n int) []byte {
	l := newLFSR(seed)
	out := make([]byte, n)
	for i := range out {
		out[i] = l.next()
	}
	return out
}

// three 32 bit registers, stepped eight times per key byte
type lfsr [3]uint32

func newLFSR(seed string) *lfsr {
	d := seed + seed
	for len(d) < 12 {
		d += "\x00"
	}
	l := lfsr{0x12000032, 0x2527ac91, 0x888c1214}
	for i := 0; i < 4; i++ {
		l[0] = uint32(d[i]) | l[0]<<8
		l[1] = uint32(d[4+i]) | l[1]<<8
		l[2] = uint32(d[8+i]) | l[2]<<8
	}
	return &l
}

func (l *lfsr) next() byte {
	var flag1, flag2 uint32 = 1, 0
	var b uint32
	for i := 0; i < 8; i++ {
		v := l[0] >> 1
		if l[0]<<31 != 0 {
			l[0] = v ^ 0xc0000031
			v1 := l[1] >> 1
			if l[1]<<30 != 0 {
				l[1] = (v1 | 0xc0000000) ^ 0x20000010
				flag1 = 1
			} else {
				l[1] = v1 & 0x3fffffff
				flag1 = 0
			}
		} else {
			l[0] = v
			v2 := l[2] >> 1
			if l[2]<<28 != 0 {
				l[2] = (v2 | 0xf0000000) ^ 0x8000001
				flag2 = 1
			} else {
				l[2] = v2 & 0xfffffff
				flag2 = 0
			}
		}
		b = (flag1 ^ flag2) | b<<1
	}
	return byte(b)
}
