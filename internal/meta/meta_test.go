package meta

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestConvertUint64ToBytes(t *testing.T) {
	testCases := []struct {
		name string
		num  uint64
		want []byte
	}{
		{
			name: "Test 1",
			num:  1234567890,
			want: []byte{0, 0, 0, 0, 73, 150, 2, 210},
		},
		{
			name: "Test 2",
			num:  9876543210,
			want: []byte{0, 0, 0, 2, 76, 176, 22, 234},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := convertUint64ToBytes(tc.num)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	testCases := []struct {
		path     string
		stem     string
		ext      string
		pack     string
		index    int
		animated bool
		out      string
	}{
		{"packs/4412/3.webp", "3", ".webp", "4412", 3, true, "packs/4412/3.apng"},
		{"packs/4412/7.GIF", "7", ".gif", "4412", 7, true, "packs/4412/7.apng"},
		{"x/cover.png", "cover", ".png", "x", -1, false, "x/cover.apng"},
		{"x/plain", "plain", "", "x", -1, false, "x/plain.apng"},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			m := New(filepath.FromSlash(tc.path))
			if m.Stem != tc.stem || m.Ext != tc.ext || m.PackID != tc.pack || m.Index != tc.index {
				t.Errorf("got %+v", m)
			}
			if m.IsAnimated() != tc.animated {
				t.Errorf("IsAnimated = %v, want %v", m.IsAnimated(), tc.animated)
			}
			if got := m.Path(); got != filepath.FromSlash(tc.path) {
				t.Errorf("Path = %s, want %s", got, tc.path)
			}
			if got := m.OutputPath(); got != filepath.FromSlash(tc.out) {
				t.Errorf("OutputPath = %s, want %s", got, tc.out)
			}
			if !m.IsOk() {
				t.Errorf("metadata not ok: %s", m.Print())
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	// fnv-1a of the empty input is the offset basis
	if got := Checksum(nil); got != "cbf29ce484222325" {
		t.Errorf("got %s", got)
	}
	if Checksum([]byte("a")) == Checksum([]byte("b")) {
		t.Error("checksums collide")
	}
}
