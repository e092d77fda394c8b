package meta

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	cfg "github.com/1F47E/go-stickerconv/pkg/config"
)

// Metadata describes one asset file as handed over by the retrieval side.
type Metadata struct {
	Filename  string
	Dir       string
	Stem      string
	Ext       string // lower case, with a dot
	PackID    string // name of the directory holding the asset
	Index     int    // -1 when the stem is not a number
	timestamp int64
}

func New(path string) Metadata {
	filename := filepath.Base(path)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	dir := filepath.Dir(path)

	index, err := strconv.Atoi(stem)
	if err != nil || index < 0 {
		index = -1
	}
	return Metadata{
		Filename:  filename,
		Dir:       dir,
		Stem:      stem,
		Ext:       strings.ToLower(ext),
		PackID:    filepath.Base(dir),
		Index:     index,
		timestamp: time.Now().Unix(),
	}
}

func (m *Metadata) Path() string {
	return filepath.Join(m.Dir, m.Filename)
}

// OutputPath is where the animated png for this asset goes.
func (m *Metadata) OutputPath() string {
	return filepath.Join(m.Dir, m.Stem+cfg.ExtOutput)
}

// IsAnimated reports whether the asset goes through the full transcode.
// Only these formats are shipped obfuscated.
func (m *Metadata) IsAnimated() bool {
	return m.Ext == cfg.ExtWebp || m.Ext == cfg.ExtGif
}

func (m *Metadata) IsOk() bool {
	if len(m.Filename) > 0 && m.Filename != "." && m.timestamp > 0 {
		return true
	}
	return false
}

func (m *Metadata) Print() string {
	return fmt.Sprintf("Filename: %s, Pack: %s, Index: %d, Timestamp: %d (%s)", m.Filename, m.PackID, m.Index, m.timestamp, m.FormatDatetime())
}

func (m *Metadata) FormatDatetime() string {
	t := time.Unix(m.timestamp, 0)
	localTime := t.Local()
	return localTime.Format(time.RFC822)
}

// Checksum is the fnv-1a hash of data, hex encoded.
func Checksum(data []byte) string {
	hasher := fnv.New64a()
	_, _ = hasher.Write(data)
	return hex.EncodeToString(convertUint64ToBytes(hasher.Sum64()))
}

func convertUint64ToBytes(num uint64) []byte {
	byteArray := make([]byte, 8)
	binary.BigEndian.PutUint64(byteArray, num)
	return byteArray
}
