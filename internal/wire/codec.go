package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/xerrors"

	"mrkv-repl/internal/binlog"
)

const applyBinlogsCmd = "applybinlogs"

// WriteTimeoutFor implements the size-tiered write timeout of spec.md
// §4.2: bigger payloads get more time to land on a slow or congested
// link before the push routine gives up on this replica for this round.
func WriteTimeoutFor(payloadBytes int) time.Duration {
	switch {
	case payloadBytes > 10*1024*1024:
		return 4 * time.Second
	case payloadBytes > 1024*1024:
		return 2 * time.Second
	default:
		return 1 * time.Second
	}
}

// EncodeBatch frames a binlog batch as a RESP-style multi-bulk array:
//
//	*{2+2N}\r\n$12\r\napplybinlogs\r\n${len}\r\n{dstStoreId}\r\n($…\r\n{key}\r\n$…\r\n{val}\r\n)*N
//
// Keys and values are the raw bytes from ReplLog.Encode(); they are
// opaque to this layer.
func EncodeBatch(dstStoreId uint32, rows []binlog.ReplLog) ([]byte, error) {
	buf := new(bytes.Buffer)
	fmtMultiBulkLen(buf, 2+2*len(rows))
	fmtBulk(buf, []byte(applyBinlogsCmd))
	fmtBulk(buf, []byte(strconv.FormatUint(uint64(dstStoreId), 10)))
	for _, row := range rows {
		kv, err := row.Encode()
		if err != nil {
			return nil, xerrors.Errorf("wire: encode row: %w", err)
		}
		fmtBulk(buf, kv.Key)
		fmtBulk(buf, kv.Val)
	}
	return buf.Bytes(), nil
}

func fmtMultiBulkLen(buf *bytes.Buffer, n int) {
	fmt.Fprintf(buf, "*%d\r\n", n)
}

func fmtBulk(buf *bytes.Buffer, b []byte) {
	fmt.Fprintf(buf, "$%d\r\n", len(b))
	buf.Write(b)
	buf.WriteString("\r\n")
}

// ParseAck validates a status line read after writing a batch or a
// snapshot chunk: only "+OK" is acceptable.
func ParseAck(line string) error {
	if line != "+OK" {
		return xerrors.Errorf("wire: %w: %q", ErrProtocol, line)
	}
	return nil
}

// ParsePong validates the handshake's third leg.
func ParsePong(line string) error {
	if line != "+PONG" {
		return xerrors.Errorf("wire: %w: expected +PONG, got %q", ErrProtocol, line)
	}
	return nil
}

// EncodeManifest renders a backup's file list as the single JSON line
// that precedes a full-sync byte stream: {"file1": size1, "file2": size2}
// in manifest order.
func EncodeManifest(files []ManifestEntry) ([]byte, error) {
	// Built by hand rather than from a map, since encoding/json would
	// sort the keys and lose the manifest order.
	buf := new(bytes.Buffer)
	buf.WriteByte('{')
	for i, f := range files {
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(buf, "%s:%d", name, f.Size)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type ManifestEntry struct {
	Name string
	Size int64
}

func DecodeManifest(line []byte) (map[string]int64, error) {
	var m map[string]int64
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, xerrors.Errorf("wire: decode manifest: %w", err)
	}
	return m, nil
}
