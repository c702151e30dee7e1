// Package frame reconstructs card identifiers from the fragmented,
// zero-padded reports a USB HID proximity reader produces.  A single
// card presentation arrives spread across several 64-byte reports; the
// assembler accumulates the non-zero payload bytes and closes the frame
// either when enough bytes are in hand or when the reader goes quiet.
package frame

import (
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/types"
)

const (
	// MinFrameBytes is the shortest buffer the reader emits for a real
	// badge.  Shorter buffers keep accumulating.
	MinFrameBytes = 4

	// MaxFrameBytes is the longest plausible numeric badge payload.
	// Anything longer is treated as a malformed read and identified by
	// its raw hex instead of a decimal value.
	MaxFrameBytes = 16

	// CardTimeout is the inter-report gap that finalizes a pending
	// frame: one scan's tail bytes must never leak into the next scan.
	CardTimeout = 500 * time.Millisecond

	// DuplicateTimeout suppresses re-emission of the identifier that
	// was just emitted.  Readers repeat the payload while the card is
	// held against the antenna.
	DuplicateTimeout = 2 * time.Second
)

// Assembler turns raw HID reports into CardScan events.  It is not safe
// for concurrent use; the reader polling loop is its only caller.
type Assembler struct {
	cardTimeout time.Duration
	dupTimeout  time.Duration

	buf        []byte
	lastByteAt time.Time

	lastID     string
	lastEmitAt time.Time
}

func New() *Assembler {
	return &Assembler{
		cardTimeout: CardTimeout,
		dupTimeout:  DuplicateTimeout,
	}
}

// Submit feeds one raw report into the assembler.  If the report's
// arrival finalizes a frame (either a stale pending buffer or a buffer
// that just reached the minimum length), the completed scan is
// returned.  Zero bytes are framing padding and are dropped.
func (a *Assembler) Submit(report []byte, now time.Time) (types.CardScan, bool) {
	var stale types.CardScan
	var haveStale bool

	// A gap longer than cardTimeout means the pending buffer belongs to
	// the previous presentation.  Close it before touching the new
	// report so the two scans never merge.
	if len(a.buf) > 0 && now.Sub(a.lastByteAt) > a.cardTimeout {
		stale, haveStale = a.close(now)
	}

	for _, b := range report {
		if b != 0 {
			a.buf = append(a.buf, b)
			a.lastByteAt = now
		}
	}

	if haveStale {
		return stale, true
	}
	if len(a.buf) >= MinFrameBytes {
		return a.close(now)
	}
	return types.CardScan{}, false
}

// Flush closes the pending buffer if the reader has been quiet past the
// card timeout.  The polling loop calls this on idle reads so a short
// frame (under MinFrameBytes) still surfaces once the card is gone.
func (a *Assembler) Flush(now time.Time) (types.CardScan, bool) {
	if len(a.buf) == 0 || now.Sub(a.lastByteAt) <= a.cardTimeout {
		return types.CardScan{}, false
	}
	return a.close(now)
}

// Pending reports how many bytes are buffered awaiting a frame close.
func (a *Assembler) Pending() int { return len(a.buf) }

func (a *Assembler) close(now time.Time) (types.CardScan, bool) {
	buf := a.buf
	a.buf = nil

	id, raw := identify(buf)
	if id == "" || id == "0" {
		// All-zero payloads are reader noise, not a card.
		return types.CardScan{}, false
	}
	if id == a.lastID && now.Sub(a.lastEmitAt) < a.dupTimeout {
		// Duplicate within the suppression window: discard, do not
		// reprocess.
		return types.CardScan{}, false
	}

	a.lastID = id
	a.lastEmitAt = now
	return types.CardScan{CardID: id, RawHex: raw, ReadAt: now}, true
}

// identify derives the canonical identifier for a closed frame: the
// decimal rendering of the buffer as a big-endian integer.  Buffers too
// long to be a numeric badge degrade to their raw hex so a mis-decoded
// card still produces an auditable identifier instead of an error.
func identify(buf []byte) (id, raw string) {
	raw = strings.ToUpper(hex.EncodeToString(buf))
	if len(buf) == 0 {
		return "", raw
	}
	if len(buf) > MaxFrameBytes {
		return raw, raw
	}
	return new(big.Int).SetBytes(buf).String(), raw
}
