package archive

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"tweetloader/internal/domain"
)

// ErrDecode marks a line that is not a valid JSON record.
var ErrDecode = errors.New("decode record")

// maxLine bounds a single record. Archived records with long-form text and
// full entity containers stay well under it.
const maxLine = 16 << 20

// DecodeError reports the 1-based line of an undecodable record.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: line %d: %v", ErrDecode, e.Line, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// Record is one decoded line and its 1-based line number.
type Record struct {
	Line  int
	Tweet domain.Tweet
}

// Decoder streams records from a newline-delimited JSON member. Like
// bufio.Scanner, iteration stops at the first error, which Err reports.
type Decoder struct {
	sc   *bufio.Scanner
	line int
	err  error
}

// NewDecoder reads r, dropping a leading byte-order mark.
func NewDecoder(r io.Reader) *Decoder {
	r = transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	return &Decoder{sc: sc}
}

// Records yields each non-blank line decoded as a tweet.
func (d *Decoder) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for d.err == nil && d.sc.Scan() {
			d.line++
			b := bytes.TrimSpace(d.sc.Bytes())
			if len(b) == 0 {
				continue
			}
			var t domain.Tweet
			if err := json.Unmarshal(b, &t); err != nil {
				d.err = &DecodeError{Line: d.line, Err: err}
				return
			}
			if !yield(Record{Line: d.line, Tweet: t}) {
				return
			}
		}
		if d.err == nil {
			if err := d.sc.Err(); err != nil {
				d.err = fmt.Errorf("read line %d: %w", d.line+1, err)
			}
		}
	}
}

// Err returns the first decode or read error, if any.
func (d *Decoder) Err() error { return d.err }

// Line is the number of the last line read.
func (d *Decoder) Line() int { return d.line }
