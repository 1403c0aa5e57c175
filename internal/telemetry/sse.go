package telemetry

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// MaxLineSize is the maximum allowed size of a single stream line (64KB).
const MaxLineSize = 64 * 1024

// ErrLineTooLong is returned when a stream line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("event stream line too long")

// Event is one server-sent event.
type Event struct {
	// ID is the last event id seen on the stream, carried across events.
	ID    string
	Type  string
	Data  []byte
	Retry time.Duration
}

// Reader parses Server-Sent Events from a stream.
type Reader struct {
	reader *bufio.Reader
	lastID string
}

// NewReader creates a new SSE reader from an io.Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReaderSize(r, 4096)}
}

// Next reads the next event. Events without data are skipped, as are
// comment lines. Returns io.EOF when the stream ends.
func (s *Reader) Next() (Event, error) {
	var ev Event
	var dataLines [][]byte
	hasData := false

	for {
		line, err := s.readLine()
		if err != nil {
			if err == io.EOF && hasData {
				return s.dispatch(ev, dataLines), nil
			}
			return Event{}, err
		}

		// Empty line signals end of event
		if len(line) == 0 {
			if hasData {
				return s.dispatch(ev, dataLines), nil
			}
			ev = Event{}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = bytes.TrimPrefix(value, []byte(" "))
		}

		switch string(field) {
		case "event":
			ev.Type = string(value)
		case "data":
			dataLines = append(dataLines, append([]byte(nil), value...))
			hasData = true
		case "id":
			if bytes.IndexByte(value, 0) < 0 {
				s.lastID = string(value)
			}
		case "retry":
			if ms, err := strconv.Atoi(string(value)); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

// LastID returns the most recent event id the server sent.
func (s *Reader) LastID() string {
	return s.lastID
}

func (s *Reader) dispatch(ev Event, dataLines [][]byte) Event {
	ev.ID = s.lastID
	ev.Data = bytes.Join(dataLines, []byte("\n"))
	return ev
}

// readLine returns one line without its terminator.
func (s *Reader) readLine() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := s.reader.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > MaxLineSize {
			return nil, ErrLineTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return bytes.TrimRight(buf, "\r\n"), nil
			}
			return nil, err
		}
		return bytes.TrimRight(buf, "\r\n"), nil
	}
}
