package event

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go-hep.org/x/hep/fmom"
)

// maxLineBytes bounds a single JSON-encoded event.
const maxLineBytes = 16 * 1024 * 1024

// Reader decodes events from a JSON Lines stream, one event per line.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Next returns the next event, or io.EOF when the stream is exhausted.
// Blank lines are skipped.
func (r *Reader) Next() (*Event, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSpace(r.sc.Text())
		if text == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("line %d: failed to parse event JSON: %w", r.line, err)
		}
		return &ev, nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}
	return nil, io.EOF
}

// Writer encodes events as JSON Lines.
type Writer struct {
	enc *json.Encoder
}

// NewWriter returns a Writer onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends ev as one line.
func (w *Writer) Write(ev *Event) error {
	if err := w.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to encode event %d: %w", ev.Number, err)
	}
	return nil
}

// p4JSON is the wire form of a four-momentum: [px, py, pz, E].
type p4JSON [4]float64

func toP4JSON(p fmom.PxPyPzE) p4JSON {
	return p4JSON{p.P4.X, p.P4.Y, p.P4.Z, p.P4.T}
}

func (a p4JSON) vec() fmom.PxPyPzE { return fmom.NewPxPyPzE(a[0], a[1], a[2], a[3]) }

func (j Jet) MarshalJSON() ([]byte, error) {
	type plain Jet
	return json.Marshal(struct {
		plain
		P4 p4JSON `json:"p4"`
	}{plain(j), toP4JSON(j.P4)})
}

func (j *Jet) UnmarshalJSON(b []byte) error {
	type plain Jet
	aux := struct {
		*plain
		P4 p4JSON `json:"p4"`
	}{plain: (*plain)(j)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	j.P4 = aux.P4.vec()
	return nil
}

func (g GenJet) MarshalJSON() ([]byte, error) {
	type plain GenJet
	return json.Marshal(struct {
		plain
		P4 p4JSON `json:"p4"`
	}{plain(g), toP4JSON(g.P4)})
}

func (g *GenJet) UnmarshalJSON(b []byte) error {
	type plain GenJet
	aux := struct {
		*plain
		P4 p4JSON `json:"p4"`
	}{plain: (*plain)(g)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	g.P4 = aux.P4.vec()
	return nil
}

func (m MET) MarshalJSON() ([]byte, error) {
	type plain MET
	return json.Marshal(struct {
		plain
		P4 p4JSON `json:"p4"`
	}{plain(m), toP4JSON(m.P4)})
}

func (m *MET) UnmarshalJSON(b []byte) error {
	type plain MET
	aux := struct {
		*plain
		P4 p4JSON `json:"p4"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.P4 = aux.P4.vec()
	return nil
}
