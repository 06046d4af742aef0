package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrCorruptIndex marks an index document that cannot be trusted. A run
// never proceeds past an unreadable index; the caller aborts the stage.
var ErrCorruptIndex = errors.New("corrupt dataset index")

// timeLayout is the on-disk timestamp form. Acquisition clocks are
// local to the scanner, so no zone is recorded.
const timeLayout = "2006-01-02T15:04:05"

type acquisitionDoc struct {
	DateTime string `json:"datetime"`
}

type patientDoc struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Acquisitions []acquisitionDoc `json:"acquisitions"`
}

// Save writes the index to path. Output is deterministic for a given
// index and order, so successive runs diff cleanly.
func (x *Index) Save(path string, order Order) error {
	var buf bytes.Buffer
	buf.WriteString("{\"patients\":{")
	for i, id := range x.orderedIDs(order) {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return fmt.Errorf("encode index key: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		entry, err := json.Marshal(toDoc(x.patients[id]))
		if err != nil {
			return fmt.Errorf("encode index entry %s: %w", id, err)
		}
		buf.Write(entry)
	}
	buf.WriteString("}}")

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("format index: %w", err)
	}
	out.WriteByte('\n')
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Load reads an index document, validating its shape. Unknown keys and
// entries whose body disagrees with their key are rejected. The loaded
// index preserves the document's key order as its insertion order.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	x, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptIndex, path, err)
	}
	return x, nil
}

func decode(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	key, err := stringToken(dec)
	if err != nil {
		return nil, err
	}
	if key != "patients" {
		return nil, fmt.Errorf("unexpected top-level key %q", key)
	}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	x := New()
	for dec.More() {
		id, err := stringToken(dec)
		if err != nil {
			return nil, err
		}
		var doc patientDoc
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}
		p, err := fromDoc(doc)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", id, err)
		}
		if p.ID != id {
			return nil, fmt.Errorf("entry keyed %s declares id %s", id, p.ID)
		}
		if _, ok := x.Get(id); ok {
			return nil, fmt.Errorf("duplicate entry %s", id)
		}
		x.Put(p)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after document")
	}
	return x, nil
}

func toDoc(p Patient) patientDoc {
	doc := patientDoc{
		ID:           p.ID,
		Name:         p.Name,
		Acquisitions: make([]acquisitionDoc, 0, len(p.Acquisitions)),
	}
	for _, a := range p.Acquisitions {
		doc.Acquisitions = append(doc.Acquisitions, acquisitionDoc{
			DateTime: a.DateTime.Format(timeLayout),
		})
	}
	return doc
}

func fromDoc(doc patientDoc) (Patient, error) {
	if doc.ID == "" {
		return Patient{}, errors.New("missing id")
	}
	if doc.Name == "" {
		return Patient{}, errors.New("missing name")
	}
	p := Patient{
		ID:           doc.ID,
		Name:         doc.Name,
		Acquisitions: make([]Acquisition, 0, len(doc.Acquisitions)),
	}
	for _, a := range doc.Acquisitions {
		ts, err := time.Parse(timeLayout, a.DateTime)
		if err != nil {
			return Patient{}, fmt.Errorf("acquisition time %q: %w", a.DateTime, err)
		}
		p.Acquisitions = append(p.Acquisitions, Acquisition{DateTime: ts})
	}
	return p, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("truncated document: %w", err)
	}
	d, ok := tok.(json.Delim)
	if !ok || d != want {
		return fmt.Errorf("expected %q, found %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("truncated document: %w", err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, found %v", tok)
	}
	return s, nil
}
