package measure

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrBadMagic is returned when a stream does not start with a profile header.
var ErrBadMagic = errors.New("measure: not a profile stream")

// Data is a fully decoded profile.
type Data struct {
	Header   Header
	Strings  map[StringID]string
	Mappings map[StringID]StringID
	Events   []RawEvent
}

// ResolveString returns the text behind id, following a virtual mapping
// if needed.
func (d *Data) ResolveString(id StringID) (string, bool) {
	if id.IsVirtual() {
		concrete, ok := d.Mappings[id]
		if !ok {
			return "", false
		}
		id = concrete
	}
	text, ok := d.Strings[id]
	return text, ok
}

// Label returns a printable label for an event id. Invalid ids yield ""
// and unresolved ids yield their debug form in angle brackets.
func (d *Data) Label(id EventID) string {
	if !id.IsValid() {
		return ""
	}
	if text, ok := d.ResolveString(id.StringID()); ok {
		return text
	}
	return "<" + id.StringID().String() + ">"
}

// KindName returns the text of an event kind.
func (d *Data) KindName(kind StringID) string {
	if text, ok := d.ResolveString(kind); ok {
		return text
	}
	return "<" + kind.String() + ">"
}

// ReadProfileFile opens and decodes a profile file.
func ReadProfileFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close() //nolint:errcheck // read-only
	}()
	data, err := ReadProfile(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// ReadProfile decodes a stream written by StreamRecorder.
func ReadProfile(r io.Reader) (*Data, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))

	data := &Data{
		Strings:  make(map[StringID]string),
		Mappings: make(map[StringID]StringID),
	}
	if err := dec.Decode(&data.Header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMagic, err)
	}
	if data.Header.Magic != Magic {
		return nil, ErrBadMagic
	}
	if data.Header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported profile version %d (expected %d)", data.Header.Version, FormatVersion)
	}

	for {
		tag, err := dec.DecodeUint8()
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record tag: %w", err)
		}
		if err := data.decodeRecord(dec, recordTag(tag)); err != nil {
			return nil, fmt.Errorf("failed to read %s record: %w", recordTag(tag), err)
		}
	}
}

func (d *Data) decodeRecord(dec *msgpack.Decoder, tag recordTag) error {
	switch tag {
	case tagString:
		var rec stringRecord
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		d.Strings[rec.ID] = rec.Text
	case tagMapping:
		var rec mappingRecord
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		d.Mappings[rec.From] = rec.To
	case tagBulkMapping:
		var rec bulkMappingRecord
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		for _, from := range rec.From {
			d.Mappings[from] = rec.To
		}
	case tagEvent:
		var ev RawEvent
		if err := dec.Decode(&ev); err != nil {
			return err
		}
		d.Events = append(d.Events, ev)
	default:
		return fmt.Errorf("unknown record tag %d", tag)
	}
	return nil
}
