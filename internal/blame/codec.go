package blame

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion is the version written by MarshalBinary and MarshalJSON.
// Version 1 payloads carry no commit time.
const SchemaVersion = 2

var magic = []byte("FBLM")

// Tag numbers for fields of an encoded FileBlame. Tags are never reused.
const (
	tagFileName = 1
	tagLine     = 2
	tagCommit   = 3
	tagAuthor   = 4
	tagEmail    = 5
	tagTime     = 6 // since version 2
)

var (
	ErrCorruptMagic    = errors.New("corrupt file blame: magic")
	ErrCorruptVersion  = errors.New("corrupt file blame: schema version")
	ErrCorruptTag      = errors.New("corrupt file blame: tag")
	ErrCorruptFileName = errors.New("corrupt file blame: file name")
	ErrCorruptLine     = errors.New("corrupt file blame: line")
	ErrCorruptValue    = errors.New("corrupt file blame: attribute value")
)

// MarshalBinary encodes fb in the current schema version. Lines are written
// in ascending order.
func (fb *FileBlame) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 64+len(fb.lines)*48)
	buf = append(buf, magic...)
	buf = binary.AppendUvarint(buf, SchemaVersion)
	buf = binary.AppendUvarint(buf, tagFileName)
	buf = appendLengthPrefixedString(buf, fb.fileName)
	for _, line := range fb.LineNumbers() {
		attr := fb.lines[line]
		buf = binary.AppendUvarint(buf, tagLine)
		buf = binary.AppendVarint(buf, int64(line))
		buf = binary.AppendUvarint(buf, tagCommit)
		buf = appendLengthPrefixedString(buf, attr.Commit)
		buf = binary.AppendUvarint(buf, tagAuthor)
		buf = appendLengthPrefixedString(buf, attr.Author)
		buf = binary.AppendUvarint(buf, tagEmail)
		buf = appendLengthPrefixedString(buf, attr.Email)
		buf = binary.AppendUvarint(buf, tagTime)
		buf = binary.AppendVarint(buf, attr.Time)
	}
	return buf, nil
}

func appendLengthPrefixedString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// UnmarshalBinary replaces the content of fb with the decoded payload. Any
// schema version up to SchemaVersion is accepted; attributes missing from
// older payloads read back as defaults.
func (fb *FileBlame) UnmarshalBinary(data []byte) error {
	if !bytes.HasPrefix(data, magic) {
		return ErrCorruptMagic
	}
	d := decoder{buf: data[len(magic):]}
	version, err := d.uvarint(ErrCorruptVersion)
	if err != nil {
		return err
	}
	if version == 0 || version > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrCorruptVersion, version)
	}

	var (
		fileName    string
		hasFileName bool
		lines       = make(map[int]LineAttribution)
		current     int
		open        bool
	)
	setAttr := func(set func(*LineAttribution)) error {
		if !open {
			return fmt.Errorf("%w: attribute before line", ErrCorruptLine)
		}
		attr := lines[current]
		set(&attr)
		lines[current] = attr
		return nil
	}

	for len(d.buf) != 0 {
		tag, err := d.uvarint(ErrCorruptTag)
		if err != nil {
			return err
		}
		switch tag {
		case tagFileName:
			if fileName, err = d.str(ErrCorruptFileName); err != nil {
				return err
			}
			hasFileName = true
		case tagLine:
			line, err := d.varint(ErrCorruptLine)
			if err != nil {
				return err
			}
			if int64(int(line)) != line {
				return fmt.Errorf("%w: %d out of range", ErrCorruptLine, line)
			}
			current, open = int(line), true
			if _, ok := lines[current]; !ok {
				lines[current] = emptyAttribution()
			}
		case tagCommit, tagAuthor, tagEmail:
			s, err := d.str(ErrCorruptValue)
			if err != nil {
				return err
			}
			err = setAttr(func(a *LineAttribution) {
				switch tag {
				case tagCommit:
					a.Commit = s
				case tagAuthor:
					a.Author = s
				default:
					a.Email = s
				}
			})
			if err != nil {
				return err
			}
		case tagTime:
			t, err := d.varint(ErrCorruptValue)
			if err != nil {
				return err
			}
			if err := setAttr(func(a *LineAttribution) { a.Time = t }); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown tag %d", ErrCorruptTag, tag)
		}
	}
	if !hasFileName {
		return fmt.Errorf("%w: missing", ErrCorruptFileName)
	}

	fb.fileName = normalizeFileName(fileName)
	fb.lines = lines
	return nil
}

type decoder struct {
	buf []byte
}

func (d *decoder) uvarint(corrupt error) (uint64, error) {
	x, n := binary.Uvarint(d.buf)
	if n <= 0 {
		return 0, corrupt
	}
	d.buf = d.buf[n:]
	return x, nil
}

func (d *decoder) varint(corrupt error) (int64, error) {
	x, n := binary.Varint(d.buf)
	if n <= 0 {
		return 0, corrupt
	}
	d.buf = d.buf[n:]
	return x, nil
}

func (d *decoder) str(corrupt error) (string, error) {
	l, err := d.uvarint(corrupt)
	if err != nil {
		return "", err
	}
	if l > uint64(len(d.buf)) {
		return "", corrupt
	}
	s := string(d.buf[:l])
	d.buf = d.buf[l:]
	return s, nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(data []byte) (*FileBlame, error) {
	fb := New("")
	if err := fb.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return fb, nil
}

type jsonFileBlame struct {
	SchemaVersion int        `json:"schema_version"`
	FileName      string     `json:"file_name"`
	Lines         []jsonLine `json:"lines"`
}

// Attribute fields are pointers so that absent fields can be told apart
// from explicit values.
type jsonLine struct {
	Line   int     `json:"line"`
	Commit *string `json:"commit,omitempty"`
	Author *string `json:"author,omitempty"`
	Email  *string `json:"email,omitempty"`
	Time   *int64  `json:"time,omitempty"`
}

func (fb *FileBlame) MarshalJSON() ([]byte, error) {
	doc := jsonFileBlame{
		SchemaVersion: SchemaVersion,
		FileName:      fb.fileName,
		Lines:         make([]jsonLine, 0, len(fb.lines)),
	}
	for _, line := range fb.LineNumbers() {
		attr := fb.lines[line]
		doc.Lines = append(doc.Lines, jsonLine{
			Line:   line,
			Commit: &attr.Commit,
			Author: &attr.Author,
			Email:  &attr.Email,
			Time:   &attr.Time,
		})
	}
	return json.Marshal(doc)
}

func (fb *FileBlame) UnmarshalJSON(data []byte) error {
	var doc jsonFileBlame
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.SchemaVersion > SchemaVersion {
		return fmt.Errorf("%w: %d", ErrCorruptVersion, doc.SchemaVersion)
	}

	decoded := New(doc.FileName)
	for _, l := range doc.Lines {
		decoded.update(l.Line, func(a *LineAttribution) {
			if l.Commit != nil {
				a.Commit = *l.Commit
			}
			if l.Author != nil {
				a.Author = *l.Author
			}
			if l.Email != nil {
				a.Email = *l.Email
			}
			if l.Time != nil {
				a.Time = *l.Time
			}
		})
	}
	*fb = *decoded
	return nil
}
