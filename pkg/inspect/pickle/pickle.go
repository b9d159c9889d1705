// Package pickle scans Python pickle streams without loading them.
//
// The scanner walks the opcode stream (protocols 0 through 5), skipping
// payloads, and collects what the description builders need: which
// classes the stream references and the scikit-learn version string
// pickled next to an estimator.
package pickle

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

var (
	ErrNotPickle     = errors.New("not a pickle stream")
	ErrTruncated     = errors.New("truncated pickle stream")
	ErrUnknownOpcode = errors.New("unknown pickle opcode")
)

// ClassRef is a class referenced from a pickle stream.
type ClassRef struct {
	Module string
	Name   string
}

func (c ClassRef) String() string {
	return c.Module + "." + c.Name
}

// support machinery modules; never the class a user pickled
var machinery = []string{
	"joblib.", "numpy", "copyreg", "copy_reg", "builtins", "__builtin__", "_codecs",
}

func (c ClassRef) isMachinery() bool {
	for _, prefix := range machinery {
		if c.Module == strings.TrimSuffix(prefix, ".") || strings.HasPrefix(c.Module, prefix) {
			return true
		}
	}
	return false
}

// Summary is what a scan finds in a pickle stream.
type Summary struct {
	Protocol       int
	Classes        []ClassRef
	SklearnVersion string
}

// Origin returns the first referenced class that is not pickling
// machinery. For a pickled object that is the object's own class.
func (s Summary) Origin() (ClassRef, bool) {
	for _, c := range s.Classes {
		if !c.isMachinery() {
			return c, true
		}
	}
	return ClassRef{}, false
}

// IsJoblib reports whether the stream was written through joblib.
func (s Summary) IsJoblib() bool {
	for _, c := range s.Classes {
		if strings.HasPrefix(c.Module, "joblib.") {
			return true
		}
	}
	return false
}

// ScanFile scans the pickle stream stored at path.
func ScanFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, err
	}
	defer f.Close()
	return Scan(f)
}

// Scan walks the opcode stream until STOP and summarizes it.
func Scan(r io.Reader) (Summary, error) {
	s := &scanner{in: bufio.NewReader(r)}
	sum, err := s.run()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if !s.started {
				return Summary{}, ErrNotPickle
			}
			return Summary{}, ErrTruncated
		}
		return Summary{}, err
	}
	return sum, nil
}

type scanner struct {
	in      *bufio.Reader
	started bool

	sum Summary

	// last two string pushes, for STACK_GLOBAL
	prevStr string
	lastStr string

	// _sklearn_version's value is the string pushed right after the key
	versionNext bool
}

func (s *scanner) pushString(v string) {
	if s.versionNext {
		s.sum.SklearnVersion = v
		s.versionNext = false
	}
	if v == "_sklearn_version" {
		s.versionNext = true
	}
	s.prevStr, s.lastStr = s.lastStr, v
}

func (s *scanner) run() (Summary, error) {
	for {
		op, err := s.in.ReadByte()
		if err != nil {
			return Summary{}, err
		}

		if !s.started {
			// protocol 2+ opens with PROTO; older protocols have no
			// magic, so accept any known opcode and let unknown ones
			// mean "not a pickle"
			if op != opProto && !knownOpcode(op) {
				return Summary{}, ErrNotPickle
			}
			s.started = true
		}

		done, err := s.step(op)
		if err != nil {
			return Summary{}, err
		}
		if done {
			return s.sum, nil
		}
	}
}

const (
	opProto       = 0x80
	opStop        = '.'
	opFrame       = 0x95
	opGlobal      = 'c'
	opStackGlobal = 0x93
	opInst        = 'i'
)

func (s *scanner) step(op byte) (done bool, err error) {
	switch op {
	case opStop:
		return true, nil

	case opProto:
		v, err := s.in.ReadByte()
		if err != nil {
			return false, err
		}
		s.sum.Protocol = int(v)

	case opFrame:
		if err := s.skip(8); err != nil {
			return false, err
		}

	case opGlobal:
		module, err := s.line()
		if err != nil {
			return false, err
		}
		name, err := s.line()
		if err != nil {
			return false, err
		}
		s.sum.Classes = append(s.sum.Classes, ClassRef{Module: module, Name: name})

	case opInst:
		module, err := s.line()
		if err != nil {
			return false, err
		}
		name, err := s.line()
		if err != nil {
			return false, err
		}
		s.sum.Classes = append(s.sum.Classes, ClassRef{Module: module, Name: name})

	case opStackGlobal:
		s.sum.Classes = append(s.sum.Classes, ClassRef{Module: s.prevStr, Name: s.lastStr})

	// strings
	case 'S', 'V': // STRING (repr), UNICODE (raw line)
		v, err := s.line()
		if err != nil {
			return false, err
		}
		s.pushString(strings.Trim(v, `'"`))
	case 'U': // SHORT_BINSTRING
		return false, s.stringPayload(1)
	case 'T', 'X': // BINSTRING, BINUNICODE
		return false, s.stringPayload(4)
	case 0x8c: // SHORT_BINUNICODE
		return false, s.stringPayload(1)
	case 0x8d: // BINUNICODE8
		return false, s.stringPayload(8)

	// bytes
	case 'C': // SHORT_BINBYTES
		return false, s.skipSized(1)
	case 'B': // BINBYTES
		return false, s.skipSized(4)
	case 0x8e, 0x96: // BINBYTES8, BYTEARRAY8
		return false, s.skipSized(8)

	// numbers
	case 'I', 'L', 'F': // INT, LONG, FLOAT as text
		_, err := s.line()
		return false, err
	case 'J': // BININT
		return false, s.skip(4)
	case 'K': // BININT1
		return false, s.skip(1)
	case 'M': // BININT2
		return false, s.skip(2)
	case 'G': // BINFLOAT
		return false, s.skip(8)
	case 0x8a: // LONG1
		return false, s.skipSized(1)
	case 0x8b: // LONG4
		return false, s.skipSized(4)

	// memo
	case 'p', 'g': // PUT, GET as text
		_, err := s.line()
		return false, err
	case 'q', 'h': // BINPUT, BINGET
		return false, s.skip(1)
	case 'r', 'j': // LONG_BINPUT, LONG_BINGET
		return false, s.skip(4)
	case 0x94: // MEMOIZE
		// no payload

	// persistent ids
	case 'P': // PERSID as text
		_, err := s.line()
		return false, err
	case 'Q': // BINPERSID
		// no payload

	// extension registry
	case 0x82: // EXT1
		return false, s.skip(1)
	case 0x83: // EXT2
		return false, s.skip(2)
	case 0x84: // EXT4
		return false, s.skip(4)

	// structure and stack shuffling, no payload
	case 'N', 0x88, 0x89, // NONE, NEWTRUE, NEWFALSE
		'}', ']', ')', 0x8f, // EMPTY_DICT, EMPTY_LIST, EMPTY_TUPLE, EMPTY_SET
		0x85, 0x86, 0x87, // TUPLE1..3
		't', 'l', 'd', 0x90, // TUPLE, LIST, DICT, FROZENSET
		's', 'u', 'a', 'e', // SETITEM(S), APPEND(S)
		'(', '0', '1', '2', // MARK, POP, POP_MARK, DUP
		'R', 'b', 'o', // REDUCE, BUILD, OBJ
		0x81, 0x92, // NEWOBJ, NEWOBJ_EX
		0x97, 0x98: // NEXT_BUFFER, READONLY_BUFFER
		// no payload

	default:
		return false, fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, op)
	}
	return false, nil
}

func knownOpcode(op byte) bool {
	s := scanner{in: bufio.NewReader(strings.NewReader(""))}
	_, err := s.step(op)
	return !errors.Is(err, ErrUnknownOpcode)
}

func (s *scanner) line() (string, error) {
	v, err := s.in.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(v, "\n"), nil
}

func (s *scanner) skip(n int64) error {
	_, err := io.CopyN(io.Discard, s.in, n)
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (s *scanner) size(width int) (uint64, error) {
	buf := make([]byte, width)
	if _, err := io.ReadFull(s.in, buf); err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint64(buf[0]), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf)), nil
	case 8:
		return binary.LittleEndian.Uint64(buf), nil
	}
	return 0, fmt.Errorf("unsupported size width: %d", width)
}

func (s *scanner) skipSized(width int) error {
	n, err := s.size(width)
	if err != nil {
		return err
	}
	if math.MaxInt64 < n {
		return fmt.Errorf("%w: %d-byte payload", ErrTruncated, n)
	}
	return s.skip(int64(n))
}

// strings the scan keeps are class paths and version literals; anything
// bigger is pickled data and only needs to be walked over
const maxKeptString = 1 << 20

func (s *scanner) stringPayload(width int) error {
	n, err := s.size(width)
	if err != nil {
		return err
	}
	if maxKeptString < n {
		s.pushString("")
		if math.MaxInt64 < n {
			return fmt.Errorf("%w: %d-byte payload", ErrTruncated, n)
		}
		return s.skip(int64(n))
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.in, buf); err != nil {
		return err
	}
	s.pushString(string(buf))
	return nil
}
