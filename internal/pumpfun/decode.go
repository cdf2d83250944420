// internal/pumpfun/decode.go
package pumpfun

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// maxStringLen bounds borsh string prefixes so garbage data cannot trigger huge reads.
const maxStringLen = 1024

var ErrShortData = errors.New("instruction data too short")

// CreateArgs are the borsh-encoded arguments of a create instruction.
type CreateArgs struct {
	Name   string
	Symbol string
	URI    string
}

// DecodeCreateArgs parses create instruction data including its discriminator.
func DecodeCreateArgs(data []byte) (*CreateArgs, error) {
	if len(data) < len(CreateDiscriminator) {
		return nil, ErrShortData
	}
	r := &reader{data: data, offset: len(CreateDiscriminator)}

	var args CreateArgs
	var err error
	if args.Name, err = r.readString(); err != nil {
		return nil, fmt.Errorf("decode name: %w", err)
	}
	if args.Symbol, err = r.readString(); err != nil {
		return nil, fmt.Errorf("decode symbol: %w", err)
	}
	if args.URI, err = r.readString(); err != nil {
		return nil, fmt.Errorf("decode uri: %w", err)
	}
	return &args, nil
}

// EncodeCreateArgs builds create instruction data. Used to craft fixtures.
func EncodeCreateArgs(args CreateArgs) []byte {
	out := make([]byte, 0, len(CreateDiscriminator)+12+len(args.Name)+len(args.Symbol)+len(args.URI))
	out = append(out, CreateDiscriminator...)
	for _, s := range []string{args.Name, args.Symbol, args.URI} {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return out
}

type reader struct {
	data   []byte
	offset int
}

// readUint32LittleEndian reads a uint32 from the current offset
func (r *reader) readUint32LittleEndian() (uint32, error) {
	if r.offset+4 > len(r.data) {
		return 0, ErrShortData
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset : r.offset+4])
	r.offset += 4
	return v, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readUint32LittleEndian()
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds limit", n)
	}
	end := r.offset + int(n)
	if end > len(r.data) {
		return "", ErrShortData
	}
	s := string(r.data[r.offset:end])
	r.offset = end
	return s, nil
}
