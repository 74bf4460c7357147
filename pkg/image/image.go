// Package image stores assembled programs as content-addressed CBOR images.
//
// An image carries the decoded instructions of a program together with the
// SHA-256 hash of its canonical source rendering. Loading an image rebuilds
// and validates the program and rejects it when the hash does not match.
package image

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/duet/pkg/asm"
)

// Version is the image format version written by Marshal.
const Version = 1

// Ext is the conventional file extension of an image.
const Ext = ".dimg"

var (
	// ErrHashMismatch means the instructions do not match the recorded hash.
	ErrHashMismatch = errors.New("image: hash mismatch")
	// ErrVersion means the image was written by an unknown format version.
	ErrVersion = errors.New("image: unsupported version")
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Image is the serialized form of an assembled program.
type Image struct {
	Version      byte               `cbor:"1,keyasint"`
	Hash         [32]byte           `cbor:"2,keyasint"`
	Set          asm.InstructionSet `cbor:"3,keyasint"`
	Instructions []asm.Instruction  `cbor:"4,keyasint"`
	Lines        []int              `cbor:"5,keyasint,omitempty"` // source lines
	Name         string             `cbor:"6,keyasint,omitempty"`
}

// HashProgram returns the content hash of a program: SHA-256 over its
// instruction set name and canonical source.
func HashProgram(p *asm.Program) [32]byte {
	var buf bytes.Buffer
	buf.WriteString(p.Set.String())
	buf.WriteByte('\n')
	buf.WriteString(p.String())
	return sha256.Sum256(buf.Bytes())
}

// Assemble builds an image from a decoded program.
func Assemble(name string, p *asm.Program) *Image {
	img := &Image{
		Version:      Version,
		Hash:         HashProgram(p),
		Set:          p.Set,
		Instructions: append([]asm.Instruction(nil), p.Instructions...),
		Name:         name,
	}
	if len(p.Lines) == len(p.Instructions) {
		img.Lines = append([]int(nil), p.Lines...)
	}
	return img
}

// Program validates the image and rebuilds its program.
func (img *Image) Program() (*asm.Program, error) {
	if img.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, img.Version)
	}
	p, err := asm.New(img.Set, img.Instructions)
	if err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	if HashProgram(p) != img.Hash {
		return nil, fmt.Errorf("%w: %s", ErrHashMismatch, img.Name)
	}
	if len(img.Lines) == p.Len() {
		copy(p.Lines, img.Lines)
	}
	return p, nil
}

// HashString returns the hex form of the content hash.
func (img *Image) HashString() string {
	return fmt.Sprintf("%x", img.Hash)
}

// Marshal serializes an image to canonical CBOR.
func Marshal(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// Unmarshal deserializes an image from CBOR bytes. It does not validate
// the program; call Program for that.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("image: unmarshal: %w", err)
	}
	return &img, nil
}

// WriteFile assembles p and writes its image to path.
func WriteFile(path, name string, p *asm.Program) (*Image, error) {
	img := Assemble(name, p)
	data, err := Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("image: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, err
	}
	return img, nil
}

// Load reads the image at path and returns its validated program.
func Load(path string) (*asm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	p, err := img.Program()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
