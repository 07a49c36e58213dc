// Package sigscan finds byte signatures with wildcards in module images.
package sigscan

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadPattern = errors.New("sigscan: bad pattern")

// Pattern is a parsed signature. Mask is false where any byte matches.
type Pattern struct {
	Bytes []byte
	Mask  []bool
}

// Parse reads space separated hex pairs; "?" or "??" is a wildcard.
func Parse(s string) (Pattern, error) {
	var p Pattern
	for _, tok := range strings.Fields(s) {
		if tok == "?" || tok == "??" {
			p.Bytes = append(p.Bytes, 0)
			p.Mask = append(p.Mask, false)
			continue
		}
		if len(tok) != 2 {
			return Pattern{}, fmt.Errorf("%w: %q", ErrBadPattern, tok)
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: %q", ErrBadPattern, tok)
		}
		p.Bytes = append(p.Bytes, byte(v))
		p.Mask = append(p.Mask, true)
	}
	if len(p.Bytes) == 0 {
		return Pattern{}, fmt.Errorf("%w: empty", ErrBadPattern)
	}
	if _, anchor := p.anchor(); len(anchor) == 0 {
		return Pattern{}, fmt.Errorf("%w: no literal bytes", ErrBadPattern)
	}
	return p, nil
}

func (p Pattern) String() string {
	parts := make([]string, len(p.Bytes))
	for i, b := range p.Bytes {
		if p.Mask[i] {
			parts[i] = fmt.Sprintf("%02X", b)
		} else {
			parts[i] = "??"
		}
	}
	return strings.Join(parts, " ")
}

// anchor is the first run of literal bytes and its position.
func (p Pattern) anchor() (int, []byte) {
	start := 0
	for start < len(p.Mask) && !p.Mask[start] {
		start++
	}
	end := start
	for end < len(p.Mask) && p.Mask[end] {
		end++
	}
	return start, p.Bytes[start:end]
}

func (p Pattern) matchAt(data []byte, off int) bool {
	if off < 0 || off+len(p.Bytes) > len(data) {
		return false
	}
	for i, b := range p.Bytes {
		if p.Mask[i] && data[off+i] != b {
			return false
		}
	}
	return true
}

// Find returns the offsets of every match in data, ascending, at most
// limit of them (0 means no limit). Matches may overlap.
func (p Pattern) Find(data []byte, limit int) []int {
	lead, anchor := p.anchor()
	var out []int
	for pos := lead; pos < len(data); pos++ {
		i := bytes.Index(data[pos:], anchor)
		if i < 0 {
			break
		}
		pos += i
		if off := pos - lead; p.matchAt(data, off) {
			out = append(out, off)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
