package derivation

import (
	"fmt"
	"strings"
)

// .drv files hold a single ATerm of the shape
//
//	Derive([outputs],[inputDrvs],[inputSrcs],platform,builder,[args],[env])
//
// where outputs is a list of (name, path, hashAlgo, hash) tuples, inputDrvs a list of
// (drvPath, [outputNames]) tuples, and env a list of (key, value) pairs. Strings are
// double quoted with backslash escapes. Only outputs, inputDrvs, and env matter here.
const derivePrefix = "Derive"

type drv struct {
	outputs   map[string]string
	inputDrvs []string
	env       map[string]string
}

func parseDrv(contents string) (*drv, error) {
	p := &parser{input: contents}
	p.skipSpace()
	if !strings.HasPrefix(p.input[p.pos:], derivePrefix) {
		return nil, p.errorf("expected %q", derivePrefix)
	}
	p.pos += len(derivePrefix)

	fields, err := p.parseSeq('(', ')')
	if err != nil {
		return nil, err
	}
	if len(fields) < 7 {
		return nil, fmt.Errorf("malformed derivation: expected 7 fields, got %d", len(fields))
	}

	d := &drv{
		outputs: make(map[string]string),
		env:     make(map[string]string),
	}

	for _, item := range seqOf(fields[0]) {
		tuple := seqOf(item)
		if len(tuple) < 2 {
			return nil, fmt.Errorf("malformed derivation output entry")
		}
		d.outputs[stringOf(tuple[0])] = stringOf(tuple[1])
	}

	for _, item := range seqOf(fields[1]) {
		tuple := seqOf(item)
		if len(tuple) < 1 {
			return nil, fmt.Errorf("malformed derivation input entry")
		}
		d.inputDrvs = append(d.inputDrvs, stringOf(tuple[0]))
	}

	for _, item := range seqOf(fields[6]) {
		tuple := seqOf(item)
		if len(tuple) < 2 {
			return nil, fmt.Errorf("malformed derivation env entry")
		}
		d.env[stringOf(tuple[0])] = stringOf(tuple[1])
	}

	return d, nil
}

// value is either a string or a []value; lists and tuples are both sequences.
type value interface{}

func seqOf(v value) []value {
	if s, ok := v.([]value); ok {
		return s
	}
	return nil
}

func stringOf(v value) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseValue() (value, error) {
	p.skipSpace()
	switch {
	case p.pos >= len(p.input):
		return nil, p.errorf("unexpected end of input")
	case p.input[p.pos] == '"':
		return p.parseString()
	case p.input[p.pos] == '[':
		return p.parseSeq('[', ']')
	case p.input[p.pos] == '(':
		return p.parseSeq('(', ')')
	}
	return nil, p.errorf("unexpected character %q", p.input[p.pos])
}

func (p *parser) parseSeq(open, closing byte) ([]value, error) {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != open {
		return nil, p.errorf("expected %q", open)
	}
	p.pos++

	var items []value
	p.skipSpace()
	if p.pos < len(p.input) && p.input[p.pos] == closing {
		p.pos++
		return items, nil
	}

	for {
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, p.errorf("unterminated sequence")
		}
		switch p.input[p.pos] {
		case ',':
			p.pos++
		case closing:
			p.pos++
			return items, nil
		default:
			return nil, p.errorf("expected %q or %q, got %q", ',', closing, p.input[p.pos])
		}
	}
}

func (p *parser) parseString() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return "", p.errorf("unterminated escape")
			}
			switch e := p.input[p.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}
