package csv

import (
	"bufio"
	"bytes"
	"io"
)

// Replacement is a byte sequence fixed up before the CSV reader sees it.
type Replacement struct {
	From string
	To   string
}

// rewriter replaces one pattern in a stream without buffering the whole
// input. It holds back len(pat)-1 bytes between reads so matches that span
// chunk boundaries are still found.
type rewriter struct {
	br    *bufio.Reader
	pat   []byte
	repl  []byte
	carry []byte
	buf   bytes.Buffer
	chunk []byte
	eof   bool
}

func newRewriter(r io.Reader, pat, repl []byte) *rewriter {
	return &rewriter{
		br:    bufio.NewReaderSize(r, 64*1024),
		pat:   pat,
		repl:  repl,
		carry: make([]byte, 0, max(len(pat)-1, 0)),
		chunk: make([]byte, 64*1024),
	}
}

func (rw *rewriter) Read(p []byte) (int, error) {
	for rw.buf.Len() == 0 {
		if rw.eof {
			return 0, io.EOF
		}
		if err := rw.fill(); err != nil {
			return 0, err
		}
	}
	return rw.buf.Read(p)
}

func (rw *rewriter) fill() error {
	n, err := rw.br.Read(rw.chunk)
	if n > 0 {
		block := append(append(make([]byte, 0, len(rw.carry)+n), rw.carry...), rw.chunk[:n]...)
		block = bytes.ReplaceAll(block, rw.pat, rw.repl)

		k := len(rw.pat) - 1
		if len(block) > k {
			rw.buf.Write(block[:len(block)-k])
			rw.carry = append(rw.carry[:0], block[len(block)-k:]...)
		} else {
			rw.carry = append(rw.carry[:0], block...)
		}
	}
	switch {
	case err == io.EOF:
		rw.buf.Write(rw.carry)
		rw.carry = rw.carry[:0]
		rw.eof = true
	case err != nil:
		return err
	}
	return nil
}

// withReplacements chains one rewriter per non-empty rule.
func withReplacements(r io.Reader, rules []Replacement) io.Reader {
	for _, rule := range rules {
		if rule.From == "" || rule.From == rule.To {
			continue
		}
		r = newRewriter(r, []byte(rule.From), []byte(rule.To))
	}
	return r
}
