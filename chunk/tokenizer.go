package chunk

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts tokens the same way the target embedding model does.
// Chunk boundaries are token-exact, so the counter must not approximate.
type Tokenizer interface {
	CountTokens(text string) int
}

// TiktokenTokenizer wraps a tiktoken encoding. The encoding is initialized
// lazily because tiktoken may fetch encoding data on first use.
type TiktokenTokenizer struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewTiktokenTokenizer creates a tokenizer for the given encoding name
// (cl100k_base for the Cohere/OpenAI embedding family used here).
func NewTiktokenTokenizer(encoding string) *TiktokenTokenizer {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenTokenizer{encoding: encoding}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens returns the exact token count for text. If the encoding cannot
// be initialized it falls back to a ~4 chars/token estimate so that chunking
// degrades instead of stopping; the error is surfaced via InitErr.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	if err := t.init(); err != nil {
		return len(text) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}

// InitErr reports whether the tiktoken encoding loaded successfully.
// Callers that require exact counts should check it once at startup.
func (t *TiktokenTokenizer) InitErr() error {
	return t.init()
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
