package electra

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/processor"
)

// Tokenizer wraps a WordPiece tokenizer configured the way the ELECTRA
// checkpoints expect: BERT normalization without lower-casing, [CLS]/[SEP]
// wrapping and truncation to a fixed maximum length.
type Tokenizer struct {
	tk        *tokenizer.Tokenizer
	maxLength int
}

// NewWordPieceTokenizer builds a tokenizer from a checkpoint's vocab.txt.
func NewWordPieceTokenizer(vocabPath string, maxLength int) (*Tokenizer, error) {
	model, err := wordpiece.NewWordPieceFromFile(vocabPath, "[UNK]")
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	tk := tokenizer.NewTokenizer(model)

	// Korean text keeps its casing and accents; do_lower_case is false in
	// the checkpoint's tokenizer_config.json.
	tk.WithNormalizer(normalizer.NewBertNormalizer(true, false, true, false))
	tk.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	sepID, ok := tk.TokenToId("[SEP]")
	if !ok {
		return nil, fmt.Errorf("vocabulary is missing the [SEP] token")
	}
	clsID, ok := tk.TokenToId("[CLS]")
	if !ok {
		return nil, fmt.Errorf("vocabulary is missing the [CLS] token")
	}

	tk.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Value: "[SEP]", Id: sepID},
		processor.PostToken{Value: "[CLS]", Id: clsID},
	))

	tk.WithTruncation(&tokenizer.TruncationParams{
		MaxLength: maxLength,
		Strategy:  tokenizer.LongestFirst,
	})

	return &Tokenizer{tk: tk, maxLength: maxLength}, nil
}

// MaxLength returns the truncation bound in tokens.
func (t *Tokenizer) MaxLength() int {
	return t.maxLength
}

// Encode tokenizes text into input ids and token type ids, including the
// special tokens and truncated to the configured maximum length.
func (t *Tokenizer) Encode(text string) (ids, typeIDs []int, err error) {
	en, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, fmt.Errorf("tokenization failed: %w", err)
	}

	return en.Ids, en.TypeIds, nil
}
