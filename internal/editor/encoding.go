package editor

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// ErrBadEncoding is returned for files that are neither UTF-8 nor GBK.
var ErrBadEncoding = errors.New("editor: file is neither UTF-8 nor GBK")

// decodeText interprets raw file bytes as UTF-8 or, failing that, GBK.
// wasGBK tells the caller to re-encode on save so the file's encoding
// survives the edit round trip.
func decodeText(raw []byte) (text string, wasGBK bool, err error) {
	if utf8.Valid(raw) {
		return string(raw), false, nil
	}

	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}

	// The decoder substitutes undecodable bytes instead of failing; a
	// replacement rune in the output means the input was not GBK either.
	if strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", false, ErrBadEncoding
	}

	return string(decoded), true, nil
}

// encodeText converts edited text back to the file's original encoding.
func encodeText(text string, asGBK bool) ([]byte, error) {
	if !asGBK {
		return []byte(text), nil
	}

	encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("editor: re-encoding as GBK: %w", err)
	}

	return encoded, nil
}
