// Package token derives the local, non-authoritative unlock token from
// operator-entered device identifiers.
//
// The token has no relationship to any vendor unlock mechanism. It is a
// deterministic digest of its inputs: identical fields always produce an
// identical token.
package token

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	// Digits and Letters are the counts of each character class in a token.
	Digits  = 8
	Letters = 8
)

// Field labels of the canonical string. They must not change: the token
// of a given set of fields depends on them byte for byte.
const (
	labelIMEI         = "IMEI"
	labelSerial       = "SN"
	labelModel        = "设备型号"
	labelPurchaseDate = "购买日期"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrInvalidIMEI  = errors.New("IMEI must be 15 digits")
)

// Fields are the operator-entered inputs of a token.
type Fields struct {
	IMEI         string
	Serial       string
	Model        string
	PurchaseDate string
}

// Validate checks that every field is present and the IMEI is 15 digits.
func (f Fields) Validate() error {
	for _, kv := range [][2]string{
		{labelIMEI, f.IMEI},
		{labelSerial, f.Serial},
		{"model", f.Model},
		{"purchase date", f.PurchaseDate},
	} {
		if strings.TrimSpace(kv[1]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, kv[0])
		}
	}
	if len(f.IMEI) != 15 || strings.TrimFunc(f.IMEI, unicode.IsDigit) != "" {
		return ErrInvalidIMEI
	}
	return nil
}

// Canonical is the order-sensitive concatenation the token is derived from.
func (f Fields) Canonical() string {
	return labelIMEI + ":" + f.IMEI +
		labelSerial + ":" + f.Serial +
		labelModel + ":" + f.Model +
		labelPurchaseDate + ":" + f.PurchaseDate
}

// Generate derives the token for f: MD5 over the canonical string, then
// SHA-256 over the MD5 hex digest. The token is the first Digits numerals
// followed by the first Letters letters (uppercased) of the SHA-256 hex
// digest, in order of appearance. Should a digest run short of either
// class, selection continues over SHA-256 of the previous hex digest.
func Generate(f Fields) string {
	first := md5.Sum([]byte(f.Canonical()))
	digest := hex.EncodeToString(first[:])

	var digits, letters []byte
	for len(digits) < Digits || len(letters) < Letters {
		sum := sha256.Sum256([]byte(digest))
		digest = hex.EncodeToString(sum[:])
		for i := 0; i < len(digest); i++ {
			c := digest[i]
			switch {
			case c >= '0' && c <= '9':
				if len(digits) < Digits {
					digits = append(digits, c)
				}
			case len(letters) < Letters:
				letters = append(letters, c-'a'+'A')
			}
		}
	}
	return string(digits) + string(letters)
}
