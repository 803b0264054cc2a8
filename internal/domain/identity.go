package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	placeholderChar = "X"

	rollNumberCodeLen  = 4
	barcodeSupplierLen = 6
	barcodeBatchLen    = 10
	barcodeSequenceLen = 6
	checksumLen        = 4
)

// Identity holds the inputs a roll number and barcode are derived from.
//
// A roll number keeps only the last four characters of the supplier and batch
// codes, so suppliers AB1234 and CD1234 render the same prefix. They also
// share a SequenceKey and therefore one sequence counter, which keeps their
// roll numbers distinct; the barcode carries the longer codes.
type Identity struct {
	ReceivedAt   time.Time
	SupplierCode string
	BatchCode    string
	Sequence     int
}

// YearMonth renders the receipt month as YYMM (UTC)
func (id Identity) YearMonth() string {
	return id.ReceivedAt.UTC().Format("0601")
}

// SequenceKey scopes the sequence counter: YYMM plus supplier and batch suffixes.
// Every roll number sharing a key differs only in its sequence.
func (id Identity) SequenceKey() string {
	return strings.Join([]string{
		id.YearMonth(),
		suffixToken(id.SupplierCode, rollNumberCodeLen),
		suffixToken(id.BatchCode, rollNumberCodeLen),
	}, "-")
}

// RollNumber renders YYMM-SUPPLIERSUFFIX-BATCHSUFFIX-SEQ
func (id Identity) RollNumber() string {
	return fmt.Sprintf("%s-%04d", id.SequenceKey(), id.Sequence)
}

// Barcode renders YYMM-SUP6-BATCH10-SEQ6-CHECKSUM4 for the roll with rollID
func (id Identity) Barcode(rollID string) string {
	yymm := id.YearMonth()
	sup := fixedToken(id.SupplierCode, barcodeSupplierLen)
	batch := fixedToken(id.BatchCode, barcodeBatchLen)
	seq := fmt.Sprintf("%0*d", barcodeSequenceLen, id.Sequence)

	return strings.Join([]string{yymm, sup, batch, seq, BarcodeChecksum(yymm, sup, batch, seq, rollID)}, "-")
}

// BarcodeChecksum is the first four uppercase hex chars of SHA-256 over the
// barcode fields and the roll id. It detects transcription errors; it is not a secret.
func BarcodeChecksum(yymm, sup6, batch10, seq6, rollID string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{yymm, sup6, batch10, seq6, rollID}, "|")))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:checksumLen]
}

// BarcodeParts is a parsed barcode
type BarcodeParts struct {
	YearMonth string
	Supplier  string
	Batch     string
	Sequence  int
	Checksum  string
}

// ParseBarcode splits a barcode into its fields without verifying the checksum
func ParseBarcode(barcode string) (BarcodeParts, error) {
	parts := strings.Split(strings.TrimSpace(barcode), "-")
	if len(parts) != 5 {
		return BarcodeParts{}, NewValidationError("barcode", "expected 5 dash-separated fields")
	}
	if len(parts[0]) != 4 || len(parts[1]) != barcodeSupplierLen || len(parts[2]) != barcodeBatchLen || len(parts[4]) != checksumLen {
		return BarcodeParts{}, NewValidationError("barcode", "field widths do not match YYMM-SUP6-BATCH10-SEQ6-CHECKSUM4")
	}
	seq, err := strconv.Atoi(parts[3])
	if err != nil || len(parts[3]) < barcodeSequenceLen {
		return BarcodeParts{}, NewValidationError("barcode", "sequence must be numeric")
	}
	return BarcodeParts{
		YearMonth: parts[0],
		Supplier:  parts[1],
		Batch:     parts[2],
		Sequence:  seq,
		Checksum:  strings.ToUpper(parts[4]),
	}, nil
}

// VerifyBarcode recomputes the checksum segment for rollID. No store lookup is needed.
func VerifyBarcode(barcode, rollID string) bool {
	p, err := ParseBarcode(barcode)
	if err != nil {
		return false
	}
	seq := strings.Split(strings.TrimSpace(barcode), "-")[3]
	return BarcodeChecksum(p.YearMonth, p.Supplier, p.Batch, seq, rollID) == p.Checksum
}

// NormalizeCode uppercases a supplier or batch code and strips everything but letters and digits
func NormalizeCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// suffixToken keeps the last n chars of the normalized code; a missing code becomes XXXX
func suffixToken(code string, n int) string {
	c := NormalizeCode(code)
	if c == "" {
		return strings.Repeat(placeholderChar, n)
	}
	if len(c) > n {
		return c[len(c)-n:]
	}
	return c
}

// fixedToken fits the normalized code into exactly n chars (last n, left-padded with 0)
func fixedToken(code string, n int) string {
	c := NormalizeCode(code)
	if c == "" {
		return strings.Repeat(placeholderChar, n)
	}
	if len(c) > n {
		return c[len(c)-n:]
	}
	return strings.Repeat("0", n-len(c)) + c
}
