// Package pades prepares PDF documents for detached PAdES baseline-B
// signatures. It appends an incremental update carrying the signature
// dictionary with a reserved /Contents placeholder, computes the digest over
// the signed byte ranges, and embeds the signature produced by an external
// signer. No private key material is handled here.
package pades

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"

	domainerrors "gridconsent/pkg/domain-errors"
)

// contentsCapacity is the byte capacity reserved for the CMS signature. The
// placeholder occupies twice as many hex characters.
const contentsCapacity = 4096

// byteRangeWidth is the fixed decimal width of each /ByteRange entry so that
// patching the real offsets never shifts the file layout.
const byteRangeWidth = 10

// SignatureParameters carries the signature dictionary fields.
type SignatureParameters struct {
	SignerName  string
	Reason      string
	Location    string
	ContactInfo string
	SigningTime time.Time
}

// ByteRange is the four-element /ByteRange array: two (offset, length) pairs
// covering the whole file except the /Contents hex string.
type ByteRange [4]int64

// Prepared is a document with a reserved signature placeholder. Digest and
// Embed operate on it.
type Prepared struct {
	Bytes     []byte
	ByteRange ByteRange
}

// Prepare appends an incremental update to pdf reserving a detached signature
// placeholder: a signature dictionary, a widget annotation on the first page,
// and an /AcroForm entry on the catalog. The input must be a well-formed PDF
// with a classic cross-reference table.
func Prepare(pdf []byte, params SignatureParameters) (*Prepared, error) {
	size, rootNum, prevXref, err := parseTrailer(pdf)
	if err != nil {
		return nil, err
	}
	pageNum, pageBody, err := findObject(pdf, "/Type /Page")
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "locate page object")
	}
	catNum, catBody, err := findObjectByNumber(pdf, rootNum)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "locate catalog object")
	}

	sigNum := size
	widgetNum := size + 1

	newPageBody, err := injectAfter(pageBody, "/Type /Page", fmt.Sprintf(" /Annots [%d 0 R]", widgetNum))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "annotate page object")
	}
	newCatBody, err := injectAfter(catBody, "/Type /Catalog", fmt.Sprintf(" /AcroForm << /Fields [%d 0 R] /SigFlags 3 >>", widgetNum))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "extend catalog object")
	}

	var update bytes.Buffer
	offsets := make(map[int]int64)

	base := int64(len(pdf))
	if pdf[len(pdf)-1] != '\n' {
		update.WriteByte('\n')
	}

	writeObj := func(num int, body string) {
		offsets[num] = base + int64(update.Len())
		fmt.Fprintf(&update, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(pageNum, newPageBody)
	writeObj(catNum, newCatBody)

	// The signature dictionary. /ByteRange and /Contents are fixed-width
	// placeholders patched after assembly.
	sigDict := &bytes.Buffer{}
	sigDict.WriteString("<< /Type /Sig /Filter /Adobe.PPKLite /SubFilter /ETSI.CAdES.detached\n")
	fmt.Fprintf(sigDict, "/ByteRange [%s %s %s %s]\n",
		zeros(byteRangeWidth), zeros(byteRangeWidth), zeros(byteRangeWidth), zeros(byteRangeWidth))
	fmt.Fprintf(sigDict, "/Contents <%s>\n", zeros(2*contentsCapacity))
	if params.SignerName != "" {
		fmt.Fprintf(sigDict, "/Name %s\n", pdfString(params.SignerName))
	}
	if params.Reason != "" {
		fmt.Fprintf(sigDict, "/Reason %s\n", pdfString(params.Reason))
	}
	if params.Location != "" {
		fmt.Fprintf(sigDict, "/Location %s\n", pdfString(params.Location))
	}
	if params.ContactInfo != "" {
		fmt.Fprintf(sigDict, "/ContactInfo %s\n", pdfString(params.ContactInfo))
	}
	fmt.Fprintf(sigDict, "/M (D:%s+00'00')\n", params.SigningTime.UTC().Format("20060102150405"))
	sigDict.WriteString(">>")
	writeObj(sigNum, sigDict.String())

	widget := fmt.Sprintf(
		"<< /Type /Annot /Subtype /Widget /FT /Sig /Rect [0 0 0 0] /T (Signature1) /F 132 /P %d 0 R /V %d 0 R >>",
		pageNum, sigNum)
	writeObj(widgetNum, widget)

	xrefOffset := base + int64(update.Len())
	writeXref(&update, offsets)
	fmt.Fprintf(&update, "trailer\n<< /Size %d /Root %d 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n",
		size+2, rootNum, prevXref, xrefOffset)

	out := append(append([]byte{}, pdf...), update.Bytes()...)

	br, err := patchByteRange(out)
	if err != nil {
		return nil, err
	}
	return &Prepared{Bytes: out, ByteRange: br}, nil
}

// Digest returns the SHA-256 over the two signed ranges. This is the exact
// value handed to the external signer.
func (p *Prepared) Digest() ([]byte, error) {
	br := p.ByteRange
	end := br[2] + br[3]
	if br[0] != 0 || end != int64(len(p.Bytes)) || br[1] > br[2] {
		return nil, domainerrors.New(domainerrors.CodeInternal, "byte range does not cover the document")
	}
	h := sha256.New()
	h.Write(p.Bytes[br[0] : br[0]+br[1]])
	h.Write(p.Bytes[br[2]:end])
	return h.Sum(nil), nil
}

// Embed writes the signature into the reserved /Contents gap and returns the
// final signed byte stream. The gap must still be empty.
func (p *Prepared) Embed(signature []byte) ([]byte, error) {
	if len(signature) == 0 {
		return nil, domainerrors.New(domainerrors.CodeInternal, "empty signature")
	}
	if len(signature) > contentsCapacity {
		return nil, domainerrors.Newf(domainerrors.CodeInternal,
			"signature of %d bytes exceeds the reserved %d bytes", len(signature), contentsCapacity)
	}

	gapStart := p.ByteRange[0] + p.ByteRange[1] + 1 // after '<'
	gapEnd := p.ByteRange[2] - 1                    // before '>'
	gap := p.Bytes[gapStart:gapEnd]
	for _, b := range gap {
		if b != '0' {
			return nil, domainerrors.New(domainerrors.CodeInternal, "signature placeholder is already occupied")
		}
	}

	out := append([]byte{}, p.Bytes...)
	copy(out[gapStart:], []byte(hex.EncodeToString(signature)))
	return out, nil
}

// ExtractSignature reads the embedded signature back out of a signed
// document, for verification tooling.
func ExtractSignature(signed []byte) ([]byte, error) {
	idx := bytes.LastIndex(signed, []byte("/Contents <"))
	if idx < 0 {
		return nil, domainerrors.New(domainerrors.CodeInternal, "no signature contents found")
	}
	start := idx + len("/Contents <")
	end := bytes.IndexByte(signed[start:], '>')
	if end < 0 {
		return nil, domainerrors.New(domainerrors.CodeInternal, "unterminated signature contents")
	}
	raw := bytes.TrimRight(signed[start:start+end], "0")
	if len(raw)%2 == 1 {
		raw = append(raw, '0')
	}
	sig, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "decode signature contents")
	}
	return sig, nil
}

// parseTrailer extracts /Size, the /Root object number and the offset of the
// last cross-reference section.
func parseTrailer(pdf []byte) (size, rootNum int, prevXref int64, err error) {
	tIdx := bytes.LastIndex(pdf, []byte("trailer"))
	if tIdx < 0 {
		return 0, 0, 0, domainerrors.New(domainerrors.CodeInternal, "pdf has no trailer")
	}
	tail := pdf[tIdx:]

	size, err = intAfter(tail, "/Size ")
	if err != nil {
		return 0, 0, 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse trailer /Size")
	}
	rootNum, err = intAfter(tail, "/Root ")
	if err != nil {
		return 0, 0, 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse trailer /Root")
	}
	sxIdx := bytes.LastIndex(pdf, []byte("startxref"))
	if sxIdx < 0 {
		return 0, 0, 0, domainerrors.New(domainerrors.CodeInternal, "pdf has no startxref")
	}
	v, err := intAfter(pdf[sxIdx:], "startxref")
	if err != nil {
		return 0, 0, 0, domainerrors.Wrap(err, domainerrors.CodeInternal, "parse startxref offset")
	}
	return size, rootNum, int64(v), nil
}

// findObject locates the first object whose body contains marker (exact
// token; "/Type /Page" will not match "/Type /Pages").
func findObject(pdf []byte, marker string) (num int, body string, err error) {
	search := 0
	for {
		idx := bytes.Index(pdf[search:], []byte(marker))
		if idx < 0 {
			return 0, "", fmt.Errorf("no object containing %q", marker)
		}
		pos := search + idx
		next := pos + len(marker)
		if next < len(pdf) && isRegular(pdf[next]) {
			search = next
			continue
		}
		return objectAt(pdf, pos)
	}
}

// findObjectByNumber locates "num 0 obj".
func findObjectByNumber(pdf []byte, num int) (int, string, error) {
	header := []byte(fmt.Sprintf("\n%d 0 obj", num))
	idx := bytes.LastIndex(pdf, header)
	if idx < 0 {
		return 0, "", fmt.Errorf("object %d not found", num)
	}
	return objectAt(pdf, idx+1)
}

// objectAt walks outward from pos to the enclosing "N G obj" header and the
// matching "endobj", returning the object number and body.
func objectAt(pdf []byte, pos int) (int, string, error) {
	headIdx := bytes.LastIndex(pdf[:pos], []byte(" obj"))
	if headIdx < 0 {
		return 0, "", fmt.Errorf("no object header before offset %d", pos)
	}
	lineStart := bytes.LastIndexByte(pdf[:headIdx], '\n') + 1
	var num, gen int
	if _, err := fmt.Sscanf(string(pdf[lineStart:headIdx]), "%d %d", &num, &gen); err != nil {
		return 0, "", fmt.Errorf("malformed object header at offset %d: %w", lineStart, err)
	}
	bodyStart := headIdx + len(" obj")
	endIdx := bytes.Index(pdf[bodyStart:], []byte("endobj"))
	if endIdx < 0 {
		return 0, "", fmt.Errorf("object %d has no endobj", num)
	}
	body := bytes.TrimSpace(pdf[bodyStart : bodyStart+endIdx])
	return num, string(body), nil
}

func injectAfter(body, anchor, insertion string) (string, error) {
	idx := findToken(body, anchor)
	if idx < 0 {
		return "", fmt.Errorf("anchor %q not found", anchor)
	}
	cut := idx + len(anchor)
	return body[:cut] + insertion + body[cut:], nil
}

// findToken matches anchor only when not followed by a regular character, so
// "/Type /Page" skips "/Type /Pages".
func findToken(s, anchor string) int {
	search := 0
	for {
		idx := bytes.Index([]byte(s[search:]), []byte(anchor))
		if idx < 0 {
			return -1
		}
		pos := search + idx
		next := pos + len(anchor)
		if next < len(s) && isRegular(s[next]) {
			search = next
			continue
		}
		return pos
	}
}

func isRegular(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '/', '<', '>', '[', ']', '(', ')':
		return false
	}
	return true
}

// writeXref emits a classic cross-reference section with one subsection per
// contiguous run of object numbers.
func writeXref(buf *bytes.Buffer, offsets map[int]int64) {
	nums := make([]int, 0, len(offsets))
	for n := range offsets {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	buf.WriteString("xref\n")
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i+1)
		for _, n := range nums[i : j+1] {
			fmt.Fprintf(buf, "%010d 00000 n \n", offsets[n])
		}
		i = j + 1
	}
}

// patchByteRange computes the final byte ranges around the /Contents gap and
// writes them over the fixed-width placeholder in place.
func patchByteRange(out []byte) (ByteRange, error) {
	cIdx := bytes.LastIndex(out, []byte("/Contents <"))
	if cIdx < 0 {
		return ByteRange{}, domainerrors.New(domainerrors.CodeInternal, "placeholder contents not found")
	}
	gapStart := int64(cIdx + len("/Contents "))
	gapEnd := gapStart + int64(2*contentsCapacity) + 2 // '<' + hex + '>'

	br := ByteRange{0, gapStart, gapEnd, int64(len(out)) - gapEnd}

	brIdx := bytes.LastIndex(out, []byte("/ByteRange ["))
	if brIdx < 0 {
		return ByteRange{}, domainerrors.New(domainerrors.CodeInternal, "placeholder byte range not found")
	}
	patch := fmt.Sprintf("[%0*d %0*d %0*d %0*d]",
		byteRangeWidth, br[0], byteRangeWidth, br[1], byteRangeWidth, br[2], byteRangeWidth, br[3])
	copy(out[brIdx+len("/ByteRange "):], []byte(patch))
	return br, nil
}

func intAfter(b []byte, prefix string) (int, error) {
	idx := bytes.Index(b, []byte(prefix))
	if idx < 0 {
		return 0, fmt.Errorf("%q not found", prefix)
	}
	rest := b[idx+len(prefix):]
	for len(rest) > 0 && (rest[0] == ' ' || rest[0] == '\r' || rest[0] == '\n') {
		rest = rest[1:]
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("no integer after %q", prefix)
	}
	return strconv.Atoi(string(rest[:end]))
}

func pdfString(s string) string {
	r := bytes.NewBuffer(nil)
	r.WriteByte('(')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', ')', '\\':
			r.WriteByte('\\')
		}
		r.WriteByte(s[i])
	}
	r.WriteByte(')')
	return r.String()
}

func zeros(n int) string {
	return string(bytes.Repeat([]byte{'0'}, n))
}
