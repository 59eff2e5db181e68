package pades

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "gridconsent/pkg/domain-errors"
)

// minimalPDF builds a classic single-page document the way mainstream
// generators lay one out: numbered objects, a cross-reference table, a
// trailer with /Size and /Root, and a startxref pointer.
func minimalPDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, 0, 3)
	obj := func(body string) {
		offsets = append(offsets, b.Len())
		b.WriteString(body)
	}
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return b.Bytes()
}

func params() SignatureParameters {
	return SignatureParameters{
		SignerName:  "Ola Nordmann",
		Reason:      "Change of supplier contract",
		Location:    "Oslo",
		SigningTime: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPrepareReservesPlaceholder(t *testing.T) {
	original := minimalPDF()
	prepared, err := Prepare(original, params())
	require.NoError(t, err)

	br := prepared.ByteRange
	assert.EqualValues(t, 0, br[0])
	assert.EqualValues(t, len(prepared.Bytes), br[2]+br[3], "ranges must cover the full file")
	assert.Equal(t, byte('<'), prepared.Bytes[br[1]], "first range ends at the contents delimiter")
	assert.Equal(t, byte('>'), prepared.Bytes[br[2]-1], "second range starts after the contents delimiter")

	gap := prepared.Bytes[br[1]+1 : br[2]-1]
	assert.Len(t, gap, 2*contentsCapacity)
	for _, c := range gap {
		require.Equal(t, byte('0'), c, "placeholder must be empty")
	}

	assert.True(t, bytes.HasPrefix(prepared.Bytes, original), "the update must be strictly incremental")
	assert.Contains(t, string(prepared.Bytes), "/SubFilter /ETSI.CAdES.detached")
	assert.Contains(t, string(prepared.Bytes), "/AcroForm << /Fields [5 0 R] /SigFlags 3 >>")
	assert.Contains(t, string(prepared.Bytes), "/Annots [5 0 R]")
	assert.Contains(t, string(prepared.Bytes), "/Size 6")
	assert.Contains(t, string(prepared.Bytes), "/M (D:20260301120000+00'00')")
}

func TestPrepareWritesConsistentByteRange(t *testing.T) {
	prepared, err := Prepare(minimalPDF(), params())
	require.NoError(t, err)

	want := fmt.Sprintf("/ByteRange [%010d %010d %010d %010d]",
		prepared.ByteRange[0], prepared.ByteRange[1], prepared.ByteRange[2], prepared.ByteRange[3])
	assert.Contains(t, string(prepared.Bytes), want, "the patched array must reflect the actual offsets")
}

func TestPrepareRejectsNonPDF(t *testing.T) {
	_, err := Prepare([]byte("just some text"), params())
	require.Error(t, err)
	assert.True(t, domainerrors.HasCode(err, domainerrors.CodeInternal))
}

func TestDigestCoversEverythingButTheGap(t *testing.T) {
	prepared, err := Prepare(minimalPDF(), params())
	require.NoError(t, err)

	digest, err := prepared.Digest()
	require.NoError(t, err)

	br := prepared.ByteRange
	h := sha256.New()
	h.Write(prepared.Bytes[:br[1]])
	h.Write(prepared.Bytes[br[2]:])
	assert.Equal(t, h.Sum(nil), digest)
}

func TestDigestIsStableAcrossEmbed(t *testing.T) {
	prepared, err := Prepare(minimalPDF(), params())
	require.NoError(t, err)

	before, err := prepared.Digest()
	require.NoError(t, err)

	signed, err := prepared.Embed([]byte("signature-bytes"))
	require.NoError(t, err)

	// The signature lands entirely inside the excluded gap, so the signed
	// ranges hash to the same value.
	br := prepared.ByteRange
	h := sha256.New()
	h.Write(signed[:br[1]])
	h.Write(signed[br[2]:])
	assert.Equal(t, before, h.Sum(nil))
}

func TestEmbedRoundTrip(t *testing.T) {
	prepared, err := Prepare(minimalPDF(), params())
	require.NoError(t, err)

	sig := []byte{0x30, 0x82, 0x01, 0x00, 0xde, 0xad, 0xbe, 0xef}
	signed, err := prepared.Embed(sig)
	require.NoError(t, err)
	assert.Len(t, signed, len(prepared.Bytes), "embedding must not change the file size")

	got, err := ExtractSignature(signed)
	require.NoError(t, err)
	assert.Equal(t, sig, got)
}

func TestEmbedRejectsOversizedSignature(t *testing.T) {
	prepared, err := Prepare(minimalPDF(), params())
	require.NoError(t, err)

	_, err = prepared.Embed(bytes.Repeat([]byte{0xff}, contentsCapacity+1))
	require.Error(t, err)
}

func TestEmbedRejectsEmptySignature(t *testing.T) {
	prepared, err := Prepare(minimalPDF(), params())
	require.NoError(t, err)

	_, err = prepared.Embed(nil)
	require.Error(t, err)
}
