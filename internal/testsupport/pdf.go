package testsupport

import (
	"bytes"
	"fmt"
)

// MinimalPDF returns a structurally valid single-page PDF. The cross-reference
// offsets are computed while writing, so the document survives strict parsing.
func MinimalPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n",
	}
	offsets := make([]int, 0, len(objects))
	for _, object := range objects {
		offsets = append(offsets, buf.Len())
		buf.WriteString(object)
	}

	xrefStart := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for _, offset := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefStart)
	return buf.Bytes()
}
