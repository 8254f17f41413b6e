package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"github.com/Jack-B-Hall/Video2Text/internal/domain"
	"github.com/Jack-B-Hall/Video2Text/internal/screenshot"
)

const (
	pageImageWidthMM = 180
	pageImageXMM     = 15
)

// WritePDF renders the paginated illustrated transcript. Each segment gets a
// timestamp heading, any screenshots paired to it, and its text. An empty
// transcript degrades to a screenshot-only document and vice versa; only a
// render or write failure is an error.
func WritePDF(segments []domain.Segment, shots []screenshot.Shot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Video Transcript with Visual References", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	paired := PairScreenshots(segments, shots)

	if len(segments) == 0 {
		// No speech content: still produce a valid document from whatever
		// screenshots were sampled.
		for _, shot := range shots {
			writeHeading(pdf, shot.TimestampSeconds)
			writeImage(pdf, shot.Path)
			pdf.Ln(10)
		}
	}

	for i, seg := range segments {
		writeHeading(pdf, seg.StartSeconds)

		for _, shot := range paired[i] {
			writeImage(pdf, shot.Path)
		}

		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 5, seg.Text, "", "", false)
		pdf.Ln(10)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf file: %w", err)
	}
	return nil
}

func writeHeading(pdf *gofpdf.Fpdf, seconds float64) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Time: "+domain.FormatTimestamp(seconds), "", 1, "", false, 0, "")
}

// writeImage places a screenshot scaled to the text width. A missing or
// unreadable image is skipped; the document stays valid without it.
func writeImage(pdf *gofpdf.Fpdf, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	opts := gofpdf.ImageOptions{ImageType: "", ReadDpi: true}
	pdf.ImageOptions(path, pageImageXMM, -1, pageImageWidthMM, 0, true, opts, 0, "")
	if pdf.Err() {
		// Drop the bad image and keep assembling the rest of the document.
		pdf.ClearError()
		return
	}
	pdf.Ln(5)
}
