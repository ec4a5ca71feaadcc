package checkin

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/signintech/gopdf"
)

var ErrNoFont = errors.New("no font configured for PDF passes")

// PassDetails is the printable part of a pass.
type PassDetails struct {
	Pass
	Reference    string
	SessionCode  string
	SessionTitle string
	StartsAt     time.Time
}

// PDFRenderer lays out an A4 pass with the QR code. gopdf needs a TrueType
// font on disk.
type PDFRenderer struct {
	FontFile string
}

func (r *PDFRenderer) Render(d PassDetails, qrCode []byte) ([]byte, error) {
	if r == nil || r.FontFile == "" {
		return nil, ErrNoFont
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFont("pass", r.FontFile); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont("pass", "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	pdf.SetX(40)
	pdf.SetY(40)
	pdf.Cell(nil, "SESSION PASS")

	pdf.SetY(80)
	seat := "unassigned"
	if d.Seat != nil {
		seat = fmt.Sprintf("%d", *d.Seat)
	}
	for _, line := range [][2]string{
		{"Reference", d.Reference},
		{"Session", fmt.Sprintf("%s %s", d.SessionCode, d.SessionTitle)},
		{"Starts", d.StartsAt.UTC().Format("2006-01-02 15:04 MST")},
		{"Attendee", d.UserID},
		{"Seat", seat},
	} {
		pdf.SetX(40)
		pdf.Cell(nil, line[0]+": "+line[1])
		pdf.Br(20)
	}

	if len(qrCode) > 0 {
		img, err := png.Decode(bytes.NewReader(qrCode))
		if err != nil {
			return nil, fmt.Errorf("failed to decode QR code: %w", err)
		}
		if err := pdf.ImageFrom(img, 40, pdf.GetY()+20, &gopdf.Rect{W: 160, H: 160}); err != nil {
			return nil, fmt.Errorf("failed to draw QR code: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}
