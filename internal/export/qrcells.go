package export

import (
	"fmt"
	"slices"
	"strings"

	"evently/internal/attendance"
	"evently/internal/qr"
)

// TokenIssuer signs the payload printed in a participant's QR code.
type TokenIssuer interface {
	Issue(participantID, eventID string) (string, error)
}

// QRCells issues a token and renders a QR image for each participant,
// ordered by first name.
func QRCells(issuer TokenIssuer, ps []attendance.Participant) ([]QRCell, error) {
	ps = slices.Clone(ps)
	slices.SortStableFunc(ps, func(a, b attendance.Participant) int {
		return strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName))
	})
	cells := make([]QRCell, 0, len(ps))
	for _, p := range ps {
		token, err := issuer.Issue(p.ID, p.EventID)
		if err != nil {
			return nil, fmt.Errorf("issue token for %s: %w", p.ID, err)
		}
		png, err := qr.PNG(token, qr.DefaultSize)
		if err != nil {
			return nil, err
		}
		cells = append(cells, QRCell{Name: p.FirstName + " " + p.LastName, PNG: png})
	}
	return cells, nil
}
