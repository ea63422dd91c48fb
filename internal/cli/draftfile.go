package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/timefmt"
	"gopkg.in/yaml.v3"
)

// DraftFile is the YAML document a coach writes for one session.
//
//	session:
//	  date: 2026-05-02
//	  boat_class: 8+
//	  pieces:
//	    - order: 1
//	      boats:
//	        - name: A
//	          time: "6:22.1"
//	          crew:
//	            - {seat: 1, athlete: ann}
//	athletes:
//	  - {id: ann, first_name: Ann, last_name: Lee, side: Port}
type DraftFile struct {
	Session  SessionFile     `yaml:"session"`
	Athletes []model.Athlete `yaml:"athletes"`
}

// SessionFile is the session header and its pieces.
type SessionFile struct {
	Date        string      `yaml:"date"`
	BoatClass   string      `yaml:"boat_class"`
	Conditions  string      `yaml:"conditions"`
	Location    string      `yaml:"location"`
	Description string      `yaml:"description"`
	Pieces      []PieceFile `yaml:"pieces"`
}

// PieceFile is one piece.
type PieceFile struct {
	Order     int        `yaml:"order"`
	Distance  *int       `yaml:"distance"`
	Direction string     `yaml:"direction"`
	Notes     string     `yaml:"notes"`
	Boats     []BoatFile `yaml:"boats"`
}

// BoatFile is one boat. Time is "m:ss.t" or plain seconds; empty means no
// finish time was recorded.
type BoatFile struct {
	Name     string     `yaml:"name"`
	Time     string     `yaml:"time"`
	Handicap float64    `yaml:"handicap"`
	Crew     []SeatFile `yaml:"crew"`
}

// SeatFile places one athlete in one seat.
type SeatFile struct {
	Seat    int        `yaml:"seat"`
	Athlete string     `yaml:"athlete"`
	Side    model.Side `yaml:"side"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", time.DateOnly}

// ReadDraftFile loads and converts a draft file.
func ReadDraftFile(path string) (model.Session, []model.Athlete, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Session{}, nil, fmt.Errorf("%w: %w", ErrDraftFile, err)
	}
	return ParseDraft(data)
}

// ParseDraft decodes a draft document. Unknown keys are rejected so typos do
// not silently drop data.
func ParseDraft(data []byte) (model.Session, []model.Athlete, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f DraftFile
	if err := dec.Decode(&f); err != nil {
		return model.Session{}, nil, fmt.Errorf("%w: %w", ErrDraftFile, err)
	}
	s, err := f.Session.toModel()
	if err != nil {
		return model.Session{}, nil, err
	}
	return s, f.Athletes, nil
}

func (f SessionFile) toModel() (model.Session, error) {
	s := model.Session{
		BoatClass:   strings.TrimSpace(f.BoatClass),
		Conditions:  f.Conditions,
		Location:    f.Location,
		Description: f.Description,
	}
	if f.Date != "" {
		d, err := parseDate(f.Date)
		if err != nil {
			return model.Session{}, err
		}
		s.Date = d
	}

	for i, pf := range f.Pieces {
		order := pf.Order
		if order == 0 {
			order = i + 1
		}
		p := model.Piece{
			SequenceOrder:  order,
			DistanceMeters: pf.Distance,
			Direction:      pf.Direction,
			Notes:          pf.Notes,
		}
		for _, bf := range pf.Boats {
			b := model.Boat{Name: bf.Name, HandicapSeconds: bf.Handicap}
			if strings.TrimSpace(bf.Time) != "" {
				secs, err := timefmt.Parse(bf.Time)
				if err != nil {
					return model.Session{}, fmt.Errorf("%w: piece %d boat %s: %w", ErrDraftFile, order, bf.Name, err)
				}
				b = b.WithFinishTime(secs)
			}
			for _, seat := range bf.Crew {
				b.Assignments = append(b.Assignments, model.Assignment{
					AthleteID:  seat.Athlete,
					SeatNumber: seat.Seat,
					Side:       seat.Side,
				})
			}
			p.Boats = append(p.Boats, b)
		}
		s.Pieces = append(s.Pieces, p)
	}
	return s, nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrDraftFile, v)
}
