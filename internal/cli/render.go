package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/okian/oarbit/internal/adapters/repository"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/projection"
	"github.com/okian/oarbit/internal/domain/switches"
	"github.com/okian/oarbit/internal/domain/timefmt"
	"github.com/okian/oarbit/internal/domain/types"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/internal/orchestrator"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(title string, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func rating(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func signed(v float64) string { return fmt.Sprintf("%+.1f", v) }

func renderLeaderboard(entries []types.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Rank), e.AthleteID, rating(e.Rating), strconv.Itoa(e.Races), strconv.Itoa(e.Wins),
		})
	}
	return renderTable("Leaderboard",
		[]string{"Rank", "Athlete", "Rating", "Races", "Wins"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight})
}

func renderChanges(changes []model.RatingChange) string {
	rows := make([][]string, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, []string{c.AthleteID, rating(c.OldRating), rating(c.NewRating), signed(c.NewRating - c.OldRating)})
	}
	return renderTable("Rating changes",
		[]string{"Athlete", "Old", "New", "Delta"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight})
}

func renderProjection(p projection.Projection) string {
	rows := make([][]string, 0, len(p.Comparisons))
	for _, c := range p.Comparisons {
		rows = append(rows, []string{
			c.AthleteID,
			rating(c.CurrentRating), strconv.Itoa(c.CurrentRank),
			rating(c.ProjectedRating), strconv.Itoa(c.ProjectedRank),
			signed(c.RatingDelta), fmt.Sprintf("%+d", c.RankDelta),
		})
	}
	return renderTable(fmt.Sprintf("Projection (%d boat pairs)", p.Pairs),
		[]string{"Athlete", "Rating", "Rank", "Projected", "Proj. rank", "Delta", "Rank delta"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight})
}

func renderIssues(title string, issues []validate.Issue) string {
	rows := make([][]string, 0, len(issues))
	for _, i := range issues {
		piece := ""
		if i.PieceOrder > 0 {
			piece = strconv.Itoa(i.PieceOrder)
		}
		seat := ""
		if i.SeatNumber > 0 {
			seat = strconv.Itoa(i.SeatNumber)
		}
		rows = append(rows, []string{i.Code, piece, i.BoatName, seat, i.AthleteID, i.Message})
	}
	return renderTable(title,
		[]string{"Code", "Piece", "Boat", "Seat", "Athlete", "Message"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight})
}

func renderSwitches(ts []switches.Transition) string {
	flat := switches.Flatten(ts)
	rows := make([][]string, 0, len(flat))
	for _, s := range flat {
		rows = append(rows, []string{
			fmt.Sprintf("%d -> %d", s.FromPiece, s.ToPiece), s.AthleteID, s.FromBoat, s.ToBoat,
		})
	}
	return renderTable("Switches", []string{"Pieces", "Athlete", "From", "To"}, rows, nil)
}

func renderFills(fills []validate.BoatFill) string {
	rows := make([][]string, 0, len(fills))
	for _, f := range fills {
		rows = append(rows, []string{strconv.Itoa(f.PieceOrder), f.BoatName, fmt.Sprintf("%d/%d", f.Filled, f.Total)})
	}
	return renderTable("Crews", []string{"Piece", "Boat", "Seats"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight})
}

func renderSession(s repository.StoredSession) string {
	status := "draft"
	if s.Processed {
		status = "processed"
	}
	var rows [][]string
	for _, p := range s.OrderedPieces() {
		for _, b := range p.Boats {
			finish := "-"
			if b.FinishTimeSeconds != nil {
				finish = timefmt.Format(*b.FinishTimeSeconds)
			}
			crew := make([]string, 0, len(b.Assignments))
			for _, a := range b.Assignments {
				crew = append(crew, fmt.Sprintf("%d:%s", a.SeatNumber, a.AthleteID))
			}
			rows = append(rows, []string{strconv.Itoa(p.SequenceOrder), b.Name, finish, signed(b.HandicapSeconds), shortList(crew)})
		}
	}
	title := fmt.Sprintf("%s %s %s (%s)", s.ID, s.Date.Format("2006-01-02"), s.BoatClass, status)
	return renderTable(title, []string{"Piece", "Boat", "Time", "Handicap", "Crew"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight})
}

func renderCreated(state orchestrator.State, c orchestrator.Created) string {
	rows := [][]string{
		{"state", string(state)},
		{"session", c.SessionID},
		{"pieces", shortList(c.PieceIDs)},
		{"boats", shortList(c.BoatIDs)},
	}
	return renderTable("Persisted", []string{"Item", "Value"}, rows, nil)
}
