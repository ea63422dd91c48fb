package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/oarbit/internal/adapters/http/api"
	"github.com/okian/oarbit/internal/adapters/http/client"
	"github.com/okian/oarbit/internal/adapters/mq/queue"
	"github.com/okian/oarbit/internal/adapters/repository"
	service "github.com/okian/oarbit/internal/app"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/projection"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/internal/orchestrator"
	. "github.com/smartystreets/goconvey/convey"
)

func ft(v float64) *float64 { return &v }

func stubServer(t *testing.T, status int, body string) *client.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	Convey("Given base urls", t, func() {
		_, err := client.New("")
		So(errors.Is(err, client.ErrInvalidBaseURL), ShouldBeTrue)

		_, err = client.New("http://")
		So(errors.Is(err, client.ErrInvalidBaseURL), ShouldBeTrue)

		c, err := client.New("localhost:8080")
		So(err, ShouldBeNil)
		So(c, ShouldNotBeNil)
	})
}

func TestClient_ErrorMapping(t *testing.T) {
	Convey("Given a server answering with an error body", t, func() {
		ctx := context.Background()
		cases := []struct {
			status int
			body   string
			want   error
		}{
			{http.StatusUnprocessableEntity, `{"code":"structural_violation","message":"seat_out_of_range"}`, validate.ErrStructural},
			{http.StatusConflict, `{"code":"already_processed","message":"s1"}`, model.ErrAlreadyProcessed},
			{http.StatusConflict, `{"code":"conflict","message":"dup"}`, repository.ErrConflict},
			{http.StatusNotFound, `{"code":"not_found","message":"s1"}`, repository.ErrNotFound},
			{http.StatusBadRequest, `{"code":"limit_exceeded","message":"too big"}`, api.ErrBadRequest},
			{http.StatusTooManyRequests, `{"code":"backpressure","message":"full"}`, queue.ErrFull},
			{http.StatusServiceUnavailable, `{"code":"unavailable","message":"closed"}`, api.ErrUnavailable},
			{http.StatusNotFound, `404 page not found`, repository.ErrNotFound},
		}

		for _, tc := range cases {
			c := stubServer(t, tc.status, tc.body)
			_, err := c.ProcessSession(ctx, "s1")

			So(errors.Is(err, tc.want), ShouldBeTrue)
			var se *client.StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Status, ShouldEqual, tc.status)
		}
	})

	Convey("Given a server failing internally", t, func() {
		c := stubServer(t, http.StatusInternalServerError, `{"code":"internal_error","message":"boom"}`)
		err := c.RecalculateAllRatings(context.Background())

		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "boom")
		So(client.IsRetryable(err), ShouldBeTrue)
	})

	Convey("Given a server that cannot be reached", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c, err := client.New(url, client.WithTimeout(time.Second))
		So(err, ShouldBeNil)
		_, err = c.CreateSession(context.Background(), model.SessionInput{BoatClass: "8+"})

		So(errors.Is(err, client.ErrTransport), ShouldBeTrue)
		So(client.IsRetryable(err), ShouldBeTrue)
	})

	Convey("Given a preview with nothing to compare", t, func() {
		c := stubServer(t, http.StatusOK, `{"available":false,"pairs":0,"comparisons":null}`)
		p, err := c.Preview(context.Background(), model.Session{BoatClass: "2-"})

		So(errors.Is(err, projection.ErrUnavailable), ShouldBeTrue)
		So(p.Available, ShouldBeFalse)
	})
}

// startBackend runs the full server stack on a temporary database.
func startBackend(t *testing.T) *client.Client {
	t.Helper()
	ctx := context.Background()

	store, err := repository.Open(ctx, filepath.Join(t.TempDir(), "oarbit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	svc := service.New(store)
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(ctx)
		_ = store.Close()
	})

	c, err := client.New(srv.URL, client.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

// seatRace is a 2- session where a2 and b2 swap boats between pieces. Boat
// A wins both pieces.
func seatRace() model.Session {
	return model.Session{
		Date:      time.Date(2026, 5, 2, 6, 30, 0, 0, time.UTC),
		BoatClass: "2-",
		Location:  "Lake",
		Pieces: []model.Piece{
			{SequenceOrder: 2, Boats: []model.Boat{
				{Name: "A", FinishTimeSeconds: ft(121), Assignments: []model.Assignment{
					{AthleteID: "a1", SeatNumber: 1}, {AthleteID: "b2", SeatNumber: 2},
				}},
				{Name: "B", FinishTimeSeconds: ft(124), Assignments: []model.Assignment{
					{AthleteID: "b1", SeatNumber: 1}, {AthleteID: "a2", SeatNumber: 2},
				}},
			}},
			{SequenceOrder: 1, Boats: []model.Boat{
				{Name: "A", FinishTimeSeconds: ft(120), Assignments: []model.Assignment{
					{AthleteID: "a1", SeatNumber: 1}, {AthleteID: "a2", SeatNumber: 2},
				}},
				{Name: "B", FinishTimeSeconds: ft(125), Assignments: []model.Assignment{
					{AthleteID: "b1", SeatNumber: 1}, {AthleteID: "b2", SeatNumber: 2},
				}},
			}},
		},
	}
}

func TestClient_EndToEnd(t *testing.T) {
	Convey("Given an orchestrator talking to a live server", t, func() {
		ctx := context.Background()
		c := startBackend(t)
		orch := orchestrator.New(c)

		Convey("When a seat race is submitted", func() {
			plan, err := orch.Submit(ctx, seatRace())

			Convey("Then every step completes and ratings move", func() {
				So(err, ShouldBeNil)
				So(plan.Complete(), ShouldBeTrue)
				So(plan.State(), ShouldEqual, orchestrator.StateProcessed)
				So(plan.Result, ShouldNotBeNil)
				So(plan.Result.UpdatedRatings, ShouldHaveLength, 4)

				top, err := c.Leaderboard(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 4)
				So(top[0].AthleteID, ShouldEqual, "a1")
				So(top[0].Rating, ShouldAlmostEqual, 1516, 1e-6)

				b1, err := c.Rating(ctx, "b1")
				So(err, ShouldBeNil)
				So(b1.Rating, ShouldAlmostEqual, 1484, 1e-6)
				a2, err := c.Rating(ctx, "a2")
				So(err, ShouldBeNil)
				So(a2.Rating, ShouldAlmostEqual, 1500, 1e-6)
			})

			Convey("Then the stored graph matches the draft", func() {
				stored, err := c.Session(ctx, plan.Created().SessionID)
				So(err, ShouldBeNil)
				So(stored.Processed, ShouldBeTrue)
				So(stored.Pieces, ShouldHaveLength, 2)
				So(stored.Pieces[0].SequenceOrder, ShouldEqual, 1)
				So(stored.Pieces[0].Boats[0].Assignments, ShouldHaveLength, 2)
			})

			Convey("Then processing again is refused by the server", func() {
				_, err := orchestrator.New(c).ProcessSession(ctx, plan.Created().SessionID)
				So(errors.Is(err, model.ErrAlreadyProcessed), ShouldBeTrue)

				So(orch.Recalculate(ctx), ShouldBeNil)
				a1, err := c.Rating(ctx, "a1")
				So(err, ShouldBeNil)
				So(a1.Rating, ShouldAlmostEqual, 1516, 1e-6)
			})
		})

		Convey("When a crew names a seat the boat does not have", func() {
			sid, err := c.CreateSession(ctx, model.SessionInput{Date: time.Now(), BoatClass: "2-"})
			So(err, ShouldBeNil)
			pid, err := c.AddPiece(ctx, model.PieceInput{SessionID: sid, SequenceOrder: 1})
			So(err, ShouldBeNil)
			bid, err := c.AddBoat(ctx, model.BoatInput{SessionID: sid, PieceID: pid, Name: "A", FinishTimeSeconds: ft(100)})
			So(err, ShouldBeNil)

			err = c.SetAssignments(ctx, bid, sid, []model.Assignment{{AthleteID: "x", SeatNumber: 3}})

			Convey("Then the structural error survives the round trip", func() {
				So(errors.Is(err, validate.ErrStructural), ShouldBeTrue)
				So(client.IsRetryable(err), ShouldBeFalse)
			})
		})

		Convey("When an unknown session is read", func() {
			_, err := c.Session(ctx, "missing")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a draft is validated remotely", func() {
			report, err := c.Validate(ctx, seatRace(), nil)
			So(err, ShouldBeNil)
			So(report.Valid, ShouldBeTrue)
			So(report.Transitions, ShouldHaveLength, 1)
			So(report.Transitions[0].Switches, ShouldHaveLength, 2)
		})
	})
}
