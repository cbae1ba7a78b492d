package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository"
	service "github.com/mcronin4/scrappers-cup/internal/app"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 5, 2, 18, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

type testServer struct {
	svc *service.Service
	mux *http.ServeMux
}

func newTestServer(opts ...Option) *testServer {
	svc := service.New(
		service.WithStore(repository.NewMemoryStore()),
		service.WithClock(stepClock()),
		service.WithLogger(logger.Nop()),
	)
	So(svc.Start(context.Background()), ShouldBeNil)

	mux := http.NewServeMux()
	NewServer(svc, svc, opts...).Register(context.Background(), mux)
	return &testServer{svc: svc, mux: mux}
}

func (ts *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			So(json.NewEncoder(&buf).Encode(b), ShouldBeNil)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](w *httptest.ResponseRecorder) T {
	var out T
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func (ts *testServer) leaderboardIDs() []string {
	w := ts.do(http.MethodGet, "/leaderboard", nil)
	So(w.Code, ShouldEqual, http.StatusOK)
	list := decodeBody[listResponse[Entry]](w)
	ids := make([]string, 0, len(list.Items))
	for _, e := range list.Items {
		ids = append(ids, e.CompetitorID)
	}
	return ids
}

func (ts *testServer) addRoster(ids ...string) {
	for _, id := range ids {
		w := ts.do(http.MethodPost, "/competitors", map[string]any{"id": id, "name": id})
		So(w.Code, ShouldEqual, http.StatusCreated)
	}
}

func straightSets(side1Wins bool) map[string]any {
	if side1Wins {
		return map[string]any{"set1": map[string]int{"side1": 6, "side2": 3}, "set2": map[string]int{"side1": 6, "side2": 2}}
	}
	return map[string]any{"set1": map[string]int{"side1": 3, "side2": 6}, "set2": map[string]int{"side1": 2, "side2": 6}}
}

func contestBody(side1, side2 string, side1Wins bool) map[string]any {
	body := straightSets(side1Wins)
	body["side1_id"] = side1
	body["side2_id"] = side2
	return body
}

func TestLadderOverHTTP(t *testing.T) {
	Convey("Given Alice, Bob and Charlie registered over HTTP", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()
		ts.addRoster("alice", "bob", "charlie")
		So(ts.leaderboardIDs(), ShouldResemble, []string{"alice", "bob", "charlie"})

		Convey("When Bob beats Alice", func() {
			w := ts.do(http.MethodPost, "/contests", contestBody("bob", "alice", true), "X-Actor", "admin")
			So(w.Code, ShouldEqual, http.StatusCreated)
			resp := decodeBody[writeResponse](w)
			So(resp.Status, ShouldEqual, statusOK)
			So(resp.Contest.WinnerID, ShouldEqual, "bob")
			So(resp.Contest.Winner, ShouldEqual, "side1")
			So(resp.Contest.RecordedBy, ShouldEqual, "admin")
			So(resp.Rebuild.Success, ShouldBeTrue)
			So(resp.Rebuild.UpdatedCompetitors, ShouldEqual, 2)

			Convey("Then Bob takes rank 1", func() {
				So(ts.leaderboardIDs(), ShouldResemble, []string{"bob", "alice", "charlie"})
			})

			Convey("And Charlie is adjusted to rank 1", func() {
				w := ts.do(http.MethodPost, "/adjustments",
					map[string]any{"competitor_id": "charlie", "target_rank": 1, "reason": "seeding"},
					"X-Actor", "admin")
				So(w.Code, ShouldEqual, http.StatusCreated)
				adj := decodeBody[writeResponse](w)
				So(adj.Event.Kind, ShouldEqual, "manual_adjustment")
				So(adj.Event.FromRank, ShouldEqual, 3)
				So(ts.leaderboardIDs(), ShouldResemble, []string{"charlie", "bob", "alice"})

				Convey("Then the timeline lists audits in replay order", func() {
					w := ts.do(http.MethodGet, "/events", nil)
					So(w.Code, ShouldEqual, http.StatusOK)
					list := decodeBody[listResponse[eventResponse]](w)
					So(list.Count, ShouldEqual, 2)
					So(list.Items[0].Kind, ShouldEqual, "contest")
					So(list.Items[0].Note, ShouldEqual, "took rank 1 from alice")
					So(list.Items[1].OldRank, ShouldEqual, 3)
					So(list.Items[1].NewRank, ShouldEqual, 1)
					So(list.Items[1].Actor, ShouldEqual, "admin")
				})

				Convey("Then deleting the adjustment restores the contest result", func() {
					w := ts.do(http.MethodDelete, "/events/"+adj.Event.ID, nil)
					So(w.Code, ShouldEqual, http.StatusOK)
					So(ts.leaderboardIDs(), ShouldResemble, []string{"bob", "alice", "charlie"})
				})
			})

			Convey("And the contest is edited so Alice won", func() {
				w := ts.do(http.MethodPut, "/contests/"+resp.Contest.ID, straightSets(false))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(ts.leaderboardIDs(), ShouldResemble, []string{"alice", "bob", "charlie"})
			})

			Convey("Then a manual rebuild changes nothing", func() {
				w := ts.do(http.MethodPost, "/rebuild", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[writeResponse](w).Rebuild.UpdatedCompetitors, ShouldEqual, 0)
			})
		})

		Convey("When Charlie is made inactive", func() {
			w := ts.do(http.MethodPatch, "/competitors/charlie", map[string]any{"active": false})
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody[competitorResponse](w).Active, ShouldBeFalse)

			Convey("Then the leaderboard hides Charlie but the roster keeps the slot", func() {
				So(ts.leaderboardIDs(), ShouldResemble, []string{"alice", "bob"})
				w := ts.do(http.MethodGet, "/roster", nil)
				roster := decodeBody[listResponse[Entry]](w)
				So(roster.Count, ShouldEqual, 3)
				So(roster.Items[2].CurrentRank, ShouldEqual, 3)
				So(roster.Items[2].Active, ShouldBeFalse)
			})
		})
	})
}

func TestRequestValidation(t *testing.T) {
	Convey("Given a server with two competitors", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()
		ts.addRoster("alice", "bob")

		Convey("Malformed JSON is a bad request", func() {
			w := ts.do(http.MethodPost, "/contests", `{"side1_id":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody[errorResponse](w).Code, ShouldEqual, "bad_request")
		})

		Convey("A body missing the score is a bad request", func() {
			w := ts.do(http.MethodPost, "/contests", map[string]any{"side1_id": "alice", "side2_id": "bob"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A negative game count is a bad request", func() {
			body := contestBody("alice", "bob", true)
			body["set1"] = map[string]int{"side1": -1, "side2": 6}
			w := ts.do(http.MethodPost, "/contests", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A non RFC 3339 played_at is a bad request", func() {
			body := contestBody("alice", "bob", true)
			body["played_at"] = "yesterday"
			w := ts.do(http.MethodPost, "/contests", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A split with level games and no tiebreak is rejected", func() {
			body := map[string]any{
				"side1_id": "alice", "side2_id": "bob",
				"set1": map[string]int{"side1": 6, "side2": 3},
				"set2": map[string]int{"side1": 3, "side2": 6},
			}
			w := ts.do(http.MethodPost, "/contests", body)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(ts.leaderboardIDs(), ShouldResemble, []string{"alice", "bob"})
		})

		Convey("An unknown competitor is not found", func() {
			w := ts.do(http.MethodPost, "/contests", contestBody("alice", "zed", true))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody[errorResponse](w).Code, ShouldEqual, "competitor_not_found")
		})

		Convey("An out of range adjustment is an invalid rank", func() {
			w := ts.do(http.MethodPost, "/adjustments", map[string]any{"competitor_id": "alice", "target_rank": 3})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody[errorResponse](w).Code, ShouldEqual, "invalid_rank")
		})

		Convey("Editing an unknown contest is not found", func() {
			w := ts.do(http.MethodPut, "/contests/missing", straightSets(true))
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody[errorResponse](w).Code, ShouldEqual, "contest_not_found")
		})

		Convey("Deleting an unknown event is not found", func() {
			w := ts.do(http.MethodDelete, "/events/missing", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody[errorResponse](w).Code, ShouldEqual, "event_not_found")
		})

		Convey("A duplicate competitor id is a bad request", func() {
			w := ts.do(http.MethodPost, "/competitors", map[string]any{"id": "alice", "name": "Alice Again"})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown fields are rejected", func() {
			w := ts.do(http.MethodPost, "/competitors", map[string]any{"name": "Dana", "rank": 1})
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestIdempotentContests(t *testing.T) {
	Convey("Given a server with two competitors", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()
		ts.addRoster("alice", "bob")

		Convey("When the same contest is posted twice with one key", func() {
			first := ts.do(http.MethodPost, "/contests", contestBody("bob", "alice", true), "Idempotency-Key", "k-1")
			second := ts.do(http.MethodPost, "/contests", contestBody("bob", "alice", true), "Idempotency-Key", "k-1")

			Convey("Then only the first is recorded", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(decodeBody[writeResponse](second).Status, ShouldEqual, statusDuplicate)

				events := decodeBody[listResponse[eventResponse]](ts.do(http.MethodGet, "/events", nil))
				So(events.Count, ShouldEqual, 1)
			})
		})

		Convey("When a rejected contest is retried with its key", func() {
			bad := ts.do(http.MethodPost, "/contests", contestBody("alice", "zed", true), "Idempotency-Key", "k-2")
			So(bad.Code, ShouldEqual, http.StatusNotFound)
			retry := ts.do(http.MethodPost, "/contests", contestBody("alice", "bob", true), "Idempotency-Key", "k-2")

			Convey("Then the key was released and the retry is recorded", func() {
				So(retry.Code, ShouldEqual, http.StatusCreated)
			})
		})
	})
}

func TestNormalizeOverHTTP(t *testing.T) {
	Convey("Given a ladder already in dense order", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()
		ts.addRoster("alice", "bob")

		Convey("Then normalize reports no change", func() {
			w := ts.do(http.MethodPost, "/normalize", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody[normalizeResponse](w).Changed, ShouldEqual, 0)
		})
	})
}

func signToken(secret, subject string, ttl time.Duration) string {
	claims := jwt.MapClaims{"sub": subject, "exp": time.Now().Add(ttl).Unix()}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	So(err, ShouldBeNil)
	return tok
}

func TestJWTActor(t *testing.T) {
	Convey("Given a server that requires bearer tokens", t, func() {
		const secret = "test-secret"
		ts := newTestServer(WithJWTSecret(secret))
		defer ts.svc.Stop()

		Convey("A write without a token is unauthorized", func() {
			w := ts.do(http.MethodPost, "/competitors", map[string]any{"name": "Alice"})
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("A token signed with another secret is unauthorized", func() {
			w := ts.do(http.MethodPost, "/competitors", map[string]any{"name": "Alice"},
				"Authorization", "Bearer "+signToken("other", "admin", time.Hour))
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("An expired token is unauthorized", func() {
			w := ts.do(http.MethodPost, "/competitors", map[string]any{"name": "Alice"},
				"Authorization", "Bearer "+signToken(secret, "admin", -time.Hour))
			So(w.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("Reads stay open", func() {
			w := ts.do(http.MethodGet, "/leaderboard", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("The token subject is recorded as the actor", func() {
			auth := "Bearer " + signToken(secret, "referee", time.Hour)
			for _, id := range []string{"alice", "bob"} {
				w := ts.do(http.MethodPost, "/competitors", map[string]any{"id": id, "name": id}, "Authorization", auth)
				So(w.Code, ShouldEqual, http.StatusCreated)
			}
			w := ts.do(http.MethodPost, "/contests", contestBody("bob", "alice", true),
				"Authorization", auth, "X-Actor", "spoofed")
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(decodeBody[writeResponse](w).Contest.RecordedBy, ShouldEqual, "referee")
		})
	})
}

func TestStatusMapping(t *testing.T) {
	Convey("Given errors from the service", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{service.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
			{NewKind("auth", ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
			{model.ErrPersistence, http.StatusServiceUnavailable, "persistence"},
			{errors.New("queue full"), http.StatusInternalServerError, "internal"},
		}
		for _, tc := range cases {
			status, code := statusFor(Wrap("op", tc.err))
			So(status, ShouldEqual, tc.status)
			So(code, ShouldEqual, tc.code)
		}
	})
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given a running server", t, func() {
		ts := newTestServer()
		defer ts.svc.Stop()

		Convey("Then /healthz serves the metrics exposition", func() {
			w := ts.do(http.MethodGet, "/healthz", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "scrappers_ladder_")
		})

		Convey("Then /stats reports the service as started", func() {
			w := ts.do(http.MethodGet, "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody[map[string]any](w)["started"], ShouldEqual, true)
		})
	})
}
