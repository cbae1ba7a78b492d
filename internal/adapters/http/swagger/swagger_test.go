package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	Convey("Given a swagger handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()

		Convey("When registering the swagger handler", func() {
			Register(ctx, mux)

			Convey("Then it should handle /openapi.yaml route", func() {
				req := httptest.NewRequest("GET", "/openapi.yaml", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/yaml; charset=utf-8")
				So(w.Body.Len(), ShouldBeGreaterThan, 0)
			})

			Convey("And it should handle /api-docs route", func() {
				req := httptest.NewRequest("GET", "/api-docs", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "text/html; charset=utf-8")
				So(w.Body.String(), ShouldContainSubstring, "Scrappers Cup Ladder API - ReDoc")
				So(w.Body.String(), ShouldContainSubstring, "redoc-container")
			})
		})
	})
}

func TestOpenAPIDocument(t *testing.T) {
	Convey("Given the embedded OpenAPI document", t, func() {
		doc, err := Parse()
		So(err, ShouldBeNil)

		Convey("Then it documents every ladder route", func() {
			So(doc.OpenAPI, ShouldStartWith, "3.")
			routes := map[string]string{
				"/leaderboard":      "get",
				"/roster":           "get",
				"/events":           "get",
				"/competitors":      "post",
				"/competitors/{id}": "patch",
				"/contests":         "post",
				"/contests/{id}":    "put",
				"/adjustments":      "post",
				"/events/{id}":      "delete",
				"/rebuild":          "post",
				"/normalize":        "post",
			}
			for path, method := range routes {
				ops, ok := doc.Paths[path]
				So(ok, ShouldBeTrue)
				So(ops, ShouldContainKey, method)
			}
		})
	})
}
