package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"mechanicBack/internal/booking"
)

func (app *application) routes() (http.Handler, error) {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	publicMiddleware := alice.New(makeResponseJSON)
	authMiddleware := publicMiddleware.Append(app.authenticate)

	mux := pat.New()
	mux.Get("/healthz", publicMiddleware.ThenFunc(app.healthz))

	if err := booking.RegisterBookingRoutes(mux, publicMiddleware, authMiddleware, app.bookingDeps); err != nil {
		return nil, err
	}
	return standardMiddleware.Then(mux), nil
}
