package app

import (
	"errors"
	"net/http"

	"github.com/fiffu/slotwatch/lib/models"
)

// describeError maps a service error to an http status and a message that is
// safe to show to users.
func describeError(err error) (int, string) {
	var (
		ve *models.ValidationError
		se *models.ScrapeError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "Invalid URL: " + ve.Reason
	case errors.Is(err, models.ErrUnsupportedPlatform):
		return http.StatusBadRequest, "Unsupported platform, use telegram or email"
	case errors.As(err, &se) && se.Kind == models.ScrapeNotFound:
		return http.StatusUnprocessableEntity, "The page could not be found. Check that the link is correct."
	case errors.As(err, &se) && se.Kind == models.ScrapeParse:
		return http.StatusUnprocessableEntity, "The page could not be read. It may not be an interview scheduling page."
	case errors.As(err, &se):
		return http.StatusBadGateway, "The page could not be reached right now. Please try again later."
	default:
		return http.StatusInternalServerError, "Something went wrong. Please try again later."
	}
}
