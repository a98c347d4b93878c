package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID reads the subject set by the auth middleware.
func UserID(c echo.Context) (uint, error) {
	if v, ok := c.Get("userID").(uint); ok && v != 0 {
		return v, nil
	}
	return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
}

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
