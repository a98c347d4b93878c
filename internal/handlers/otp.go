package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/veloura/storefront/internal/logging"
	"github.com/veloura/storefront/internal/otp"
)

// OTPHandler exposes code issuance and verification for the phone and email
// channels. Both run the same service; only the sender differs.
type OTPHandler struct {
	Phone *otp.Service
	Email *otp.Service
}

func (h *OTPHandler) SendPhoneOTP(c echo.Context) error {
	return h.send(c, h.Phone, "phone")
}

func (h *OTPHandler) VerifyPhoneOTP(c echo.Context) error {
	return h.verify(c, h.Phone, "phone")
}

func (h *OTPHandler) SendEmailOTP(c echo.Context) error {
	return h.send(c, h.Email, "email")
}

func (h *OTPHandler) VerifyEmailOTP(c echo.Context) error {
	return h.verify(c, h.Email, "email")
}

func (h *OTPHandler) send(c echo.Context, svc *otp.Service, field string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "otp_send", "channel", field)

	var req map[string]string
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	identifier := req[field]
	if identifier == "" {
		return echo.NewHTTPError(http.StatusBadRequest, field+" required")
	}

	if err := svc.Request(ctx, identifier); err != nil {
		if errors.Is(err, otp.ErrDispatch) {
			l.Warn("otp_dispatch_failed", "status", 502, "error", err)
			return echo.NewHTTPError(http.StatusBadGateway, "could not deliver code")
		}
		l.Error("otp_send_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("otp_sent")
	return c.JSON(http.StatusOK, echo.Map{"status": "sent"})
}

func (h *OTPHandler) verify(c echo.Context, svc *otp.Service, field string) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "otp_verify", "channel", field)

	var req map[string]string
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	identifier, code := req[field], req["code"]
	if identifier == "" || code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, field+" and code required")
	}

	switch err := svc.Verify(ctx, identifier, code); {
	case err == nil:
		l.Info("otp_verified")
		return c.JSON(http.StatusOK, echo.Map{"status": "verified"})
	case errors.Is(err, otp.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "no pending code")
	case errors.Is(err, otp.ErrExpired):
		return echo.NewHTTPError(http.StatusGone, "code expired")
	case errors.Is(err, otp.ErrMismatch):
		return echo.NewHTTPError(http.StatusBadRequest, "wrong code")
	default:
		l.Error("otp_verify_error", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
