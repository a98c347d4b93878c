package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/veloura/storefront/internal/models"
)

// BannerHandler serves the storefront's rotating banner images.
type BannerHandler struct {
	DB *gorm.DB
}

func (h *BannerHandler) GetBanners(c echo.Context) error {
	var banners []models.Banner
	if err := h.DB.Order("position ASC").Find(&banners).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, banners)
}

func (h *BannerHandler) CreateBanner(c echo.Context) error {
	var req struct {
		Image    string `json:"image"`
		Position int    `json:"position"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Image == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "image required")
	}

	banner := models.Banner{Image: req.Image, Position: req.Position}
	if err := h.DB.Create(&banner).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, banner)
}

func (h *BannerHandler) DeleteBanner(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.DB.Delete(&models.Banner{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
