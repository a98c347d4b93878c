package httpserver

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/veloura/storefront/internal/handlers"
	"github.com/veloura/storefront/internal/handlers/cart"
	"github.com/veloura/storefront/internal/handlers/order"
	"github.com/veloura/storefront/internal/logging"
	"github.com/veloura/storefront/internal/service/token"
)

type Deps struct {
	DB              *gorm.DB
	Logger          *slog.Logger
	AuthHandler     *handlers.AuthHandler
	ProductHandler  *handlers.ProductHandler
	BannerHandler   *handlers.BannerHandler
	ReviewHandler   *handlers.ReviewHandler
	SearchHandler   *handlers.SearchHandler
	OTPHandler      *handlers.OTPHandler
	ShippingHandler *handlers.ShippingHandler
	CartHandler     *cart.CartHandler
	OrderHandler    *order.OrderHandler
	ServiceHandler  *token.TokenService
}

// requestLogger injects the base logger into the request context and emits
// one line per request.
func requestLogger(l *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			ctx := logging.IntoContext(req.Context(), l)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)

			l.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}

func Register(e *echo.Echo, d *Deps) {
	if d.Logger != nil {
		e.Use(requestLogger(d.Logger))
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)

	v1.GET("/search", d.SearchHandler.Search)
	v1.GET("/banners", d.BannerHandler.GetBanners)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)
	products.GET("/:id/reviews", d.ReviewHandler.GetReviews)

	otp := v1.Group("/otp")
	otp.POST("/send-otp", d.OTPHandler.SendPhoneOTP)
	otp.POST("/verify-otp", d.OTPHandler.VerifyPhoneOTP)
	otp.POST("/send-email-otp", d.OTPHandler.SendEmailOTP)
	otp.POST("/verify-email-otp", d.OTPHandler.VerifyEmailOTP)

	v1.POST("/shipping/estimate", d.ShippingHandler.Estimate)

	user := v1.Group("", d.ServiceHandler.AutoRefreshMiddleware)
	user.POST("/products/:id/reviews", d.ReviewHandler.CreateReview)
	user.POST("/products/:id/purchase", d.ProductHandler.Purchase)

	userCart := user.Group("/cart")
	userCart.GET("", d.CartHandler.GetCart)
	userCart.POST("", d.CartHandler.AddToCart)
	userCart.POST("/items/:id/increment", d.CartHandler.IncrementLine)
	userCart.POST("/items/:id/decrement", d.CartHandler.DecrementLine)
	userCart.DELETE("/items/:id", d.CartHandler.DeleteLine)
	userCart.DELETE("", d.CartHandler.ClearCart)

	userOrders := user.Group("/orders")
	userOrders.POST("", d.OrderHandler.CreateOrder)
	userOrders.GET("/mine", d.OrderHandler.MyOrders)
	userOrders.POST("/verify-payment", d.OrderHandler.VerifyPayment)

	admin := v1.Group("/admin", d.ServiceHandler.AutoRefreshMiddlewareAdmin)
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	admin.POST("/banners", d.BannerHandler.CreateBanner)
	admin.DELETE("/banners/:id", d.BannerHandler.DeleteBanner)
	admin.GET("/orders", d.OrderHandler.ListOrders)
	admin.PUT("/orders/:id/status", d.OrderHandler.UpdateStatus)
	admin.POST("/orders/:id/shipment", d.OrderHandler.CreateShipment)
}
