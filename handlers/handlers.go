package handlers

import (
	"os"

	"github.com/biki-cloud/online-shop/internal/auth"
	"github.com/biki-cloud/online-shop/internal/cart"
	"github.com/biki-cloud/online-shop/internal/categories"
	"github.com/biki-cloud/online-shop/internal/orders"
	"github.com/biki-cloud/online-shop/internal/payment"
	"github.com/biki-cloud/online-shop/internal/products"
	"github.com/biki-cloud/online-shop/internal/users"
	"github.com/biki-cloud/online-shop/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	c        *cart.Conf
	o        *orders.Conf
	p        *products.Conf
	cat      *categories.Conf
	u        *users.Conf
	pay      *payment.Conf
	validate *validator.Validate
	authKeys *auth.Keys
}

func NewHandler(c *cart.Conf, o *orders.Conf, p *products.Conf, cat *categories.Conf,
	u *users.Conf, pay *payment.Conf, authKeys *auth.Keys) *Handler {
	return &Handler{
		c:        c,
		o:        o,
		p:        p,
		cat:      cat,
		u:        u,
		pay:      pay,
		validate: validator.New(),
		authKeys: authKeys,
	}
}

func API(endpointPrefix string, k *auth.Keys, c *cart.Conf, o *orders.Conf, p *products.Conf,
	cat *categories.Conf, u *users.Conf, pay *payment.Conf) *gin.Engine {

	r := gin.New()
	mode := os.Getenv("GIN_MODE")
	if mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	m, err := middleware.NewMid(k)
	if err != nil {
		panic(err)
	}

	h := NewHandler(c, o, p, cat, u, pay, k)
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/ping", HealthCheck)
	v1 := r.Group(endpointPrefix)
	{
		v1.POST("/signup", h.Signup)
		v1.POST("/login", h.Login)

		v1.POST("/webhook", h.Webhook)
		v1.GET("/checkout/complete", h.CheckoutComplete)

		v1.GET("/products/list", h.ListProducts)
		v1.GET("/products/view/:id", h.GetProduct)
		v1.GET("/categories/list", h.ListCategories)
	}

	authed := r.Group(endpointPrefix)
	{
		authed.Use(m.Authentication())

		authed.POST("/cart/add-item", m.Authorize(h.AddToCart, auth.RoleUser))
		authed.GET("/cart/items", m.Authorize(h.GetActiveCartItems, auth.RoleUser))
		authed.PUT("/cart/items/:id", m.Authorize(h.UpdateCartItemQuantity, auth.RoleUser))
		authed.DELETE("/cart/items/:id", m.Authorize(h.RemoveFromCart, auth.RoleUser))

		authed.POST("/checkout", m.Authorize(h.Checkout, auth.RoleUser))

		authed.GET("/orders/list", m.Authorize(h.ListOrders, auth.RoleUser))
		authed.GET("/orders/view/:id", m.Authorize(h.GetOrder, auth.RoleUser))

		authed.POST("/products/create", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		authed.PUT("/products/update/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin))
		authed.DELETE("/products/delete/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin))

		authed.POST("/categories/create", m.Authorize(h.CreateCategory, auth.RoleAdmin))
		authed.PUT("/categories/update/:id", m.Authorize(h.UpdateCategory, auth.RoleAdmin))
		authed.DELETE("/categories/delete/:id", m.Authorize(h.DeleteCategory, auth.RoleAdmin))
	}

	return r
}

func HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}
