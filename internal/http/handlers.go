package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/service"
)

const defaultQuantity int64 = 1

type Server struct {
	engine    *gin.Engine
	products  *service.ProductService
	customers *service.CustomerService
	carts     *service.CartService
	orders    *service.OrderService
	log       *zap.Logger
}

func NewServer(products *service.ProductService, customers *service.CustomerService, carts *service.CartService, orders *service.OrderService, log *zap.Logger) *Server {
	r := gin.New()
	r.Use(requestID(), accessLog(log), recovery(log))
	s := &Server{engine: r, products: products, customers: customers, carts: carts, orders: orders, log: log}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/customers", s.registerCustomer)
		v1.GET("/products", s.listProducts)
		v1.GET("/products/:id", s.getProduct)

		auth := v1.Group("", s.authenticate())

		customers := auth.Group("/customers")
		customers.GET(":id", s.getCustomer)
		customers.PATCH(":id/role", s.changeRole)

		products := auth.Group("/products")
		products.POST("", s.createProduct)
		products.PUT(":id", s.updateProduct)
		products.DELETE(":id", s.deleteProduct)

		cart := auth.Group("/cart")
		cart.GET("", s.getCart)
		cart.POST("/items", s.addItem)
		cart.PUT("/items/:id", s.updateItem)
		cart.DELETE("/items/:id", s.removeItem)

		auth.POST("/checkout", s.checkout)

		orders := auth.Group("/orders")
		orders.GET("", s.listOrders)
		orders.GET(":id", s.getOrder)
		orders.POST(":id/payment", s.confirmPayment)

		admin := auth.Group("/admin/orders")
		admin.GET("", s.listAllOrders)
		admin.PATCH(":id", s.updateStatus)
		admin.DELETE(":id", s.deleteOrder)

		adminCustomers := auth.Group("/admin/customers")
		adminCustomers.GET("", s.listCustomers)
		adminCustomers.DELETE(":id", s.deleteCustomer)
	}
}

// Customer handlers

// @Summary Register customer
// @Tags customers
// @Accept json
// @Produce json
// @Param input body service.RegisterInput true "Customer"
// @Success 201 {object} domain.Customer
// @Failure 400 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /customers [post]
func (s *Server) registerCustomer(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cust, err := s.customers.Register(c, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cust)
}

// @Summary Get customer
// @Tags customers
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Customer ID"
// @Success 200 {object} domain.Customer
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /customers/{id} [get]
func (s *Server) getCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	cust, err := s.customers.Get(c, actorFrom(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

type changeRoleReq struct {
	Role string `json:"role" binding:"required"`
}

// @Summary Change customer role
// @Tags customers
// @Accept json
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Customer ID"
// @Param input body changeRoleReq true "Role"
// @Success 200 {object} domain.Customer
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /customers/{id}/role [patch]
func (s *Server) changeRole(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req changeRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cust, err := s.customers.ChangeRole(c, actorFrom(c), id, req.Role)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cust)
}

// @Summary List customers
// @Tags admin
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Success 200 {array} domain.Customer
// @Failure 403 {object} errorResponse
// @Router /admin/customers [get]
func (s *Server) listCustomers(c *gin.Context) {
	list, err := s.customers.List(c, actorFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Delete customer with all orders
// @Tags admin
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Customer ID"
// @Success 204
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /admin/customers/{id} [delete]
func (s *Server) deleteCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.customers.Delete(c, actorFrom(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Product handlers
type productReq struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price" swaggertype:"string" example:"10.00"`
	Stock       int64           `json:"stock"`
}

func (r productReq) product(id int64) domain.Product {
	return domain.Product{ID: id, Title: r.Title, Description: r.Description, Price: r.Price, Stock: r.Stock}
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param input body productReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Create(c, actorFrom(c), req.product(0))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := s.products.GetByID(c, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Product ID"
// @Param input body productReq true "Update"
// @Success 200 {object} domain.Product
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Update(c, actorFrom(c), req.product(id))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Product ID"
// @Success 204
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.products.Delete(c, actorFrom(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	list, err := s.products.List(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Cart handlers

// @Summary Get or create the open cart
// @Tags cart
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Success 200 {object} domain.OrderView
// @Failure 401 {object} errorResponse
// @Router /cart [get]
func (s *Server) getCart(c *gin.Context) {
	v, err := s.carts.GetOrCreateCart(c, actorFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type addItemReq struct {
	ProductID int64  `json:"product_id"`
	Quantity  *int64 `json:"quantity" default:"1"`
}

// quantity без поля в запросе кладём одну штуку; явные 0 и минус отклонит сервис
func (r addItemReq) quantity() int64 {
	if r.Quantity == nil {
		return defaultQuantity
	}
	return *r.Quantity
}

// @Summary Add product to cart
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param input body addItemReq true "Line"
// @Success 200 {object} domain.OrderView
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /cart/items [post]
func (s *Server) addItem(c *gin.Context) {
	var req addItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	v, err := s.carts.AddItem(c, actorFrom(c), req.ProductID, req.quantity())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type updateItemReq struct {
	Quantity int64 `json:"quantity"`
}

// @Summary Set line item quantity
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Line item ID"
// @Param input body updateItemReq true "Quantity"
// @Success 200 {object} domain.OrderView
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /cart/items/{id} [put]
func (s *Server) updateItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	v, err := s.carts.UpdateItem(c, actorFrom(c), id, req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Remove line item
// @Tags cart
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Line item ID"
// @Success 200 {object} domain.OrderView
// @Failure 404 {object} errorResponse
// @Router /cart/items/{id} [delete]
func (s *Server) removeItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, err := s.carts.RemoveItem(c, actorFrom(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Check out the open cart
// @Tags cart
// @Accept json
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param input body service.CheckoutInput true "Shipping and payment"
// @Success 201 {object} domain.OrderView
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /checkout [post]
func (s *Server) checkout(c *gin.Context) {
	var req service.CheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	v, err := s.carts.Checkout(c, actorFrom(c), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

// Order handlers

// @Summary List my orders
// @Tags orders
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Success 200 {array} domain.OrderView
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListOrders(c, actorFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Order ID"
// @Success 200 {object} domain.OrderView
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, err := s.orders.GetOrder(c, actorFrom(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Confirm payment (payment gateway callback, admin only)
// @Tags orders
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Order ID"
// @Success 200 {object} domain.OrderView
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /orders/{id}/payment [post]
func (s *Server) confirmPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v, err := s.orders.ConfirmPayment(c, actorFrom(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary List all orders and carts
// @Tags admin
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Success 200 {array} domain.OrderView
// @Failure 403 {object} errorResponse
// @Router /admin/orders [get]
func (s *Server) listAllOrders(c *gin.Context) {
	list, err := s.orders.ListAllOrders(c, actorFrom(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// @Summary Update order status
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Order ID"
// @Param input body updateStatusReq true "Status"
// @Success 200 {object} domain.OrderView
// @Failure 400 {object} errorResponse
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /admin/orders/{id} [patch]
func (s *Server) updateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	v, err := s.orders.UpdateStatus(c, actorFrom(c), id, req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Delete order
// @Tags admin
// @Param X-Customer-ID header int true "Acting customer"
// @Param id path int true "Order ID"
// @Success 204
// @Failure 403 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /admin/orders/{id} [delete]
func (s *Server) deleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.orders.DeleteOrder(c, actorFrom(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// pathID пишет 400 и возвращает false, если :id не число
func pathID(c *gin.Context) (int64, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
