package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"Marketplace/cache"
	"Marketplace/handlers"
	"Marketplace/jwt"
	"Marketplace/middleware"
	"Marketplace/repository"
	"Marketplace/services"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Authorization, X-Request-ID")
		c.Next()
	}
}

func SetupRouters(db *gorm.DB, rdb *redis.Client, tokens *jwt.Manager, log *logrus.Logger) (*gin.Engine, error) {
	orderService := services.NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewAccountFinder(db),
		repository.NewProductFinder(db),
		log,
	)
	h := handlers.NewHandler(db, cache.NewProductCache(rdb), orderService, tokens, log)

	//建立Gin路由器
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.RequestLogger(log),
		corsMiddleware(),
	)
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	router.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/healthz", h.HealthHandler)

	//所有API先解析Token，是否需要登入由各路由決定
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(db, tokens, log))

	loginRequired := middleware.CheckLoginMiddleware()
	adminRequired := middleware.CheckAdminPermissionMiddleware()

	////使用者
	user := api.Group("/User")
	{
		user.POST("/login/", h.LoginHandler)
		user.POST("/logout/", loginRequired, h.LogoutHandler)
		//查詢使用者列表
		user.GET("/register/", h.GetUserListHandler)
		user.POST("/register/", h.RegisterHandler)

		me := user.Group("/me", loginRequired)
		{
			me.GET("/profile/", h.GetUserProfileHandler)
			me.PUT("/profile/update/", h.UpdateUserProfileHandler)
			me.POST("/profile/update-image/", h.UpdateProfileImageHandler)
			me.POST("/activate/", h.ActivateAccountHandler)
			me.DELETE("/deactivate/", h.DeactivateAccountHandler)
		}

		//需要admin身分
		admin := user.Group("/admin", loginRequired, adminRequired)
		{
			admin.POST("/", h.AdminCreateUserHandler)
			admin.POST("/changePassword/:id/", h.AdminChangePasswordHandler)
			admin.GET("/:id/", h.AdminGetUserHandler)
			admin.DELETE("/:id/delete/", h.AdminDeleteUserHandler)
			admin.PUT("/:id/update/", h.AdminUpdateUserHandler)
			admin.PATCH("/:id/update/", h.AdminUpdateUserHandler)
		}
	}

	////商品分類
	category := api.Group("/Category")
	{
		category.GET("/", h.GetCategoryListHandler)
		category.GET("/:id/", h.GetCategoryHandler)
		category.GET("/:id/Products/", h.GetCategoryProductsHandler)
		category.POST("/create/", loginRequired, adminRequired, h.CreateCategoryHandler)
		category.PUT("/:id/update/", loginRequired, adminRequired, h.UpdateCategoryHandler)
		category.PUT("/update-Image-Category/:id/", loginRequired, adminRequired, h.UpdateCategoryImageHandler)
		category.DELETE("/:id/delete/", loginRequired, adminRequired, h.DeleteCategoryHandler)
	}

	////商品
	product := api.Group("/Product")
	{
		product.GET("/", h.GetProductListHandler)
		product.GET("/:id/", h.GetProductHandler)
		product.GET("/my/", loginRequired, h.GetMyProductsHandler)
		product.POST("/create/", loginRequired, h.CreateProductHandler)
		product.PUT("/:id/update/", loginRequired, h.UpdateProductHandler)
		product.PUT("/update-Image-Product/:id/", loginRequired, h.UpdateProductImageHandler)
		product.DELETE("/:id/delete/", loginRequired, h.DeleteProductHandler)
	}

	////購物車
	cart := api.Group("/Cart", loginRequired)
	{
		cart.GET("/", h.GetCartHandler)
		cart.POST("/:productId/", h.AddToCartHandler)
		cart.PUT("/clear/", h.ClearCartHandler)
		cart.DELETE("/:productId/delete/", h.RemoveFromCartHandler)
	}

	////收藏清單
	wishlist := api.Group("/Wishlist", loginRequired)
	{
		wishlist.GET("/", h.GetWishlistHandler)
		wishlist.POST("/:productId/", h.AddToWishlistHandler)
		wishlist.DELETE("/:productId/delete/", h.RemoveFromWishlistHandler)
	}

	////評論
	review := api.Group("/Review")
	{
		review.GET("/", h.GetReviewListHandler)
		review.GET("/:productId/list/", h.GetProductReviewsHandler)
		review.GET("/my/list/", loginRequired, h.GetMyReviewsHandler)
		review.GET("/:productId/my/", loginRequired, h.GetMyProductReviewHandler)
		review.POST("/:productId/", loginRequired, h.AddReviewHandler)
		review.PUT("/:reviewId/update/", loginRequired, h.UpdateReviewHandler)
		review.DELETE("/:reviewId/delete/", loginRequired, h.DeleteReviewHandler)
	}

	////訂單，全部需要登入
	order := api.Group("/Order", loginRequired)
	{
		order.GET("/", h.GetOrderListHandler)
		order.POST("/create/", h.CreateOrderHandler)
		order.GET("/total/", h.GetOrderTotalHandler)
		order.GET("/:id/", h.GetOrderHandler)
		order.DELETE("/:id/delete/", h.DeleteOrderHandler)
		order.PUT("/:id/:status/", h.UpdateOrderStatusHandler)
		order.GET("/user/:userId/", h.GetUserOrdersHandler)
		order.GET("/user/:userId/status/:status/", h.GetUserOrdersByStatusHandler)
		order.GET("/Product/:productId/count/", h.GetProductOrderCountHandler)
		order.GET("/status/:status/", h.GetOrdersByStatusHandler)
	}
	api.GET("/user/:userId/status/:status/", loginRequired, h.GetUserOrdersByStatusHandler)

	return router, nil
}
